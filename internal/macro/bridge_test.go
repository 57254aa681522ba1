// File: internal/macro/bridge_test.go
package macro

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildScript(t *testing.T) {
	script := buildScript(`C:\Users\op\Downloads\export.xlsx`)

	t.Run("embeds the target path with escaped separators", func(t *testing.T) {
		assert.Contains(t, script, `C:\\Users\\op\\Downloads\\export.xlsx`)
	})

	t.Run("carries the full macro routine", func(t *testing.T) {
		assert.Contains(t, script, "Sub GroupBy_I_Z_And_Process()")
		assert.Contains(t, script, `key = ws.Cells(i, "I").Value & "|" & ws.Cells(i, "Z").Value`)
		assert.Contains(t, script, "WorksheetFunction.EoMonth(gDate, 1)")
		assert.Contains(t, script, "WorksheetFunction.EoMonth(gDate, 2)")
		assert.Contains(t, script, "10000000")
		assert.Contains(t, script, `NumberFormat = "yyyy-mm-dd"`)
	})

	t.Run("installs the module under a fixed name with a qualified fallback", func(t *testing.T) {
		assert.Contains(t, script, `$vbaModule.Name = "GroupProcessModule"`)
		assert.Contains(t, script, `$excel.Run("GroupBy_I_Z_And_Process")`)
		assert.Contains(t, script, `$excel.Run("GroupProcessModule.GroupBy_I_Z_And_Process")`)
	})

	t.Run("falls back to a processed copy when saving is blocked", func(t *testing.T) {
		assert.Contains(t, script, "_processed.xlsx")
	})

	t.Run("leaves Excel visible at the end", func(t *testing.T) {
		idx := strings.LastIndex(script, "$excel.Visible = $true")
		assert.Greater(t, idx, strings.Index(script, "$excel.Visible = $false"))
	})
}

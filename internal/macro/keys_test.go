// File: internal/macro/keys_test.go
package macro

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestGroupKeys(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Group Number", "구매주문"},
		{5, "PO-001"},
		{5, "PO-002"},
		{3, "PO-OTHER"},
		{5, "PO-001"}, // duplicate
		{5, ""},       // blank key
		{5, " PO-003 "},
	})

	keys, err := GroupKeys(path, 5, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"PO-001", "PO-002", "PO-003"}, keys,
		"unique, trimmed, in order of first appearance")
}

func TestGroupKeysNoMatches(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Group Number", "구매주문"},
		{1, "PO-001"},
	})

	keys, err := GroupKeys(path, 5, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGroupKeysMissingFile(t *testing.T) {
	_, err := GroupKeys(filepath.Join(t.TempDir(), "absent.xlsx"), 5, zap.NewNop())
	assert.Error(t, err)
}

// File: cmd/upload_test.go
package cmd

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkwon-dev/ezvoucher/internal/workflow"
)

func TestUploadFlagValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no selection", []string{}, "specify either --file or --start/--end"},
		{"both selections", []string{"--file", "1", "--start", "1", "--end", "2"}, "specify either --file or --start/--end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newUploadCmd()
			c.SetOut(io.Discard)
			c.SetErr(io.Discard)
			c.SetArgs(tt.args)
			err := c.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPrintResult(t *testing.T) {
	ok := workflow.Result{Success: true, Message: "done", CompletedAt: time.Now()}
	assert.NoError(t, printResult(ok))

	bad := workflow.Result{Success: false, Message: "upload of 3. failed"}
	err := printResult(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload of 3. failed")
}

// File: internal/task/task_test.go
package task

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1.Invoice (ABC123).xlsx")
	touch(t, dir, "2.Payroll (DEF456).xls")
	touch(t, dir, "10.Misc (XYZ).xlsm")
	touch(t, dir, "~$1.Invoice (ABC123).xlsx") // Office lock file
	touch(t, dir, "1.notes.txt")

	t.Run("matches the numeric prefix exactly", func(t *testing.T) {
		path, err := FindFile(dir, 1)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "1.Invoice (ABC123).xlsx"), path)
	})

	t.Run("prefix match does not confuse 1 with 10", func(t *testing.T) {
		path, err := FindFile(dir, 10)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "10.Misc (XYZ).xlsm"), path)
	})

	t.Run("missing sequence returns empty without error", func(t *testing.T) {
		path, err := FindFile(dir, 7)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("several matches pick the lexically first", func(t *testing.T) {
		multi := t.TempDir()
		touch(t, multi, "3.b (B).xlsx")
		touch(t, multi, "3.a (A).xlsx")
		path, err := FindFile(multi, 3)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(multi, "3.a (A).xlsx"), path)
	})

	t.Run("extension match is case-insensitive", func(t *testing.T) {
		caps := t.TempDir()
		touch(t, caps, "4.Report (R1).XLSX")
		path, err := FindFile(caps, 4)
		require.NoError(t, err)
		assert.NotEmpty(t, path)
	})
}

func TestExtractLabel(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{"plain label", "1.Invoice (ABC123).xlsx", "ABC123", false},
		{"label with spaces trimmed", "2.Payroll ( DEF 456 ).xlsx", "DEF 456", false},
		{"first group wins", "3.x (FIRST) (SECOND).xlsx", "FIRST", false},
		{"no parentheses", "4.Missing.xlsx", "", true},
		{"empty label", "5.Empty ( ).xlsx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractLabel(tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFileTask(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1.Invoice (ABC123).xlsx")
	touch(t, dir, "2.NoLabel.xlsx")

	t.Run("builds the complete work item", func(t *testing.T) {
		task, err := NewFileTask(dir, 1)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, 1, task.Seq)
		assert.Equal(t, "ABC123", task.Label)
	})

	t.Run("missing file yields nil task, no error", func(t *testing.T) {
		task, err := NewFileTask(dir, 9)
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("file without label is an error", func(t *testing.T) {
		_, err := NewFileTask(dir, 2)
		assert.Error(t, err)
	})
}

func TestLatestDownload(t *testing.T) {
	dir := t.TempDir()
	old := touch(t, dir, "old.xlsx")
	require.NoError(t, os.Chtimes(old, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	touch(t, dir, "skip.txt")
	newest := touch(t, dir, "fresh.xlsx")

	got, err := LatestDownload(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, newest, got)

	t.Run("empty directory is an error", func(t *testing.T) {
		_, err := LatestDownload(t.TempDir(), zap.NewNop())
		assert.Error(t, err)
	})
}

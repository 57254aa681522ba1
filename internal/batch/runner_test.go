// File: internal/batch/runner_test.go
package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/browser"
	"github.com/dkwon-dev/ezvoucher/internal/config"
	"github.com/dkwon-dev/ezvoucher/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubUploader struct {
	workDirErr error
	connectErr error
	failSeqs   map[int]bool

	uploaded []int
	closed   bool
}

func (s *stubUploader) EnsureWorkDir() error              { return s.workDirErr }
func (s *stubUploader) Connect(ctx context.Context) error { return s.connectErr }
func (s *stubUploader) Session() *browser.Session         { return nil }
func (s *stubUploader) Close()                            { s.closed = true }

func (s *stubUploader) UploadVoucher(ctx context.Context, t *task.FileTask) error {
	if s.failSeqs[t.Seq] {
		return errors.New("upload rejected")
	}
	s.uploaded = append(s.uploaded, t.Seq)
	return nil
}

func testConfig(workDir string) *config.Config {
	return &config.Config{
		App:   config.AppConfig{WorkDir: workDir},
		Batch: config.BatchConfig{ReloadSettle: time.Millisecond},
	}
}

func seedFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestRunSkipsMissingNumbers(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "1. alpha (L-1).xlsx")
	seedFile(t, dir, "3. gamma (L-3).xlsx")

	up := &stubUploader{}
	r := NewRunner(up, testConfig(dir), zap.NewNop())

	res := r.Run(context.Background(), 1, 3)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 0, res.FailCount)
	assert.Empty(t, cmp.Diff([]int{1, 3}, up.uploaded))
	assert.True(t, up.closed)
}

func TestRunCountsFailuresAndContinues(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "1. alpha (L-1).xlsx")
	seedFile(t, dir, "2. beta (L-2).xlsx")
	seedFile(t, dir, "3. gamma (L-3).xlsx")

	up := &stubUploader{failSeqs: map[int]bool{2: true}}
	r := NewRunner(up, testConfig(dir), zap.NewNop())

	res := r.Run(context.Background(), 1, 3)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailCount)
	assert.Empty(t, cmp.Diff([]int{1, 3}, up.uploaded))
}

func TestRunCountsUnreadableLabelAsFailure(t *testing.T) {
	dir := t.TempDir()
	// No parenthesized label in the name.
	seedFile(t, dir, "1. alpha.xlsx")

	up := &stubUploader{}
	r := NewRunner(up, testConfig(dir), zap.NewNop())

	res := r.Run(context.Background(), 1, 1)

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 1, res.FailCount)
	assert.Empty(t, up.uploaded)
}

func TestRunStopsOnCancellation(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "1. alpha (L-1).xlsx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	up := &stubUploader{}
	r := NewRunner(up, testConfig(dir), zap.NewNop())

	res := r.Run(ctx, 1, 5)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
	assert.Empty(t, up.uploaded)
}

func TestRunRejectsInvalidRange(t *testing.T) {
	up := &stubUploader{}
	r := NewRunner(up, testConfig(t.TempDir()), zap.NewNop())

	res := r.Run(context.Background(), 5, 2)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "invalid range")
	assert.False(t, res.CompletedAt.IsZero())
}

func TestRunFailsFastOnBadWorkDir(t *testing.T) {
	up := &stubUploader{workDirErr: errors.New("no such directory")}
	r := NewRunner(up, testConfig(t.TempDir()), zap.NewNop())

	res := r.Run(context.Background(), 1, 2)

	assert.False(t, res.Success)
	assert.Equal(t, "work directory check failed", res.Message)
	assert.False(t, res.CompletedAt.IsZero())
	assert.False(t, up.closed)
}

func TestRunClosesOnConnectFailure(t *testing.T) {
	up := &stubUploader{connectErr: errors.New("unreachable")}
	r := NewRunner(up, testConfig(t.TempDir()), zap.NewNop())

	res := r.Run(context.Background(), 1, 2)

	assert.False(t, res.Success)
	assert.Equal(t, "connection failed", res.Message)
	assert.False(t, res.CompletedAt.IsZero())
	assert.True(t, up.closed)
}

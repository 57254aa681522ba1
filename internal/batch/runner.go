// File: internal/batch/runner.go
// Package batch runs the voucher upload scenario over a contiguous range of
// numbered spreadsheets, sharing one browser session across the whole range.
// Missing numbers are skipped; per-item failures are counted and the range
// continues.
package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/browser"
	"github.com/dkwon-dev/ezvoucher/internal/config"
	"github.com/dkwon-dev/ezvoucher/internal/task"
	"github.com/dkwon-dev/ezvoucher/internal/workflow"
)

// Uploader is the scenario surface the runner drives. *workflow.Engine
// satisfies it.
type Uploader interface {
	EnsureWorkDir() error
	Connect(ctx context.Context) error
	UploadVoucher(ctx context.Context, t *task.FileTask) error
	Session() *browser.Session
	Close()
}

// Runner iterates a numbered range and aggregates per-item outcomes.
type Runner struct {
	up     Uploader
	cfg    *config.Config
	logger *zap.Logger
}

// NewRunner builds a Runner over the given uploader.
func NewRunner(up Uploader, cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		up:     up,
		cfg:    cfg,
		logger: logger.Named("batch"),
	}
}

// Run processes every numbered spreadsheet in [start, end]. A number with no
// matching file is skipped and not counted; an item whose upload fails is
// counted as a failure and the range continues. The session reloads between
// items so each upload starts from the dashboard.
func (r *Runner) Run(ctx context.Context, start, end int) workflow.Result {
	if start > end {
		return workflow.Result{
			Success:     false,
			Message:     fmt.Sprintf("invalid range %d..%d", start, end),
			CompletedAt: time.Now(),
		}
	}
	if err := r.up.EnsureWorkDir(); err != nil {
		return workflow.Result{Success: false, Message: "work directory check failed", Err: err.Error(), CompletedAt: time.Now()}
	}
	if err := r.up.Connect(ctx); err != nil {
		r.up.Close()
		return workflow.Result{Success: false, Message: "connection failed", Err: err.Error(), CompletedAt: time.Now()}
	}

	var successCount, failCount int
	attempted := false
	for n := start; n <= end; n++ {
		if ctx.Err() != nil {
			r.logger.Warn("Range run cancelled.", zap.Int("at", n), zap.Error(ctx.Err()))
			break
		}

		// Reload between items, not before the first one.
		if attempted {
			if err := r.reload(ctx); err != nil {
				r.logger.Warn("Reload between items failed, continuing.", zap.Error(err))
			}
		}

		t, err := task.NewFileTask(r.cfg.App.WorkDir, n)
		if err != nil {
			r.logger.Error("File task preparation failed.", zap.Int("seq", n), zap.Error(err))
			failCount++
			attempted = true
			continue
		}
		if t == nil {
			r.logger.Info("No spreadsheet for this number, skipping.", zap.Int("seq", n))
			continue
		}
		attempted = true

		if err := r.up.UploadVoucher(ctx, t); err != nil {
			r.logger.Error("Upload failed, continuing with the range.",
				zap.Int("seq", n), zap.String("file", t.Path), zap.Error(err))
			failCount++
			continue
		}
		successCount++
	}

	msg := fmt.Sprintf("range %d..%d complete: %d uploaded, %d failed", start, end, successCount, failCount)
	res := workflow.Result{
		Success:      failCount == 0 && ctx.Err() == nil,
		Message:      msg,
		CompletedAt:  time.Now(),
		SuccessCount: successCount,
		FailCount:    failCount,
	}
	if ctx.Err() != nil {
		res.Err = ctx.Err().Error()
	}

	if s := r.up.Session(); s != nil {
		s.Alert(msg, 10*time.Second)
	}
	if !r.cfg.App.KeepBrowserOpen {
		r.up.Close()
	}
	r.logger.Info("Range run finished.",
		zap.Int("success", successCount), zap.Int("fail", failCount))
	return res
}

// reload brings the session back to the dashboard and lets it settle.
func (r *Runner) reload(ctx context.Context) error {
	s := r.up.Session()
	if s == nil {
		return nil
	}
	if err := s.Reload(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.cfg.Batch.ReloadSettle):
		return nil
	}
}

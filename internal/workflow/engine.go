// File: internal/workflow/engine.go
// Package workflow orchestrates the two ERP scenarios: voucher spreadsheet
// upload and purchase-invoice ingestion. The Engine owns exactly one browser
// session and the login state for it; scenarios are methods layered on top.
package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/browser"
	"github.com/dkwon-dev/ezvoucher/internal/config"
	"github.com/dkwon-dev/ezvoucher/internal/macro"
)

// Engine drives scenarios against one authenticated browser session.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
	creds  Credentials
	notify Notifier
	bridge macro.Bridge

	session  *browser.Session
	waiter   *browser.Waiter
	resolver *browser.Resolver
	actions  *browser.Actions

	connected bool
	loggedIn  bool
}

// NewEngine builds an Engine. The bridge may be nil for scenarios that never
// transform a workbook.
func NewEngine(cfg *config.Config, creds Credentials, notify Notifier, bridge macro.Bridge, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("workflow"),
		creds:  creds,
		notify: notify,
		bridge: bridge,
	}
}

// EnsureWorkDir verifies the voucher working directory before any browser
// work is started. A missing directory fails the run immediately.
func (e *Engine) EnsureWorkDir() error {
	dir := e.cfg.App.WorkDir
	if dir == "" {
		return fmt.Errorf("work directory is not configured")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("work directory %s is not accessible: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("work directory %s is not a directory", dir)
	}
	return nil
}

// Connect opens the browser session, loads the dashboard and logs in when
// the login form is shown. Calling Connect on a live authenticated session
// is a no-op; a second scenario must never trigger a second login.
func (e *Engine) Connect(ctx context.Context) error {
	if e.connected {
		e.logger.Debug("Session already connected, skipping.")
		return nil
	}
	e.notify.emit("connect", StateRunning, "opening browser session")

	s, err := browser.NewSession(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("opening browser session: %w", err)
	}
	e.session = s
	e.waiter = browser.NewWaiter(s, e.cfg.Wait, e.logger)
	e.resolver = browser.NewResolver(e.waiter, e.logger)
	e.actions = browser.NewActions(s, e.waiter, e.resolver, e.cfg.Wait, e.logger)

	if err := s.NavigateWithRetry(ctx, e.cfg.App.BaseURL); err != nil {
		return err
	}

	if err := e.maybeLogin(ctx); err != nil {
		return err
	}

	if !e.waiter.ForPageReady(ctx) {
		e.logger.Warn("Dashboard readiness not confirmed, continuing after a settle.")
		e.waiter.Sleep(ctx, e.cfg.Wait.SettleMedium)
	}

	e.connected = true
	e.notify.emit("connect", StateDone, "session ready")
	return nil
}

// Session exposes the underlying browser session, nil before Connect.
func (e *Engine) Session() *browser.Session { return e.session }

// Close tears down the browser session if one is open.
func (e *Engine) Close() {
	if e.session != nil {
		e.session.Close()
		e.session = nil
		e.connected = false
		e.loggedIn = false
	}
}

// closeUnlessKeptOpen applies the voucher-path teardown policy: the browser
// closes on completion unless the operator asked to keep it.
func (e *Engine) closeUnlessKeptOpen() {
	if e.cfg.App.KeepBrowserOpen {
		e.logger.Info("Leaving browser open per configuration.")
		return
	}
	e.Close()
}

// report wraps a scenario outcome into a Result and surfaces it to the
// operator via the in-page banner when a session is still alive.
func (e *Engine) report(success bool, msg string, err error) Result {
	res := Result{
		Success:     success,
		Message:     msg,
		CompletedAt: time.Now(),
	}
	if err != nil {
		res.Err = err.Error()
	}
	if e.session != nil {
		e.session.Alert(msg, 10*time.Second)
	}
	return res
}

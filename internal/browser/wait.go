// File: internal/browser/wait.go
// Bounded, non-throwing wait primitives. Every wait returns a plain verdict
// (bool, or the matched selector) instead of an error; running out of time is
// an expected outcome the caller branches on, not a failure.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dkwon-dev/ezvoucher/internal/config"
)

// Loading indicators the target application shows while a page or a grid is
// still assembling.
const (
	loadingIndicators = `.loading, .spinner, [data-loading="true"]`
	gridSpinners      = `.loading, .spinner, .ms-Spinner, [aria-label*="로딩"], [aria-label*="Loading"], .dyn-loading, .loadingSpinner`
	gridContainers    = `[data-dyn-controlname*="Grid"], .dyn-grid, div[role="grid"], table[role="grid"], [class*="grid"], table`
	gridRows          = `tr, [role="row"], [data-dyn-row]`
)

// Waiter polls the page DOM at a fixed pace and answers presence questions
// within a deadline.
type Waiter struct {
	s       *Session
	cfg     config.WaitConfig
	logger  *zap.Logger
	limiter *rate.Limiter

	// eval answers one DOM condition probe. Tests swap it out.
	eval func(ctx context.Context, expr string) bool
}

// NewWaiter builds a Waiter paced by the configured poll interval.
func NewWaiter(s *Session, cfg config.WaitConfig, logger *zap.Logger) *Waiter {
	w := &Waiter{
		s:       s,
		cfg:     cfg,
		logger:  logger.Named("wait"),
		limiter: rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
	}
	w.eval = w.evalPage
	return w
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// evalPage evaluates expr in the page and reports whether it was truthy.
// Evaluation failures count as false; a detached or navigating page simply
// has not satisfied the condition yet.
func (w *Waiter) evalPage(ctx context.Context, expr string) bool {
	opCtx, opCancel := context.WithTimeout(w.s.Context(), w.cfg.PollInterval*4)
	defer opCancel()
	if err := ctx.Err(); err != nil {
		return false
	}
	var out bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(expr, &out)); err != nil {
		return false
	}
	return out
}

// pace blocks until the next poll slot or the context ends. Returns false
// when the wait should stop.
func (w *Waiter) pace(ctx context.Context) bool {
	return w.limiter.Wait(ctx) == nil
}

// Sleep pauses for d or until ctx ends. Used for the named settle delays.
func (w *Waiter) Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// ForElement reports whether an element matching sel appears within timeout.
func (w *Waiter) ForElement(ctx context.Context, sel string, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(sel))
	for {
		if w.eval(waitCtx, expr) {
			return true
		}
		if !w.pace(waitCtx) {
			return false
		}
	}
}

// ForClickable reports whether an element matching sel is present, visible
// and enabled within timeout.
func (w *Waiter) ForClickable(ctx context.Context, sel string, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.disabled) return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, jsString(sel))
	for {
		if w.eval(waitCtx, expr) {
			return true
		}
		if !w.pace(waitCtx) {
			return false
		}
	}
}

// ForPageReady reports whether the document reached readyState complete with
// no loading indicator visible, then applies the short settle delay so the
// framework can finish wiring the page.
func (w *Waiter) ForPageReady(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, w.cfg.PageReady)
	defer cancel()
	expr := fmt.Sprintf(`(() => {
		if (document.readyState !== 'complete') return false;
		for (const el of document.querySelectorAll(%s)) {
			const rect = el.getBoundingClientRect();
			if (rect.width > 0 && rect.height > 0) return false;
		}
		return true;
	})()`, jsString(loadingIndicators))
	for {
		if w.eval(waitCtx, expr) {
			w.Sleep(ctx, w.cfg.SettleShort)
			return true
		}
		if !w.pace(waitCtx) {
			return false
		}
	}
}

// ForAnyElement races the given selectors and returns the first one that
// appears within timeout, or "" when none does. An empty list returns ""
// immediately.
func (w *Waiter) ForAnyElement(ctx context.Context, selectors []string, timeout time.Duration) string {
	if len(selectors) == 0 {
		return ""
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(chan string, len(selectors))
	g, gctx := errgroup.WithContext(waitCtx)
	for _, sel := range selectors {
		sel := sel
		expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(sel))
		g.Go(func() error {
			// Each racer owns its own pacer so one slow selector cannot
			// starve the others.
			limiter := rate.NewLimiter(rate.Every(w.cfg.PollInterval), 1)
			for {
				if w.eval(gctx, expr) {
					found <- sel
					cancel()
					return nil
				}
				if limiter.Wait(gctx) != nil {
					return nil
				}
			}
		})
	}
	_ = g.Wait()

	select {
	case sel := <-found:
		return sel
	default:
		return ""
	}
}

// ForText reports whether an element matching sel whose text contains text
// appears within timeout.
func (w *Waiter) ForText(ctx context.Context, sel, text string, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	expr := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll(%s)) {
			if ((el.textContent || '').includes(%s)) return true;
		}
		return false;
	})()`, jsString(sel), jsString(text))
	for {
		if w.eval(waitCtx, expr) {
			return true
		}
		if !w.pace(waitCtx) {
			return false
		}
	}
}

// ForDataTable waits for the inquiry grid to finish loading: first the
// spinner has to drain, then a single stabilization pause is applied, and
// only then is the grid inspected for rows. If loading resumes during the
// pause the stabilization is re-armed. The whole wait is capped by the
// configured data-table timeout.
func (w *Waiter) ForDataTable(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, w.cfg.DataTableTimeout)
	defer cancel()

	spinnerExpr := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll(%s)) {
			const rect = el.getBoundingClientRect();
			if (rect.width > 0 && rect.height > 0) return true;
		}
		return false;
	})()`, jsString(gridSpinners))

	gridExpr := fmt.Sprintf(`(() => {
		for (const grid of document.querySelectorAll(%s)) {
			if (grid.querySelector(%s)) return true;
		}
		return false;
	})()`, jsString(gridContainers), jsString(gridRows))

	stabilized := false
	for {
		if w.eval(waitCtx, spinnerExpr) {
			// Loading (re)started; the stabilization pause must run again
			// once it drains.
			stabilized = false
			if !w.pace(waitCtx) {
				return false
			}
			continue
		}

		if !stabilized {
			w.logger.Debug("Grid spinner drained, stabilizing.",
				zap.Duration("pause", w.cfg.TableStabilization))
			w.Sleep(waitCtx, w.cfg.TableStabilization)
			stabilized = true
			continue
		}

		if w.eval(waitCtx, gridExpr) {
			return true
		}
		if !w.pace(waitCtx) {
			return false
		}
	}
}

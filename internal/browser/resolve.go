// File: internal/browser/resolve.go
// Multi-strategy element resolution. A target is described by an ordered list
// of strategies, tried one at a time; the first hit wins and the rest are
// never evaluated. Exhausting the list produces an ExhaustedError naming
// every strategy that was tried, so the scenario log shows exactly how hard
// the resolver looked.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Strategy is one way of locating a target element. Find returns a CSS
// selector addressing the match, "" when the strategy found nothing, or an
// error for genuine evaluation failures. Scripted strategies tag their match
// with a transient data attribute and return a selector for that attribute.
type Strategy struct {
	Name string
	Find func(ctx context.Context) (string, error)
}

// ExhaustedError reports that every strategy for a target failed.
type ExhaustedError struct {
	Target string
	Tried  []string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("could not locate %q, tried: %s", e.Target, strings.Join(e.Tried, ", "))
}

// Resolver runs strategy lists against the live page.
type Resolver struct {
	w      *Waiter
	logger *zap.Logger
}

// NewResolver builds a Resolver on top of the given Waiter.
func NewResolver(w *Waiter, logger *zap.Logger) *Resolver {
	return &Resolver{w: w, logger: logger.Named("resolve")}
}

// Resolve tries each strategy in order and returns the selector of the first
// match. All strategies failing yields an *ExhaustedError.
func (r *Resolver) Resolve(ctx context.Context, target string, strategies []Strategy) (string, error) {
	tried := make([]string, 0, len(strategies))
	for _, st := range strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sel, err := st.Find(ctx)
		if err != nil {
			r.logger.Debug("Strategy errored.",
				zap.String("target", target),
				zap.String("strategy", st.Name),
				zap.Error(err))
		} else if sel != "" {
			r.logger.Debug("Target resolved.",
				zap.String("target", target),
				zap.String("strategy", st.Name),
				zap.String("selector", sel))
			return sel, nil
		}
		tried = append(tried, st.Name)
	}
	return "", &ExhaustedError{Target: target, Tried: tried}
}

// markerToken returns a fresh value for the transient match attribute.
func markerToken() string {
	return uuid.New().String()[:8]
}

// BySelector waits for sel to appear and returns it verbatim.
func BySelector(w *Waiter, sel string, timeout time.Duration) Strategy {
	return Strategy{
		Name: "selector " + sel,
		Find: func(ctx context.Context) (string, error) {
			if w.ForElement(ctx, sel, timeout) {
				return sel, nil
			}
			return "", nil
		},
	}
}

// ByAnySelector races the candidate selectors and returns the first present.
func ByAnySelector(w *Waiter, selectors []string, timeout time.Duration) Strategy {
	return Strategy{
		Name: fmt.Sprintf("any of %d selectors", len(selectors)),
		Find: func(ctx context.Context) (string, error) {
			return w.ForAnyElement(ctx, selectors, timeout), nil
		},
	}
}

// ByTextScan scans elements matching scope for one whose visible text
// contains text, tags it, and returns the tag selector.
func ByTextScan(w *Waiter, scope, text string, timeout time.Duration) Strategy {
	return Strategy{
		Name: fmt.Sprintf("text %q within %s", text, scope),
		Find: func(ctx context.Context) (string, error) {
			token := markerToken()
			expr := fmt.Sprintf(`(() => {
				for (const el of document.querySelectorAll(%s)) {
					const rect = el.getBoundingClientRect();
					if (rect.width === 0 || rect.height === 0) continue;
					if ((el.textContent || '').includes(%s)) {
						el.setAttribute('data-ez-hit', %s);
						return true;
					}
				}
				return false;
			})()`, jsString(scope), jsString(text), jsString(token))

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			for {
				if w.eval(waitCtx, expr) {
					return fmt.Sprintf(`[data-ez-hit=%q]`, token), nil
				}
				if !w.pace(waitCtx) {
					return "", nil
				}
			}
		},
	}
}

// ByScript evaluates a caller-provided expression that either tags a match
// and returns true, or returns false. The expression receives the marker
// token as the __EZ_TOKEN__ placeholder.
func ByScript(w *Waiter, name, expr string, timeout time.Duration) Strategy {
	return Strategy{
		Name: name,
		Find: func(ctx context.Context) (string, error) {
			token := markerToken()
			bound := strings.ReplaceAll(expr, "__EZ_TOKEN__", token)

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			for {
				if w.eval(waitCtx, bound) {
					return fmt.Sprintf(`[data-ez-hit=%q]`, token), nil
				}
				if !w.pace(waitCtx) {
					return "", nil
				}
			}
		},
	}
}

// ByLargestVisibleInput tags the visible text input with the largest area.
// Last-resort heuristic for forms whose input IDs shift between deployments.
func ByLargestVisibleInput(w *Waiter, timeout time.Duration) Strategy {
	return ByScript(w, "largest visible input", `(() => {
		let best = null, bestArea = 0;
		for (const el of document.querySelectorAll('input[type="text"], input:not([type])')) {
			const rect = el.getBoundingClientRect();
			const area = rect.width * rect.height;
			if (area > bestArea) { best = el; bestArea = area; }
		}
		if (!best) return false;
		best.setAttribute('data-ez-hit', '__EZ_TOKEN__');
		return true;
	})()`, timeout)
}

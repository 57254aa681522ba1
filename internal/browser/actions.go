// File: internal/browser/actions.go
// Action steps over a resolved session. Each step layers fallbacks the way
// the target application demands: native input first, scripted event
// dispatch when the framework swallows native events, and an operator prompt
// when nothing mechanical works.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/config"
)

// Actions executes interaction steps against the session tab.
type Actions struct {
	s      *Session
	w      *Waiter
	r      *Resolver
	cfg    config.WaitConfig
	logger *zap.Logger
}

// NewActions wires the step executor.
func NewActions(s *Session, w *Waiter, r *Resolver, cfg config.WaitConfig, logger *zap.Logger) *Actions {
	return &Actions{s: s, w: w, r: r, cfg: cfg, logger: logger.Named("action")}
}

// Resolver exposes the underlying resolver for scenario-built strategy lists.
func (a *Actions) Resolver() *Resolver { return a.r }

// Waiter exposes the underlying wait primitives.
func (a *Actions) Waiter() *Waiter { return a.w }

// Click clicks the element at sel. A native click is attempted first; if the
// framework ignores it (detached overlays, synthetic buttons) the click is
// dispatched from script.
func (a *Actions) Click(ctx context.Context, sel string) error {
	err := a.s.Run(a.cfg.Clickable,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	a.logger.Debug("Native click failed, dispatching from script.",
		zap.String("selector", sel), zap.Error(err))

	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.click();
		return true;
	})()`, jsString(sel))
	var ok bool
	if evalErr := a.s.Eval(a.cfg.Clickable, expr, &ok); evalErr != nil || !ok {
		return fmt.Errorf("click on %s failed: %w", sel, err)
	}
	return nil
}

// ClickResolved resolves the target through the strategy list and clicks it.
func (a *Actions) ClickResolved(ctx context.Context, target string, strategies []Strategy) error {
	sel, err := a.r.Resolve(ctx, target, strategies)
	if err != nil {
		return err
	}
	return a.Click(ctx, sel)
}

// DoubleClick double-clicks the element at sel.
func (a *Actions) DoubleClick(ctx context.Context, sel string) error {
	if err := a.s.Run(a.cfg.Clickable,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.DoubleClick(sel, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("double click on %s failed: %w", sel, err)
	}
	return nil
}

// TypeText focuses sel and types text with native key events. When native
// input does not stick (virtualized inputs that only honor framework events)
// the value is set from script with input and change events dispatched.
func (a *Actions) TypeText(ctx context.Context, sel, text string) error {
	err := a.s.Run(a.cfg.Element,
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	a.logger.Debug("Native typing failed, setting value from script.",
		zap.String("selector", sel), zap.Error(err))
	if scriptErr := a.SetValueScript(ctx, sel, text); scriptErr != nil {
		return fmt.Errorf("typing into %s failed: %w", sel, err)
	}
	return nil
}

// ClearAndType selects the current content of sel and replaces it with text.
func (a *Actions) ClearAndType(ctx context.Context, sel, text string) error {
	selectAll := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		if (el.select) el.select();
		return true;
	})()`, jsString(sel))

	var ok bool
	if err := a.s.Eval(a.cfg.Element, selectAll, &ok); err != nil || !ok {
		return fmt.Errorf("could not focus %s for clearing", sel)
	}
	if err := a.s.Run(a.cfg.Element,
		chromedp.SendKeys(sel, kb.Backspace, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("clearing %s failed: %w", sel, err)
	}
	return a.TypeText(ctx, sel, text)
}

// SetValueScript writes value into sel and fires the input and change events
// the framework listens for.
func (a *Actions) SetValueScript(ctx context.Context, sel, value string) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = %s;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, jsString(sel), jsString(value))

	var ok bool
	if err := a.s.Eval(a.cfg.Element, expr, &ok); err != nil {
		return fmt.Errorf("scripted value set on %s failed: %w", sel, err)
	}
	if !ok {
		return fmt.Errorf("scripted value set on %s: element not found", sel)
	}
	return nil
}

// FileSelect attaches path to the page's file input. Candidates are tried in
// order; when none is present a hidden input is searched for; as a last
// resort the operator is prompted and given a fixed window to attach the
// file by hand.
func (a *Actions) FileSelect(ctx context.Context, candidates []string, path string) error {
	for _, sel := range candidates {
		if !a.w.ForElement(ctx, sel, a.cfg.Element) {
			continue
		}
		if err := a.s.Run(a.cfg.Element,
			chromedp.SetUploadFiles(sel, []string{path}, chromedp.ByQuery),
		); err != nil {
			a.logger.Debug("Upload via candidate failed.",
				zap.String("selector", sel), zap.Error(err))
			continue
		}
		a.logger.Info("File attached.", zap.String("selector", sel), zap.String("file", path))
		return nil
	}

	// The browse button often fronts an input the page keeps off-screen.
	token := markerToken()
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector('input[type="file"]');
		if (!el) return false;
		el.setAttribute('data-ez-hit', %s);
		return true;
	})()`, jsString(token))
	var ok bool
	if err := a.s.Eval(a.cfg.Element, expr, &ok); err == nil && ok {
		hidden := fmt.Sprintf(`[data-ez-hit=%q]`, token)
		if err := a.s.Run(a.cfg.Element,
			chromedp.SetUploadFiles(hidden, []string{path}, chromedp.ByQuery),
		); err == nil {
			a.logger.Info("File attached to hidden input.", zap.String("file", path))
			return nil
		}
	}

	a.logger.Warn("Automated file attach failed, prompting the operator.",
		zap.String("file", path),
		zap.Duration("window", a.cfg.ManualFallbackWindow))
	a.s.Alert(fmt.Sprintf("파일을 직접 선택해 주세요: %s", path), a.cfg.ManualFallbackWindow)
	a.w.Sleep(ctx, a.cfg.ManualFallbackWindow)
	return nil
}

// ContextMenuSelect opens the context menu on targetSel and clicks the entry
// whose text contains entryText, searching only inside popupScope so an
// unrelated menu cannot be hit.
func (a *Actions) ContextMenuSelect(ctx context.Context, targetSel, popupScope, entryText string) error {
	dispatch := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const rect = el.getBoundingClientRect();
		el.dispatchEvent(new MouseEvent('contextmenu', {
			bubbles: true,
			cancelable: true,
			button: 2,
			buttons: 2,
			clientX: rect.left + rect.width / 2,
			clientY: rect.top + rect.height / 2
		}));
		return true;
	})()`, jsString(targetSel))

	var ok bool
	if err := a.s.Eval(a.cfg.Clickable, dispatch, &ok); err != nil || !ok {
		return fmt.Errorf("context menu dispatch on %s failed", targetSel)
	}

	if !a.w.ForElement(ctx, popupScope, a.cfg.Element) {
		return fmt.Errorf("context menu popup %s did not appear", popupScope)
	}

	sel, err := a.r.Resolve(ctx, "context menu entry "+entryText, []Strategy{
		ByTextScan(a.w, popupScope+" *", entryText, a.cfg.Element),
	})
	if err != nil {
		return err
	}
	return a.Click(ctx, sel)
}

// PressKey sends a bare key event to the page.
func (a *Actions) PressKey(ctx context.Context, key string) error {
	if err := a.s.Run(a.cfg.Element, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

// PressEnter commits the focused field.
func (a *Actions) PressEnter(ctx context.Context) error {
	return a.PressKey(ctx, kb.Enter)
}

// PressTab moves focus to the next field, which is how the application
// commits date inputs.
func (a *Actions) PressTab(ctx context.Context) error {
	return a.PressKey(ctx, kb.Tab)
}

// PressAltEnter posts the current journal, the application's global post
// shortcut.
func (a *Actions) PressAltEnter(ctx context.Context) error {
	if err := a.s.Run(a.cfg.Element,
		chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierAlt)),
	); err != nil {
		return fmt.Errorf("alt+enter failed: %w", err)
	}
	return nil
}

// Settle pauses for one of the named settle delays.
func (a *Actions) Settle(ctx context.Context, d time.Duration) {
	a.w.Sleep(ctx, d)
}

// File: internal/workflow/voucher.go
// The voucher upload scenario: from the dashboard through the favorites
// menu into the journal upload form, attach the numbered spreadsheet and
// confirm the import. Every landmark is resolved through a strategy list;
// the form markup drifts between deployments and single selectors do not
// survive it.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/browser"
	"github.com/dkwon-dev/ezvoucher/internal/task"
)

const journalTemplateName = "일반전표(ARK)"

// UploadVoucher runs the upload form end to end for one file task. Failing
// to enter the journal label is terminal for the scenario; the batch runner
// is what turns that into a counted per-item failure.
func (e *Engine) UploadVoucher(ctx context.Context, t *task.FileTask) error {
	log := e.logger.With(zap.Int("seq", t.Seq), zap.String("file", t.Path))
	log.Info("Starting voucher upload.")
	e.notify.emit("upload", StateRunning, fmt.Sprintf("uploading %s", t.Path))

	w, r, a := e.waiter, e.resolver, e.actions
	wait := e.cfg.Wait

	// Favorites icon on the dashboard.
	if err := a.ClickResolved(ctx, "favorites icon", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`span.workspace-image.StarEmpty-symbol[data-dyn-title="즐겨찾기"][data-dyn-image-type="Symbol"]`,
			`span.workspace-image.StarEmpty-symbol[data-dyn-title="즐겨찾기"]`,
			`.StarEmpty-symbol`,
		}, wait.Element),
		browser.ByScript(w, "star class scan", `(() => {
			for (const span of document.querySelectorAll('span')) {
				if (span.classList.contains('StarEmpty-symbol') ||
					(span.className && String(span.className).includes('StarEmpty'))) {
					span.setAttribute('data-ez-hit', '__EZ_TOKEN__');
					return true;
				}
			}
			return false;
		})()`, wait.Element),
	}); err != nil {
		return fmt.Errorf("opening favorites: %w", err)
	}
	a.Settle(ctx, wait.SettleShort)

	// "엑셀 전표 업로드" entry in the favorites flyout.
	if err := a.ClickResolved(ctx, "journal upload menu", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`div.modulesPane-link.modulesFlyout-isFavorite[data-dyn-selected="false"][role="treeitem"] a.modulesPane-linkText[data-dyn-title="엑셀 전표 업로드"][role="link"]`,
			`div[data-dyn-title="엑셀 전표 업로드"]`,
			`.modulesPane-link a.modulesPane-linkText[data-dyn-title="엑셀 전표 업로드"]`,
		}, wait.Element),
		browser.ByTextScan(w, `.modulesPane-link, .modulesFlyout-isFavorite, a.modulesPane-linkText, a[role="link"]`,
			"엑셀 전표 업로드", wait.Element),
	}); err != nil {
		return fmt.Errorf("opening journal upload menu: %w", err)
	}
	if !w.ForPageReady(ctx) {
		a.Settle(ctx, wait.SettleMedium)
	}

	// Journal name lookup.
	if err := a.ClickResolved(ctx, "journal lookup button", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`.lookupButton[title="오픈"]`,
			`.lookupButton`,
		}, wait.Element),
	}); err != nil {
		return fmt.Errorf("opening journal lookup: %w", err)
	}
	a.Settle(ctx, wait.SettleMedium)

	// Journal template row.
	if err := a.ClickResolved(ctx, "journal template field", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			fmt.Sprintf(`input[value=%q]`, journalTemplateName),
			fmt.Sprintf(`input[title=%q]`, journalTemplateName),
			`#SysGen_Name_125_0_0_input`,
		}, wait.Element),
		browser.ByScript(w, "template value scan", fmt.Sprintf(`(() => {
			for (const inp of document.querySelectorAll('input[type="text"]')) {
				if (inp.value === %q || inp.title === %q) {
					inp.setAttribute('data-ez-hit', '__EZ_TOKEN__');
					return true;
				}
			}
			return false;
		})()`, journalTemplateName, journalTemplateName), wait.Element),
	}); err != nil {
		return fmt.Errorf("selecting journal template: %w", err)
	}
	a.Settle(ctx, wait.SettleShort)

	// Mandatory label entry. Exhausting every tier aborts the scenario.
	a.Settle(ctx, wait.SettleMedium)
	if err := e.enterLabel(ctx, t.Label); err != nil {
		return err
	}
	a.Settle(ctx, wait.SettleShort)

	// Upload button.
	if err := a.ClickResolved(ctx, "upload button", []browser.Strategy{
		browser.BySelector(w, `#kpc_exceluploadforledgerjournal_2_UploadButton_label`, wait.Element),
		browser.ByTextScan(w, `span.button-label, span[id*="UploadButton_label"]`, "업로드", wait.Element),
		browser.ByTextScan(w, `button, div.button-container, [role="button"]`, "업로드", wait.Element),
	}); err != nil {
		return fmt.Errorf("clicking upload button: %w", err)
	}

	// File attach. The browse button fronts a file input; setting the files
	// on the input directly avoids the native picker entirely.
	if w.ForAnyElement(ctx, []string{
		`#Dialog_4_UploadBrowseButton`,
		`button[name="UploadBrowseButton"]`,
		`input[type="file"]`,
	}, wait.Element) == "" {
		log.Warn("Browse controls not confirmed, continuing after a settle.")
		a.Settle(ctx, wait.SettleShort)
	}
	if err := a.FileSelect(ctx, []string{`input[type="file"]`}, t.Path); err != nil {
		return fmt.Errorf("attaching spreadsheet: %w", err)
	}
	a.Settle(ctx, wait.SettleMedium)

	// Dialog OK, best effort: on some form versions the attach commits
	// without it.
	if sel, err := r.Resolve(ctx, "file dialog confirm", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`#Dialog_4_OkButton`,
			`button[name="OkButton"]`,
			`#Dialog_4_OkButton_label`,
		}, wait.Element),
		browser.ByTextScan(w, `button, span.button-label`, "확인", wait.Element),
	}); err != nil {
		log.Warn("File dialog confirm not found, asking the operator.", zap.Error(err))
		e.session.Alert("확인 버튼을 수동으로 클릭해 주세요.", wait.ManualConfirmWindow)
		w.Sleep(ctx, wait.ManualConfirmWindow)
	} else if err := a.Click(ctx, sel); err != nil {
		log.Warn("File dialog confirm click failed, continuing.", zap.Error(err))
	}

	// Final OK on the upload form.
	a.Settle(ctx, wait.SettleLong)
	if sel, err := r.Resolve(ctx, "final upload confirm", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`#kpc_exceluploadforledgerjournal_2_OKButton`,
			`button[name="OKButton"][id*="kpc_exceluploadforledgerjournal"]`,
			`#kpc_exceluploadforledgerjournal_2_OKButton_label`,
		}, wait.Element),
		browser.ByTextScan(w, `button.dynamicsButton .button-label`, "확인", wait.Element),
	}); err != nil {
		log.Warn("Final confirm not found, asking the operator.", zap.Error(err))
		e.session.Alert("마지막 확인 버튼을 수동으로 클릭해 주세요.", wait.ManualConfirmWindow)
		w.Sleep(ctx, wait.ManualConfirmWindow)
	} else if err := a.Click(ctx, sel); err != nil {
		return fmt.Errorf("clicking final confirm: %w", err)
	}

	a.Settle(ctx, wait.SettleMedium)
	log.Info("Voucher upload complete.")
	e.notify.emit("upload", StateDone, fmt.Sprintf("uploaded %s", t.Path))
	return nil
}

// enterLabel writes the journal label through five tiers of resolution,
// from the exact form control ID down to the largest visible input. The
// label is mandatory; when every tier fails the scenario must stop rather
// than import an unlabeled journal.
func (e *Engine) enterLabel(ctx context.Context, label string) error {
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	tiers := []struct {
		strategy browser.Strategy
		scripted bool
	}{
		{browser.ByAnySelector(w, []string{
			`#kpc_exceluploadforledgerjournal_2_FormStringControl_Txt_input`,
			`input[id*="FormStringControl_Txt_input"]`,
			`input[id*="kpc_exceluploadforledgerjournal"][id*="Txt_input"]`,
		}, wait.Element), false},
		{browser.ByAnySelector(w, []string{
			`input.textbox.field.displayoption[role="textbox"]`,
			`input.textbox.field.displayoption`,
			`input.textbox[role="textbox"]`,
			`input[class*="textbox"][class*="field"]`,
		}, wait.Element), false},
		{browser.ByScript(w, "textbox role scan", `(() => {
			for (const inp of document.querySelectorAll('input[role="textbox"]')) {
				if (String(inp.className).includes('textbox') ||
					(inp.id || '').includes('FormStringControl_Txt_input')) {
					inp.setAttribute('data-ez-hit', '__EZ_TOKEN__');
					return true;
				}
			}
			return false;
		})()`, wait.Element), true},
		{browser.ByScript(w, "description heuristic", `(() => {
			for (const inp of document.querySelectorAll('input[type="text"], input:not([type]), textarea')) {
				if ((inp.placeholder || '').includes('설명') ||
					(inp.title || '').includes('설명') ||
					(inp.getAttribute('aria-label') || '').includes('설명') ||
					(inp.id || '').includes('Description') ||
					(inp.id || '').includes('Txt')) {
					inp.setAttribute('data-ez-hit', '__EZ_TOKEN__');
					return true;
				}
			}
			return false;
		})()`, wait.Element), true},
		{browser.ByLargestVisibleInput(w, wait.Element), true},
	}

	var tried []string
	for _, tier := range tiers {
		sel, err := e.resolver.Resolve(ctx, "journal label field", []browser.Strategy{tier.strategy})
		if err != nil {
			tried = append(tried, tier.strategy.Name)
			continue
		}

		var entryErr error
		if tier.scripted {
			entryErr = a.SetValueScript(ctx, sel, label)
		} else {
			entryErr = a.TypeText(ctx, sel, label)
		}
		if entryErr != nil {
			e.logger.Warn("Label entry tier failed after resolving.",
				zap.String("strategy", tier.strategy.Name), zap.Error(entryErr))
			tried = append(tried, tier.strategy.Name)
			continue
		}

		e.logger.Info("Journal label entered.",
			zap.String("label", label), zap.String("strategy", tier.strategy.Name))
		return nil
	}

	return fmt.Errorf("entering journal label %q: %w", label,
		&browser.ExhaustedError{Target: "journal label field", Tried: tried})
}

// RunUploadScenario processes a single numbered file: validate the working
// set, connect, upload, report. On this path a missing file and a label
// failure are both terminal, and the browser closes with the run.
func (e *Engine) RunUploadScenario(ctx context.Context, seq int) Result {
	if err := e.EnsureWorkDir(); err != nil {
		return Result{Success: false, Message: "work directory check failed", Err: err.Error(), CompletedAt: time.Now()}
	}

	t, err := task.NewFileTask(e.cfg.App.WorkDir, seq)
	if err != nil {
		return Result{Success: false, Message: "file task preparation failed", Err: err.Error(), CompletedAt: time.Now()}
	}
	if t == nil {
		return Result{
			Success:     false,
			Message:     fmt.Sprintf("no spreadsheet starting with %d. found in %s", seq, e.cfg.App.WorkDir),
			CompletedAt: time.Now(),
		}
	}

	if err := e.Connect(ctx); err != nil {
		e.Close()
		return Result{Success: false, Message: "connection failed", Err: err.Error(), CompletedAt: time.Now()}
	}

	if err := e.UploadVoucher(ctx, t); err != nil {
		e.notify.emit("upload", StateError, err.Error())
		res := e.report(false, fmt.Sprintf("upload of %s failed", t.Path), err)
		e.Close()
		return res
	}

	res := e.report(true, fmt.Sprintf("voucher %d uploaded", seq), nil)
	e.closeUnlessKeptOpen()
	return res
}

// File: internal/workflow/invoice.go
// The purchase-invoice scenario: export the month's receiving data from the
// inquiry grid, reshape it through the spreadsheet engine, then walk the
// pending vendor invoice form once per purchase-order group. The browser is
// deliberately left open at the end so the operator can review the posted
// journals.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/browser"
	"github.com/dkwon-dev/ezvoucher/internal/macro"
	"github.com/dkwon-dev/ezvoucher/internal/task"
)

const (
	receivingInquiryMenu = "구매 입고내역 조회"
	pendingInvoiceMenu   = "대기중인 공급사송장"
)

// jsQuote encodes s as a JavaScript string literal.
func jsQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// monthBounds returns the first and last day of t's month in the M/d/YYYY
// form the date fields expect.
func monthBounds(t time.Time) (from, to string) {
	year, month, _ := t.Date()
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location()).Day()
	from = fmt.Sprintf("%d/1/%d", int(month), year)
	to = fmt.Sprintf("%d/%d/%d", int(month), lastDay, year)
	return from, to
}

// openSearch opens the global search, types the term and activates the
// matching result, pressing Enter as a fallback when no result element is
// matched directly.
func (e *Engine) openSearch(ctx context.Context, term, resultText string) error {
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	if err := a.ClickResolved(ctx, "search button", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`.button-commandRing.Find-symbol`,
			`span.Find-symbol`,
			`[data-dyn-image-type="Symbol"].Find-symbol`,
			`.button-container .Find-symbol`,
		}, wait.Element),
		browser.ByScript(w, "find symbol scan", `(() => {
			for (const btn of document.querySelectorAll('.Find-symbol, [data-dyn-image-type="Symbol"]')) {
				if (btn.classList.contains('Find-symbol') ||
					btn.getAttribute('data-dyn-image-type') === 'Symbol') {
					btn.setAttribute('data-ez-hit', '__EZ_TOKEN__');
					return true;
				}
			}
			return false;
		})()`, wait.Element),
	}); err != nil {
		return fmt.Errorf("opening search: %w", err)
	}
	a.Settle(ctx, wait.SettleShort)

	searchInput, err := e.resolver.Resolve(ctx, "search input", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`.navigationSearchBox input`,
			`#NavigationSearchBox`,
			`input[placeholder*="검색"]`,
			`input[aria-label*="검색"]`,
			`input[type="text"]`,
		}, wait.Element),
	})
	if err != nil {
		return fmt.Errorf("locating search input: %w", err)
	}
	if err := a.ClearAndType(ctx, searchInput, term); err != nil {
		return fmt.Errorf("entering search term: %w", err)
	}
	a.Settle(ctx, wait.SettleMedium)

	if sel, err := e.resolver.Resolve(ctx, "search result "+resultText, []browser.Strategy{
		browser.ByTextScan(w, `.navigationSearchBox *`, resultText, wait.Element),
		browser.ByTextScan(w, `.search-results *, .navigation-search-results *`, resultText, wait.Element),
	}); err != nil {
		e.logger.Info("Search result not matched directly, selecting with Enter.")
		if err := a.PressEnter(ctx); err != nil {
			return fmt.Errorf("activating search result: %w", err)
		}
	} else if err := a.Click(ctx, sel); err != nil {
		return fmt.Errorf("clicking search result: %w", err)
	}

	a.Settle(ctx, wait.SettleLong)
	return nil
}

// setDateField clears and fills one of the inquiry date inputs, committing
// with Tab.
func (e *Engine) setDateField(ctx context.Context, name, value string) error {
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	sel, err := e.resolver.Resolve(ctx, name+" field", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			fmt.Sprintf(`input[name=%q]`, name),
			fmt.Sprintf(`input[id*="%s_input"]`, name),
			fmt.Sprintf(`input[aria-labelledby*="%s_label"]`, name),
		}, wait.Element),
	})
	if err != nil {
		return err
	}
	if err := a.ClearAndType(ctx, sel, value); err != nil {
		return fmt.Errorf("entering %s: %w", name, err)
	}
	if err := a.PressTab(ctx); err != nil {
		return err
	}
	a.Settle(ctx, wait.SettleShort)
	return nil
}

// DownloadInvoices runs the receiving-data export: inquiry page, current
// month bounds, run the inquiry, export every row through the grid context
// menu, and return the path of the downloaded workbook.
func (e *Engine) DownloadInvoices(ctx context.Context) (string, error) {
	e.notify.emit("download", StateRunning, "exporting receiving data")
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	if err := e.openSearch(ctx, receivingInquiryMenu+"(N)", receivingInquiryMenu); err != nil {
		return "", err
	}
	if !w.ForPageReady(ctx) {
		a.Settle(ctx, wait.SettleMedium)
	}

	from, to := monthBounds(time.Now())
	e.logger.Info("Setting inquiry period.", zap.String("from", from), zap.String("to", to))
	if err := e.setDateField(ctx, "FromDate", from); err != nil {
		return "", err
	}
	if err := e.setDateField(ctx, "ToDate", to); err != nil {
		return "", err
	}

	if err := a.ClickResolved(ctx, "inquiry button", []browser.Strategy{
		browser.ByTextScan(w, `.button-container`, "Inquiry", wait.Element),
		browser.ByScript(w, "inquiry id scan", `(() => {
			for (const el of document.querySelectorAll('[id*="Inquiry"]')) {
				const clickable = el.closest('.button-container, button, [role="button"]') || el;
				clickable.setAttribute('data-ez-hit', '__EZ_TOKEN__');
				return true;
			}
			return false;
		})()`, wait.Element),
	}); err != nil {
		return "", fmt.Errorf("running inquiry: %w", err)
	}

	a.Settle(ctx, wait.SettleLong)
	if !w.ForDataTable(ctx) {
		e.logger.Warn("Inquiry grid not confirmed, continuing after a settle.")
		a.Settle(ctx, wait.SettleLong)
	}

	// Export every row via the purchase-order header context menu.
	a.Settle(ctx, wait.SettleMedium)
	headerSel, err := e.resolver.Resolve(ctx, "purchase order header", []browser.Strategy{
		browser.ByAnySelector(w, []string{
			`div[data-dyn-columnname="NPS_VendPackingSlipSumReportTemp_PurchId"]`,
			`div.dyn-headerCell[data-dyn-columnname*="PurchId"]`,
			`div.dyn-headerCellLabel[title="구매주문"]`,
			`[data-dyn-columnname*="PurchId"]`,
		}, wait.Element),
		browser.ByTextScan(w, `th, .dyn-headerCell, [role="columnheader"]`, "구매주문", wait.Element),
	})
	if err != nil {
		return "", fmt.Errorf("locating export header: %w", err)
	}
	if err := a.ContextMenuSelect(ctx, headerSel, `.button-container`, "모든 행 내보내기"); err != nil {
		return "", fmt.Errorf("opening export menu: %w", err)
	}
	a.Settle(ctx, wait.SettleLong)

	if err := a.ClickResolved(ctx, "download button", []browser.Strategy{
		browser.ByTextScan(w, `button, .button-label, span, [role="button"]`, "다운로드", wait.Element),
		browser.ByScript(w, "download control scan", `(() => {
			for (const el of document.querySelectorAll('[name*="DownloadButton"], [id*="DownloadButton"], [data-dyn-controlname*="Download"], .Download-symbol')) {
				const button = el.closest('button, [role="button"]') || el;
				button.setAttribute('data-ez-hit', '__EZ_TOKEN__');
				return true;
			}
			return false;
		})()`, wait.Element),
	}); err != nil {
		return "", fmt.Errorf("starting download: %w", err)
	}

	e.logger.Info("Waiting for the export to land.", zap.Duration("window", wait.DownloadWait))
	w.Sleep(ctx, wait.DownloadWait)

	path, err := task.LatestDownload(e.session.DownloadDir(), e.logger)
	if err != nil {
		return "", fmt.Errorf("locating downloaded export: %w", err)
	}
	e.notify.emit("download", StateDone, path)
	return path, nil
}

// ProcessPendingInvoices walks the pending vendor invoice form once per
// purchase-order group key: filter the product-receipt popup to the key,
// select every row, post with Alt+Enter. A failing key is logged and the
// loop moves on; one broken order must not sink the rest of the month.
func (e *Engine) ProcessPendingInvoices(ctx context.Context, keys []string) error {
	e.notify.emit("invoices", StateRunning, fmt.Sprintf("processing %d groups", len(keys)))
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	if err := e.openSearch(ctx, pendingInvoiceMenu, pendingInvoiceMenu); err != nil {
		return err
	}
	a.Settle(ctx, wait.SettleLong)

	// Vendor invoice tab, best effort: some deployments land on it already.
	if sel, err := e.resolver.Resolve(ctx, "vendor invoice tab", []browser.Strategy{
		browser.ByTextScan(w, `span.appBarTab-headerLabel`, "공급사송장", wait.Element),
	}); err != nil {
		e.logger.Warn("Vendor invoice tab not found, continuing.", zap.Error(err))
	} else if err := a.Click(ctx, sel); err != nil {
		e.logger.Warn("Vendor invoice tab click failed, continuing.", zap.Error(err))
	} else {
		a.Settle(ctx, wait.SettleMedium)
	}

	if err := a.ClickResolved(ctx, "from product receipt button", []browser.Strategy{
		browser.ByTextScan(w, `.button-container`, "제품 입고로 부터", wait.Element),
	}); err != nil {
		return fmt.Errorf("opening product receipt dialog: %w", err)
	}
	a.Settle(ctx, wait.SettleMedium)

	for i, key := range keys {
		log := e.logger.With(zap.String("group_key", key), zap.Int("index", i+1), zap.Int("total", len(keys)))
		log.Info("Processing purchase order group.")

		if err := e.processGroupKey(ctx, key); err != nil {
			log.Warn("Group processing failed, moving to the next key.", zap.Error(err))
			continue
		}

		log.Info("Group processed.")
		if i < len(keys)-1 {
			a.Settle(ctx, wait.SettleShort)
		}
	}

	e.touchUpInvoiceDate(ctx)
	e.notify.emit("invoices", StateDone, "pending invoices processed")
	return nil
}

// processGroupKey filters the product-receipt popup to one purchase order,
// checks every row and posts.
func (e *Engine) processGroupKey(ctx context.Context, key string) error {
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	// Purchase order header inside the dialog popup only.
	headerSel, err := e.resolver.Resolve(ctx, "popup purchase order header", []browser.Strategy{
		browser.ByScript(w, "popup header scan", `(() => {
			const popup = document.querySelector('.dialog-popup-content');
			if (!popup) return false;
			for (const header of popup.querySelectorAll('.dyn-headerCellLabel')) {
				const title = (header.getAttribute('title') || '').trim();
				const text = (header.textContent || '').trim();
				if (title === '구매주문' || text === '구매주문') {
					header.setAttribute('data-ez-hit', '__EZ_TOKEN__');
					return true;
				}
			}
			return false;
		})()`, wait.Element),
	})
	if err != nil {
		return fmt.Errorf("locating popup header: %w", err)
	}
	if err := a.Click(ctx, headerSel); err != nil {
		return err
	}
	a.Settle(ctx, wait.SettleShort)

	// Filter input inside the column header popup. Values set from script
	// with the framework events; native typing does not reach these inputs.
	filterExpr := fmt.Sprintf(`(() => {
		const popup = document.querySelector('.columnHeader-popup');
		if (!popup) return false;
		for (const sel of ['input[role="combobox"]', 'input.textbox.field', 'input[type="text"]', 'input[name*="Filter"]']) {
			const input = popup.querySelector(sel);
			if (input && input.offsetParent !== null) {
				input.focus();
				input.value = '';
				input.dispatchEvent(new Event('input', { bubbles: true }));
				input.value = %s;
				input.dispatchEvent(new Event('input', { bubbles: true }));
				input.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, jsQuote(key))
	var filtered bool
	if err := e.session.Eval(wait.Element, filterExpr, &filtered); err != nil || !filtered {
		return fmt.Errorf("filter input for %q not found", key)
	}

	a.Settle(ctx, wait.SettleShort)
	if err := a.PressEnter(ctx); err != nil {
		return err
	}
	a.Settle(ctx, wait.SettleLong)

	// Select every filtered row.
	if sel, err := e.resolver.Resolve(ctx, "all check button", []browser.Strategy{
		browser.BySelector(w, `#PurchJournalSelect_PackingSlip_45_NPS_AllCheck_label`, wait.Element),
		browser.ByTextScan(w, `span.button-label`, "All Check", wait.Element),
	}); err != nil {
		e.logger.Warn("All Check button not found, posting anyway.", zap.Error(err))
	} else if err := a.Click(ctx, sel); err != nil {
		e.logger.Warn("All Check click failed, posting anyway.", zap.Error(err))
	} else {
		a.Settle(ctx, wait.SettleShort)
	}

	return a.PressAltEnter(ctx)
}

// touchUpInvoiceDate opens the invoice date picker via its calendar icon and
// seeds the field. Best effort; the operator reviews the dates either way.
func (e *Engine) touchUpInvoiceDate(ctx context.Context) {
	w, a := e.waiter, e.actions
	wait := e.cfg.Wait

	if !w.ForElement(ctx, `svg._1dciz1s`, wait.Element) {
		e.logger.Debug("Invoice date icon not present, skipping touch-up.")
		return
	}
	if err := a.DoubleClick(ctx, `svg._1dciz1s`); err != nil {
		e.logger.Warn("Invoice date icon double click failed.", zap.Error(err))
		return
	}
	if !w.ForElement(ctx, `input[aria-label="송장일"]`, wait.Element) {
		e.logger.Warn("Invoice date input did not appear.")
		return
	}
	if err := a.ClearAndType(ctx, `input[aria-label="송장일"]`, "TEST"); err != nil {
		e.logger.Warn("Invoice date entry failed.", zap.Error(err))
	}
}

// RunInvoiceScenario is the full ingestion pass: connect, export, transform,
// derive group keys and process them. The workbook transformation failing is
// degraded to a warning; the operator can still drive the filter loop by
// hand from the open browser.
func (e *Engine) RunInvoiceScenario(ctx context.Context) Result {
	if err := e.Connect(ctx); err != nil {
		e.Close()
		return Result{Success: false, Message: "connection failed", Err: err.Error(), CompletedAt: time.Now()}
	}

	exportPath, err := e.DownloadInvoices(ctx)
	if err != nil {
		e.notify.emit("download", StateError, err.Error())
		return e.report(false, "receiving data export failed", err)
	}

	var keys []string
	if e.bridge != nil {
		if _, err := e.bridge.RunTransformation(ctx, exportPath); err != nil {
			e.logger.Warn("Workbook transformation failed, continuing without it.", zap.Error(err))
		}
	}
	keys, err = macro.GroupKeys(exportPath, e.cfg.Macro.CycleNumber, e.logger)
	if err != nil {
		e.logger.Warn("Group key collection failed, skipping the filter loop.", zap.Error(err))
		keys = nil
	}

	if err := e.ProcessPendingInvoices(ctx, keys); err != nil {
		e.notify.emit("invoices", StateError, err.Error())
		return e.report(false, "pending invoice processing failed", err)
	}

	// The browser stays open so the operator can verify the postings.
	e.logger.Info("Invoice scenario complete, leaving browser open for review.")
	return e.report(true, fmt.Sprintf("invoice ingestion complete, %d groups processed", len(keys)), nil)
}

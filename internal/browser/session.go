// File: internal/browser/session.go
// Session owns the Chromium process and the single tab every scenario drives.
// It wraps chromedp contexts with the lifecycle the workflows need: retried
// navigation with a connectivity verdict, an auto-accept policy for the ERP's
// confirm dialogs, and a fixed download directory for grid exports.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/config"
)

// ErrUnreachable marks navigation failures that survived every retry. The ERP
// sits behind a corporate VPN, so this almost always means the tunnel is down.
var ErrUnreachable = errors.New("target application unreachable")

// Session represents one Chromium instance with a single working tab.
type Session struct {
	id          string
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         *config.Config
	logger      *zap.Logger
	downloadDir string
}

// NewSession launches Chromium and prepares the working tab. The returned
// session must be released with Close unless the caller deliberately leaves
// the browser open for the operator.
func NewSession(parentCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.With(zap.String("session_id", sessionID))

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Browser.Headless))
	if cfg.Browser.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.Browser.StartMaximized {
		opts = append(opts, chromedp.Flag("start-maximized", true))
	}
	if cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Browser.UserAgent))
	}
	for _, arg := range cfg.Browser.ExtraArgs {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))

	s := &Session{
		id:          sessionID,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         tabCtx,
		cancel:      tabCancel,
		cfg:         cfg,
		logger:      log,
	}

	downloadDir, err := resolveDownloadDir(cfg.App.DownloadDir)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("resolving download directory: %w", err)
	}
	s.downloadDir = downloadDir

	// The ERP raises confirm dialogs mid-flow (unsaved changes, overwrite
	// prompts). An unhandled dialog freezes the tab, so accept them all.
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true)); err != nil {
					log.Debug("Failed to accept dialog.", zap.Error(err))
				}
			}()
		}
	})

	// First Run starts the browser; route downloads while we are at it.
	if err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			Do(ctx)
	})); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser session: %w", err)
	}

	log.Info("Browser session started.",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("download_dir", downloadDir))
	return s, nil
}

func resolveDownloadDir(configured string) (string, error) {
	dir := configured
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, "Downloads")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory %s: %w", dir, err)
	}
	return dir, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// DownloadDir returns the directory exports are routed to.
func (s *Session) DownloadDir() string { return s.downloadDir }

// Context exposes the tab context for wait primitives and action steps.
func (s *Session) Context() context.Context { return s.ctx }

// Run executes chromedp actions on the working tab, bounded by the given
// timeout.
func (s *Session) Run(timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, opCancel := context.WithTimeout(s.ctx, timeout)
	defer opCancel()
	return chromedp.Run(opCtx, actions...)
}

// Eval evaluates a JavaScript expression in the page and stores the result
// into res (which may be nil to discard it).
func (s *Session) Eval(timeout time.Duration, expr string, res interface{}) error {
	opCtx, opCancel := context.WithTimeout(s.ctx, timeout)
	defer opCancel()
	return chromedp.Run(opCtx, chromedp.Evaluate(expr, res))
}

// Navigate loads the URL in a single attempt bounded by the configured
// navigation timeout.
func (s *Session) Navigate(url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))
	if err := s.Run(s.cfg.Browser.NavTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// NavigateWithRetry loads the URL, retrying on failure with a fixed backoff.
// Exhausting every attempt yields ErrUnreachable, which scenarios treat as
// terminal.
func (s *Session) NavigateWithRetry(ctx context.Context, url string) error {
	return retryNavigate(ctx, s.cfg.Browser, s.logger, func() error {
		return s.Navigate(url)
	})
}

func retryNavigate(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, nav func() error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.NavRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := nav(); err != nil {
			lastErr = err
			logger.Warn("Navigation attempt failed.",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.NavRetries),
				zap.Error(err))
			select {
			case <-time.After(cfg.NavRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%w after %d attempts (check the VPN connection): %v",
		ErrUnreachable, cfg.NavRetries, lastErr)
}

// Reload refreshes the working tab.
func (s *Session) Reload() error {
	if err := s.Run(s.cfg.Browser.NavTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("page reload failed: %w", err)
	}
	return nil
}

// Alert surfaces a message to the operator as an in-page banner. Native
// alert() is unusable here because the session auto-accepts dialogs, so the
// banner is injected instead and removed after it has served its purpose.
func (s *Session) Alert(msg string, visibleFor time.Duration) {
	quoted, _ := json.Marshal(msg)
	expr := fmt.Sprintf(`(() => {
		const id = 'ezvoucher-operator-banner';
		let el = document.getElementById(id);
		if (!el) {
			el = document.createElement('div');
			el.id = id;
			el.style.cssText = 'position:fixed;top:12px;left:50%%;transform:translateX(-50%%);' +
				'z-index:2147483647;background:#1f6feb;color:#fff;padding:12px 24px;' +
				'border-radius:6px;font-size:15px;box-shadow:0 2px 8px rgba(0,0,0,.35)';
			document.body.appendChild(el);
		}
		el.textContent = %s;
		setTimeout(() => el.remove(), %d);
	})()`, quoted, visibleFor.Milliseconds())
	if err := s.Eval(5*time.Second, expr, nil); err != nil {
		s.logger.Warn("Failed to show operator banner.", zap.Error(err))
	}
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
	s.logger.Info("Browser session closed.")
}

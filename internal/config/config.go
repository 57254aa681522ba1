// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Wait    WaitConfig    `mapstructure:"wait" yaml:"wait"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch"`
	Macro   MacroConfig   `mapstructure:"macro" yaml:"macro"`
}

// LoggerConfig controls the zap logger and its rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AppConfig describes the fixed target application and the local working set.
type AppConfig struct {
	// BaseURL is the dashboard entry point of the ERP instance.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// WorkDir is the directory holding the numbered voucher spreadsheets.
	// Mandatory for the voucher scenarios; validated before any browser work.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
	// DownloadDir is where the browser drops exported spreadsheets.
	// Empty means the user Downloads folder.
	DownloadDir string `mapstructure:"download_dir" yaml:"download_dir"`
	// KeepBrowserOpen leaves the browser up after a scenario so the operator
	// can inspect the result. The invoice scenario defaults to open.
	KeepBrowserOpen bool `mapstructure:"keep_browser_open" yaml:"keep_browser_open"`
}

// BrowserConfig controls the Chromium instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	StartMaximized  bool     `mapstructure:"start_maximized" yaml:"start_maximized"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	ExtraArgs       []string `mapstructure:"extra_args" yaml:"extra_args"`
	// NavTimeout bounds a single page load attempt.
	NavTimeout time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	// NavRetries is the number of page load attempts before the run is
	// declared unreachable.
	NavRetries int `mapstructure:"nav_retries" yaml:"nav_retries"`
	// NavRetryBackoff is the fixed pause between load attempts.
	NavRetryBackoff time.Duration `mapstructure:"nav_retry_backoff" yaml:"nav_retry_backoff"`
}

// WaitConfig names every fixed delay and poll bound used by the wait
// primitives. They exist as configuration so flaky deployments can be tuned
// without touching control flow.
type WaitConfig struct {
	Element   time.Duration `mapstructure:"element" yaml:"element"`
	Clickable time.Duration `mapstructure:"clickable" yaml:"clickable"`
	PageReady time.Duration `mapstructure:"page_ready" yaml:"page_ready"`
	Text      time.Duration `mapstructure:"text" yaml:"text"`

	// PollInterval paces the DOM poll loops.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// SettleShort/Medium/Long are the post-action settle delays.
	SettleShort  time.Duration `mapstructure:"settle_short" yaml:"settle_short"`
	SettleMedium time.Duration `mapstructure:"settle_medium" yaml:"settle_medium"`
	SettleLong   time.Duration `mapstructure:"settle_long" yaml:"settle_long"`

	// DataTableTimeout bounds the grid long-poll as a whole.
	DataTableTimeout time.Duration `mapstructure:"data_table_timeout" yaml:"data_table_timeout"`
	// TableStabilization is the single fixed wait applied once the loading
	// spinner disappears, before the grid is inspected.
	TableStabilization time.Duration `mapstructure:"table_stabilization" yaml:"table_stabilization"`

	// ManualFallbackWindow is how long the workflow sleeps after prompting a
	// human operator to complete a step the automation could not.
	ManualFallbackWindow time.Duration `mapstructure:"manual_fallback_window" yaml:"manual_fallback_window"`
	// ManualConfirmWindow is the shorter window used for confirm-button prompts.
	ManualConfirmWindow time.Duration `mapstructure:"manual_confirm_window" yaml:"manual_confirm_window"`
	// DownloadWait is the fixed allowance for the export file to land on disk.
	DownloadWait time.Duration `mapstructure:"download_wait" yaml:"download_wait"`
}

// BatchConfig tunes the range runner.
type BatchConfig struct {
	// ReloadSettle is the pause after the between-items page reload.
	ReloadSettle time.Duration `mapstructure:"reload_settle" yaml:"reload_settle"`
}

// MacroConfig tunes the external spreadsheet engine bridge.
type MacroConfig struct {
	// Shell is the command used to run the generated script.
	Shell string `mapstructure:"shell" yaml:"shell"`
	// Timeout bounds the external process.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// CycleNumber selects which rows of the export feed the filter loop:
	// rows whose first column equals this value contribute their second
	// column as a group key.
	CycleNumber int `mapstructure:"cycle_number" yaml:"cycle_number"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ezvoucher")
	v.SetDefault("logger.log_file", "rpa.log")
	v.SetDefault("logger.max_size", 5)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)

	// App defaults
	v.SetDefault("app.base_url", "https://d365.nepes.co.kr/namespaces/AXSF/?cmp=K02&mi=DefaultDashboard")
	v.SetDefault("app.work_dir", "")
	v.SetDefault("app.download_dir", "")
	v.SetDefault("app.keep_browser_open", false)

	// Browser defaults
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.start_maximized", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.nav_timeout", "60s")
	v.SetDefault("browser.nav_retries", 3)
	v.SetDefault("browser.nav_retry_backoff", "2s")

	// Wait defaults
	v.SetDefault("wait.element", "5s")
	v.SetDefault("wait.clickable", "5s")
	v.SetDefault("wait.page_ready", "8s")
	v.SetDefault("wait.text", "5s")
	v.SetDefault("wait.poll_interval", "250ms")
	v.SetDefault("wait.settle_short", "1s")
	v.SetDefault("wait.settle_medium", "3s")
	v.SetDefault("wait.settle_long", "5s")
	v.SetDefault("wait.data_table_timeout", "30s")
	v.SetDefault("wait.table_stabilization", "10s")
	v.SetDefault("wait.manual_fallback_window", "30s")
	v.SetDefault("wait.manual_confirm_window", "20s")
	v.SetDefault("wait.download_wait", "8s")

	// Batch defaults
	v.SetDefault("batch.reload_settle", "5s")

	// Macro defaults
	v.SetDefault("macro.shell", "powershell")
	v.SetDefault("macro.timeout", "60s")
	v.SetDefault("macro.cycle_number", 5)
}

// Load reads the configuration from viper into a Config struct and validates
// cross-field constraints.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks internal consistency. It does not require WorkDir; that is
// scenario-specific and checked by the workflow engine before browser work.
func (c *Config) Validate() error {
	if c.App.BaseURL == "" {
		return fmt.Errorf("app.base_url must not be empty")
	}
	if c.Browser.NavRetries < 1 {
		return fmt.Errorf("browser.nav_retries must be at least 1, got %d", c.Browser.NavRetries)
	}
	if c.Wait.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be positive, got %v", c.Wait.PollInterval)
	}
	if c.Macro.Timeout <= 0 {
		return fmt.Errorf("macro.timeout must be positive, got %v", c.Macro.Timeout)
	}
	return nil
}

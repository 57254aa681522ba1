// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "ezvoucher", cfg.Logger.ServiceName)

	assert.NotEmpty(t, cfg.App.BaseURL)
	assert.False(t, cfg.App.KeepBrowserOpen)

	assert.Equal(t, 3, cfg.Browser.NavRetries)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browser.NavRetryBackoff)

	assert.Equal(t, 30*time.Second, cfg.Wait.DataTableTimeout)
	assert.Equal(t, 10*time.Second, cfg.Wait.TableStabilization)
	assert.Equal(t, 250*time.Millisecond, cfg.Wait.PollInterval)

	assert.Equal(t, 60*time.Second, cfg.Macro.Timeout)
	assert.Equal(t, 5, cfg.Macro.CycleNumber)
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("wait.table_stabilization", "2s")
	v.Set("browser.headless", true)
	v.Set("app.work_dir", "/tmp/vouchers")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Wait.TableStabilization)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/vouchers", cfg.App.WorkDir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.App.BaseURL = "" }},
		{"zero nav retries", func(c *Config) { c.Browser.NavRetries = 0 }},
		{"zero poll interval", func(c *Config) { c.Wait.PollInterval = 0 }},
		{"zero macro timeout", func(c *Config) { c.Macro.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(viper.New())
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

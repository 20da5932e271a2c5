package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "creator-credit.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, 30, cfg.Oracle.TimeoutSecs)
	assert.Equal(t, 50, cfg.YouTube.MaxVideos)
	assert.Equal(t, 10, cfg.Collector.TrendBatchSize)

	assert.Equal(t, 90, cfg.Credit.WindowDays)
	assert.InDelta(t, 0.4, cfg.Credit.NetIncomeWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Credit.SalaryFrequencyWeight, 0.001)
	assert.InDelta(t, 0.2, cfg.Credit.BalanceWeight, 0.001)
	assert.InDelta(t, 0.1, cfg.Credit.OverdraftWeight, 0.001)
	assert.InDelta(t, -5000, cfg.Credit.NetIncomeMin, 0.001)
	assert.Equal(t, 3, cfg.Credit.OverdraftCap)
	assert.Equal(t, []string{"overdraft", "fee"}, cfg.Credit.OverdraftKeywords)

	assert.InDelta(t, 1_200_000, cfg.Channel.MaxSubscribers, 0.001)
	assert.InDelta(t, 800_000, cfg.Channel.MaxViewsPerVideo, 0.001)
	assert.InDelta(t, 0.07, cfg.Channel.MaxEngagementRatio, 0.0001)
	assert.InDelta(t, 1.2, cfg.Channel.MaxBoost, 0.001)

	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.2, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Zero(t, cfg.Monitoring.ExposureThreshold)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/credit
log:
  level: debug
  format: console
oracle:
  provider: rules
channel:
  max_subscribers: 500000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/credit", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "rules", cfg.Oracle.Provider)
	assert.InDelta(t, 500_000, cfg.Channel.MaxSubscribers, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 800_000, cfg.Channel.MaxViewsPerVideo, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CREDIT_STORE_DRIVER", "postgres")
	t.Setenv("CREDIT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CREDIT_ANTHROPIC_KEY=sk-from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CREDIT_ANTHROPIC_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv", cfg.Anthropic.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CREDIT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation depends on.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "test.db"
	cfg.Server.Port = 8080
	cfg.Oracle.Provider = "anthropic"
	cfg.Oracle.TimeoutSecs = 30
	cfg.Oracle.DecisionTimeoutSecs = 60
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{
			name:    "evaluate missing anthropic key",
			mode:    "evaluate",
			mutate:  func(c *Config) {},
			wantErr: []string{"anthropic.key is required"},
		},
		{
			name:   "evaluate with key",
			mode:   "evaluate",
			mutate: func(c *Config) { c.Anthropic.Key = "sk-ant" },
		},
		{
			name:    "gemini needs its own key",
			mode:    "serve",
			mutate:  func(c *Config) { c.Oracle.Provider = "gemini"; c.Anthropic.Key = "sk-ant" },
			wantErr: []string{"gemini.key is required"},
		},
		{
			name:   "rules provider needs no key",
			mode:   "evaluate",
			mutate: func(c *Config) { c.Oracle.Provider = "rules" },
		},
		{
			name:    "unknown provider",
			mode:    "evaluate",
			mutate:  func(c *Config) { c.Oracle.Provider = "openai" },
			wantErr: []string{"oracle.provider must be"},
		},
		{
			name:    "postgres without url",
			mode:    "store",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: []string{"store.database_url is required"},
		},
		{
			name:    "unknown driver",
			mode:    "store",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: []string{"store.driver must be sqlite or postgres"},
		},
		{
			name:    "serve bad port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Oracle.Provider = "rules"; c.Server.Port = 0 },
			wantErr: []string{"server.port must be between 1 and 65535"},
		},
		{
			name:    "timeouts",
			mode:    "evaluate",
			mutate:  func(c *Config) { c.Oracle.Provider = "rules"; c.Oracle.TimeoutSecs = 0; c.Oracle.DecisionTimeoutSecs = -1 },
			wantErr: []string{"oracle.timeout_secs must be > 0", "oracle.decision_timeout_secs must be > 0"},
		},
		{
			name:   "score needs nothing",
			mode:   "score",
			mutate: func(c *Config) { c.Store.Driver = ""; c.Oracle.Provider = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)

			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	cfg, err := LoadFromYAML("../../config.example.yaml")
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	validateConfig(t, cfg, "YAML")
	require.Len(t, cfg.TrackedTxs.Configs, 2)
	require.Equal(t, uint64(1718000000), cfg.TrackedTxs.Configs[1].Until)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("coordinator"))
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON("../../config.example.json")
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}

	validateConfig(t, cfg, "JSON")
}

func TestLoadFromTOML(t *testing.T) {
	cfg, err := LoadFromTOML("../../config.example.toml")
	if err != nil {
		t.Fatalf("failed to load TOML config: %v", err)
	}

	validateConfig(t, cfg, "TOML")
}

func TestLoadFromFile_AllFormats(t *testing.T) {
	for _, path := range []string{
		"../../config.example.yaml",
		"../../config.example.json",
		"../../config.example.toml",
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, err := LoadFromFile(path)
			require.NoError(t, err)
			validateConfig(t, cfg, path)
		})
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFromFile("config.txt")
	require.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("COINGECKO_API_KEY", "secret-key")
	t.Setenv("INDEXGRAPH_DB_PATH", "/tmp/override.db")

	cfg, err := LoadFromFile("../../config.example.yaml")
	require.NoError(t, err)

	require.Equal(t, "secret-key", cfg.Prices.Coingecko.APIKey)
	require.Equal(t, "/tmp/override.db", cfg.Database.Path)
	// the pro endpoint is chosen once an API key is present
	require.Equal(t, "https://pro-api.coingecko.com/api/v3", cfg.Prices.Coingecko.BaseURL)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: ''\n"), 0o600))

	_, err := LoadFromFile(path)
	require.ErrorContains(t, err, "invalid configuration")
}

// validateConfig checks that the loaded config has expected values
func validateConfig(t *testing.T, cfg *config.Config, format string) {
	t.Helper()

	require.NotEmpty(t, cfg.Database.Path, "[%s] database.path should not be empty", format)
	require.Equal(t, "WAL", cfg.Database.JournalMode, "[%s] journal_mode default", format)
	require.Equal(t, "NORMAL", cfg.Database.Synchronous, "[%s] synchronous default", format)

	require.Equal(t, uint64(1704067200), cfg.Clock.MinHeight, "[%s] clock.min_height", format)
	require.Equal(t, time.Hour, cfg.Clock.Granularity.Duration, "[%s] clock.granularity", format)
	require.Equal(t, "0 0 * * * *", cfg.Clock.CronSpec, "[%s] clock.cron_spec", format)
	require.Equal(t, time.Minute, cfg.Scheduler.PollInterval.Duration, "[%s] scheduler.poll_interval", format)

	require.NotEmpty(t, cfg.Prices.Tokens, "[%s] prices.tokens", format)
	require.Equal(t, "ethereum", cfg.Prices.Tokens[0].CoingeckoID, "[%s] coingecko id", format)
	require.NotNil(t, cfg.Prices.Coingecko.Retry, "[%s] coingecko retry default", format)

	require.NotNil(t, cfg.TrackedTxs, "[%s] tracked_txs", format)
	require.NotEmpty(t, cfg.TrackedTxs.RPCURL, "[%s] tracked_txs.rpc_url", format)
	require.NotZero(t, cfg.TrackedTxs.ChunkSize, "[%s] tracked_txs.chunk_size", format)
	require.NotEmpty(t, cfg.TrackedTxs.Finality, "[%s] tracked_txs.finality", format)

	require.NotNil(t, cfg.L2Costs, "[%s] l2costs", format)
	require.True(t, cfg.L2Costs.Enabled, "[%s] l2costs.enabled", format)
	require.Equal(t, uint64(168), cfg.L2Costs.BatchHours, "[%s] l2costs.batch_hours", format)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Path: "./test.db"},
		Prices: config.PricesConfig{
			Tokens: []config.TokenConfig{{ID: "eth", CoingeckoID: "ethereum"}},
		},
		API:     &config.APIConfig{CORS: config.CORSConfig{Enabled: true}},
		L2Costs: &config.L2CostsConfig{},
	}

	cfg.ApplyDefaults()

	require.Equal(t, "WAL", cfg.Database.JournalMode)
	require.Equal(t, 5000, cfg.Database.BusyTimeout)
	require.Equal(t, 25, cfg.Database.MaxOpenConnections)
	require.Equal(t, 4, cfg.Scheduler.Workers)
	require.Equal(t, "https://api.coingecko.com/api/v3", cfg.Prices.Coingecko.BaseURL)
	require.Equal(t, 80, cfg.Prices.Coingecko.MaxDaysPerCall)
	require.Equal(t, 5, cfg.Prices.Coingecko.Retry.MaxAttempts)
	require.Equal(t, ":8080", cfg.API.ListenAddress)
	require.Equal(t, []string{"*"}, cfg.API.CORS.AllowedOrigins)
	require.Equal(t, uint64(168), cfg.L2Costs.BatchHours)
}

func TestConfigValidation(t *testing.T) {
	valid := func() *config.Config {
		cfg := &config.Config{
			Database: config.DatabaseConfig{Path: "./test.db"},
			Prices: config.PricesConfig{
				Tokens: []config.TokenConfig{{ID: "eth", CoingeckoID: "ethereum"}},
			},
			TrackedTxs: &config.TrackedTxsConfig{
				RPCURL: "http://localhost:8545",
				Configs: []config.TrackedTxConfig{{
					ID: "a", Project: "p", Address: "0x1", Event: "E()", Since: 10,
				}},
			},
			L2Costs: &config.L2CostsConfig{Enabled: true, PriceToken: "eth"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *config.Config) {}},
		{
			name:    "missing db path",
			mutate:  func(c *config.Config) { c.Database.Path = "" },
			wantErr: "database: path is required",
		},
		{
			name:    "bad journal mode",
			mutate:  func(c *config.Config) { c.Database.JournalMode = "FANCY" },
			wantErr: "journal_mode",
		},
		{
			name:    "duplicate token",
			mutate:  func(c *config.Config) { c.Prices.Tokens = append(c.Prices.Tokens, c.Prices.Tokens[0]) },
			wantErr: "duplicate token id",
		},
		{
			name: "until before since",
			mutate: func(c *config.Config) {
				c.TrackedTxs.Configs[0].Until = 5
			},
			wantErr: "until must be after since",
		},
		{
			name:    "aggregator with unknown price token",
			mutate:  func(c *config.Config) { c.L2Costs.PriceToken = "btc" },
			wantErr: "not a configured prices token",
		},
		{
			name:    "aggregator without tracked txs",
			mutate:  func(c *config.Config) { c.TrackedTxs = nil },
			wantErr: "requires tracked_txs",
		},
		{
			name:   "disabled aggregator is not validated",
			mutate: func(c *config.Config) { c.TrackedTxs = nil; c.L2Costs.Enabled = false },
		},
		{
			name:    "unknown log component",
			mutate:  func(c *config.Config) { c.Logging = &config.LoggingConfig{ComponentLevels: map[string]string{"nope": "info"}} },
			wantErr: "unknown component",
		},
		{
			name:    "unknown finality",
			mutate:  func(c *config.Config) { c.TrackedTxs.Finality = "pending" },
			wantErr: "tracked_txs.finality",
		},
		{
			name:    "sub-second granularity",
			mutate:  func(c *config.Config) { c.Clock.Granularity.Duration = time.Millisecond },
			wantErr: "granularity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	require.Contains(t, string(data), "tracked_txs")
	require.Contains(t, string(data), "IndexGraph configuration")
}

package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
)

// Config represents the complete configuration for IndexGraph.
type Config struct {
	// Database contains the SQLite configuration shared by every indexer
	Database DatabaseConfig `yaml:"database" json:"database" toml:"database"`

	// Maintenance contains optional database maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains the status API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`

	// Clock configures the root time indexer
	Clock ClockConfig `yaml:"clock" json:"clock" toml:"clock"`

	// Scheduler configures how child indexers are triggered
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler" toml:"scheduler"`

	// Prices configures the hourly price indexers
	Prices PricesConfig `yaml:"prices" json:"prices" toml:"prices"`

	// TrackedTxs configures the tracked transactions indexer
	TrackedTxs *TrackedTxsConfig `yaml:"tracked_txs,omitempty" json:"tracked_txs,omitempty" toml:"tracked_txs,omitempty"`

	// L2Costs configures the optional cost aggregator
	L2Costs *L2CostsConfig `yaml:"l2costs,omitempty" json:"l2costs,omitempty" toml:"l2costs,omitempty"`
}

// RetryConfig represents retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path" env:"INDEXGRAPH_DB_PATH"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	// EnableForeignKeys enables foreign key constraint enforcement
	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}

	if !slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level" env:"INDEXGRAPH_LOG_LEVEL"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components:
	//   - coordinator: Graph startup, reconciliation and invalidation
	//   - root-indexer: Clock ticks
	//   - child-indexer: Update cycles
	//   - watermark-store: Safe height persistence
	//   - price-indexer, tracked-txs, l2costs: Domain processors
	//   - coingecko, rpc: External clients
	//   - api, maintenance
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// APIConfig configures the read-only status API.
type APIConfig struct {
	// Enabled controls whether the API server is started
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the API server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	ReadTimeout  common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	IdleTimeout  common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`

	// CORS configures cross-origin requests
	CORS CORSConfig `yaml:"cors" json:"cors" toml:"cors"`
}

// CORSConfig configures cross-origin resource sharing for the API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults sets default values for optional API configuration fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * time.Second) //nolint:mnd
	}
	if a.CORS.Enabled && len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
}

// ClockConfig configures the root time indexer.
type ClockConfig struct {
	// CronSpec is a six field cron expression (with seconds) driving the clock
	CronSpec string `yaml:"cron_spec" json:"cron_spec" toml:"cron_spec"`

	// Granularity is the step heights are truncated to
	Granularity common.Duration `yaml:"granularity" json:"granularity" toml:"granularity"`

	// MinHeight is the earliest unix timestamp the graph indexes
	MinHeight uint64 `yaml:"min_height" json:"min_height" toml:"min_height"`
}

// ApplyDefaults sets default values for the clock.
func (c *ClockConfig) ApplyDefaults() {
	if c.CronSpec == "" {
		c.CronSpec = "0 0 * * * *"
	}
	if c.Granularity.Duration == 0 {
		c.Granularity = common.NewDuration(time.Hour)
	}
}

// Validate checks if the clock configuration is valid.
func (c *ClockConfig) Validate() error {
	if c.Granularity.Duration < time.Second {
		return fmt.Errorf("granularity must be at least 1s")
	}
	if c.Granularity.Duration%time.Second != 0 {
		return fmt.Errorf("granularity must be a whole number of seconds")
	}
	return nil
}

// SchedulerConfig configures child update scheduling.
type SchedulerConfig struct {
	// PollInterval triggers an update cycle even without a parent notification
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// Workers bounds the number of update cycles running at the same time
	Workers int `yaml:"workers" json:"workers" toml:"workers"`
}

// ApplyDefaults sets default values for the scheduler.
func (s *SchedulerConfig) ApplyDefaults() {
	if s.PollInterval.Duration == 0 {
		s.PollInterval = common.NewDuration(time.Minute)
	}
	if s.Workers == 0 {
		s.Workers = 4
	}
}

// PricesConfig configures the price indexers.
type PricesConfig struct {
	// Coingecko configures the price API client
	Coingecko CoingeckoConfig `yaml:"coingecko" json:"coingecko" toml:"coingecko"`

	// Tokens lists the tokens to index hourly USD prices for, one indexer each
	Tokens []TokenConfig `yaml:"tokens" json:"tokens" toml:"tokens"`
}

// CoingeckoConfig configures the CoinGecko client.
type CoingeckoConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url" toml:"base_url"`

	// APIKey is sent as x-cg-pro-api-key when set
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" toml:"api_key,omitempty" env:"COINGECKO_API_KEY"`

	// RequestsPerMinute bounds the request rate
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" toml:"requests_per_minute"`

	// MaxDaysPerCall bounds the range of a single price history request
	MaxDaysPerCall int `yaml:"max_days_per_call" json:"max_days_per_call" toml:"max_days_per_call"`

	Timeout common.Duration `yaml:"timeout" json:"timeout" toml:"timeout"`

	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for the CoinGecko client.
func (c *CoingeckoConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		if c.APIKey != "" {
			c.BaseURL = "https://pro-api.coingecko.com/api/v3"
		} else {
			c.BaseURL = "https://api.coingecko.com/api/v3"
		}
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 10
	}
	if c.MaxDaysPerCall == 0 {
		c.MaxDaysPerCall = 80
	}
	if c.Timeout.Duration == 0 {
		c.Timeout = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if c.Retry == nil {
		c.Retry = &RetryConfig{}
	}
	c.Retry.ApplyDefaults()
}

// TokenConfig describes one priced token.
type TokenConfig struct {
	// ID is the local token identifier used in indexer ids
	ID string `yaml:"id" json:"id" toml:"id"`

	// CoingeckoID is the CoinGecko coin id (e.g. "ethereum")
	CoingeckoID string `yaml:"coingecko_id" json:"coingecko_id" toml:"coingecko_id"`

	// Since is the first unix timestamp prices are needed for
	Since uint64 `yaml:"since" json:"since" toml:"since"`
}

// Validate checks the price configuration.
func (p *PricesConfig) Validate() error {
	seen := make(map[string]struct{}, len(p.Tokens))
	for i, token := range p.Tokens {
		if token.ID == "" {
			return fmt.Errorf("prices.tokens[%d]: id is required", i)
		}
		if token.CoingeckoID == "" {
			return fmt.Errorf("prices.tokens[%d] (%s): coingecko_id is required", i, token.ID)
		}
		if _, dup := seen[token.ID]; dup {
			return fmt.Errorf("prices.tokens[%d]: duplicate token id '%s'", i, token.ID)
		}
		seen[token.ID] = struct{}{}
	}
	return nil
}

// TrackedTxsConfig configures the tracked transactions indexer.
type TrackedTxsConfig struct {
	// RPCURL is the Ethereum RPC endpoint URL
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url" env:"INDEXGRAPH_RPC_URL"`

	// ChunkSize is the block range per eth_getLogs call
	ChunkSize uint64 `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`

	// MaxBlocksPerCycle bounds the blocks scanned by one update cycle
	MaxBlocksPerCycle uint64 `yaml:"max_blocks_per_cycle" json:"max_blocks_per_cycle" toml:"max_blocks_per_cycle"`

	// RequestsPerSecond bounds the RPC request rate
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" toml:"requests_per_second"`

	// Finality is the block tag the chain head is read at: "finalized", "safe" or "latest"
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// ReorgCheckInterval is how often tracked blocks are compared against the chain.
	// Only used when Finality is not "finalized"
	ReorgCheckInterval common.Duration `yaml:"reorg_check_interval" json:"reorg_check_interval" toml:"reorg_check_interval"`

	// ReorgDepth is how many blocks below the head are re-checked
	ReorgDepth uint64 `yaml:"reorg_depth" json:"reorg_depth" toml:"reorg_depth"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`

	// Configs lists the tracked contract events
	Configs []TrackedTxConfig `yaml:"configs" json:"configs" toml:"configs"`
}

// TrackedTxConfig describes one tracked contract event and its validity window.
type TrackedTxConfig struct {
	ID      string `yaml:"id" json:"id" toml:"id"`
	Project string `yaml:"project" json:"project" toml:"project"`
	Address string `yaml:"address" json:"address" toml:"address"`

	// Event is the event signature, e.g. "SequencerBatchAppended(uint256,bytes32,uint256)"
	Event string `yaml:"event" json:"event" toml:"event"`

	// Since is the first unix timestamp the config is valid for
	Since uint64 `yaml:"since" json:"since" toml:"since"`

	// Until is the last unix timestamp the config is valid for, zero when open ended
	Until uint64 `yaml:"until,omitempty" json:"until,omitempty" toml:"until,omitempty"`
}

// ApplyDefaults sets default values for the tracked transactions indexer.
func (t *TrackedTxsConfig) ApplyDefaults() {
	if t.ChunkSize == 0 {
		t.ChunkSize = 5000
	}
	if t.MaxBlocksPerCycle == 0 {
		t.MaxBlocksPerCycle = 50000
	}
	if t.RequestsPerSecond == 0 {
		t.RequestsPerSecond = 10
	}
	if t.Finality == "" {
		t.Finality = "finalized"
	}
	if t.ReorgCheckInterval.Duration == 0 {
		t.ReorgCheckInterval = common.NewDuration(time.Minute)
	}
	if t.ReorgDepth == 0 {
		t.ReorgDepth = 128
	}
	if t.Retry == nil {
		t.Retry = &RetryConfig{}
	}
	t.Retry.ApplyDefaults()
}

// Validate checks the tracked transactions configuration.
func (t *TrackedTxsConfig) Validate() error {
	if t.RPCURL == "" {
		return fmt.Errorf("tracked_txs.rpc_url is required")
	}
	if len(t.Configs) == 0 {
		return fmt.Errorf("tracked_txs: at least one config is required")
	}
	if t.Finality != "finalized" && t.Finality != "safe" && t.Finality != "latest" {
		return fmt.Errorf("tracked_txs.finality must be one of: finalized, safe, latest")
	}

	seen := make(map[string]struct{}, len(t.Configs))
	for i, c := range t.Configs {
		switch {
		case c.ID == "":
			return fmt.Errorf("tracked_txs.configs[%d]: id is required", i)
		case c.Project == "":
			return fmt.Errorf("tracked_txs.configs[%d] (%s): project is required", i, c.ID)
		case c.Address == "":
			return fmt.Errorf("tracked_txs.configs[%d] (%s): address is required", i, c.ID)
		case c.Event == "":
			return fmt.Errorf("tracked_txs.configs[%d] (%s): event is required", i, c.ID)
		case c.Until != 0 && c.Until <= c.Since:
			return fmt.Errorf("tracked_txs.configs[%d] (%s): until must be after since", i, c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("tracked_txs.configs[%d]: duplicate config id '%s'", i, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// L2CostsConfig configures the optional cost aggregator.
type L2CostsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// PriceToken is the prices.tokens id used to value gas (usually ETH)
	PriceToken string `yaml:"price_token" json:"price_token" toml:"price_token"`

	// BatchHours bounds the hours aggregated by one update cycle
	BatchHours uint64 `yaml:"batch_hours" json:"batch_hours" toml:"batch_hours"`
}

// ApplyDefaults sets default values for the aggregator.
func (l *L2CostsConfig) ApplyDefaults() {
	if l.BatchHours == 0 {
		l.BatchHours = 24 * 7 //nolint:mnd
	}
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Database.ApplyDefaults()
	c.Clock.ApplyDefaults()
	c.Scheduler.ApplyDefaults()
	c.Prices.Coingecko.ApplyDefaults()

	if c.Maintenance != nil {
		c.Maintenance.ApplyDefaults()
	}
	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}
	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
	if c.API != nil {
		c.API.ApplyDefaults()
	}
	if c.TrackedTxs != nil {
		c.TrackedTxs.ApplyDefaults()
	}
	if c.L2Costs != nil {
		c.L2Costs.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.Maintenance != nil {
		if err := c.Maintenance.Validate(); err != nil {
			return err
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if err := c.Clock.Validate(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be positive")
	}

	if err := c.Prices.Validate(); err != nil {
		return err
	}

	if c.TrackedTxs != nil {
		if err := c.TrackedTxs.Validate(); err != nil {
			return err
		}
	}

	if c.L2Costs != nil && c.L2Costs.Enabled {
		if c.TrackedTxs == nil {
			return fmt.Errorf("l2costs: requires tracked_txs to be configured")
		}
		found := slices.ContainsFunc(c.Prices.Tokens, func(t TokenConfig) bool {
			return t.ID == c.L2Costs.PriceToken
		})
		if !found {
			return fmt.Errorf("l2costs.price_token '%s' is not a configured prices token", c.L2Costs.PriceToken)
		}
	}

	if len(c.Prices.Tokens) == 0 && c.TrackedTxs == nil {
		return fmt.Errorf("at least one indexer (prices or tracked_txs) must be configured")
	}

	return nil
}

package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the relayer configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Origin      OriginConfig      `mapstructure:"origin"`
	Destination DestinationConfig `mapstructure:"destination"`
	Signer      SignerConfig      `mapstructure:"signer"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings for the status surface
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// OriginConfig contains origin-ledger (NEAR) client settings
type OriginConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	SealContract        string        `mapstructure:"seal_contract"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	PageSize            int           `mapstructure:"page_size"`
	StartSequence       int64         `mapstructure:"start_sequence"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	AllowedSourceChains []uint16      `mapstructure:"allowed_source_chains"`
}

// DestinationConfig contains destination-ledger (Solana) client settings
type DestinationConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	Program        string        `mapstructure:"program"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SignerConfig contains signing-network (Ika) client settings.
// The seed is the only secret the relayer holds; it comes from the
// IKA_SIGNER_SEED environment variable, never from the config file.
type SignerConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	SeedHex        string        `mapstructure:"seed_hex"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PresignTimeout time.Duration `mapstructure:"presign_timeout"`
	SignTimeout    time.Duration `mapstructure:"sign_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Seed decodes the hex-encoded long-lived signing seed.
func (c *SignerConfig) Seed() ([]byte, error) {
	seed, err := hex.DecodeString(c.SeedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signer seed: %w", err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("signer seed must be 32 bytes, got %d", len(seed))
	}
	return seed, nil
}

// PipelineConfig contains worker pool and retry settings
type PipelineConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	QueueSize      int           `mapstructure:"queue_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	ResumeInterval time.Duration `mapstructure:"resume_interval"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	// Secrets are env-only.
	_ = viper.BindEnv("signer.seed_hex", "IKA_SIGNER_SEED")
	_ = viper.BindEnv("database.password", "RELAYER_DB_PASSWORD")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "ika_relay")

	// Origin defaults
	viper.SetDefault("origin.poll_interval", "10s")
	viper.SetDefault("origin.page_size", 50)
	viper.SetDefault("origin.start_sequence", 0)
	viper.SetDefault("origin.request_timeout", "30s")
	viper.SetDefault("origin.allowed_source_chains", []int{1, 2, 4, 5})

	// Destination defaults
	viper.SetDefault("destination.request_timeout", "30s")

	// Signer defaults
	viper.SetDefault("signer.poll_interval", "2s")
	viper.SetDefault("signer.presign_timeout", "2m")
	viper.SetDefault("signer.sign_timeout", "2m")
	viper.SetDefault("signer.request_timeout", "30s")

	// Pipeline defaults
	viper.SetDefault("pipeline.concurrency", 4)
	viper.SetDefault("pipeline.queue_size", 1024)
	viper.SetDefault("pipeline.max_retries", 5)
	viper.SetDefault("pipeline.retry_base_delay", "5s")
	viper.SetDefault("pipeline.retry_max_delay", "5m")
	viper.SetDefault("pipeline.resume_interval", "1m")
	viper.SetDefault("pipeline.drain_timeout", "30s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Origin.RPCURL == "" {
		return fmt.Errorf("origin.rpc_url is required")
	}
	if config.Origin.SealContract == "" {
		return fmt.Errorf("origin.seal_contract is required")
	}
	if len(config.Origin.AllowedSourceChains) == 0 {
		return fmt.Errorf("origin.allowed_source_chains is required")
	}
	if config.Destination.RPCURL == "" {
		return fmt.Errorf("destination.rpc_url is required")
	}
	if config.Destination.Program == "" {
		return fmt.Errorf("destination.program is required")
	}
	if config.Signer.Endpoint == "" {
		return fmt.Errorf("signer.endpoint is required")
	}
	if _, err := config.Signer.Seed(); err != nil {
		return err
	}
	if config.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if config.Pipeline.ResumeInterval <= 0 {
		return fmt.Errorf("pipeline.resume_interval must be positive")
	}
	return nil
}

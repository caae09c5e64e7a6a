package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Every threshold the
// diagnosis engine uses lives here so a run's output is reproducible from
// (inputs, config).
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Diagnosis DiagnosisConfig `yaml:"diagnosis" mapstructure:"diagnosis"`
	Clusters  ClusterConfig   `yaml:"clusters" mapstructure:"clusters"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DiagnosisConfig holds the window sizes and significance thresholds used by
// the delta calculator, anomaly detector and downstream stages.
type DiagnosisConfig struct {
	CurrentWindowDays  int     `yaml:"current_window_days" mapstructure:"current_window_days"`
	BaselineWindowDays int     `yaml:"baseline_window_days" mapstructure:"baseline_window_days"`
	DropPct            float64 `yaml:"drop_pct" mapstructure:"drop_pct"`
	ZScore             float64 `yaml:"z_score" mapstructure:"z_score"`
	MinBaselineDays    int     `yaml:"min_baseline_days" mapstructure:"min_baseline_days"`
	ClusterLossShare   float64 `yaml:"cluster_loss_share" mapstructure:"cluster_loss_share"`
	MinTextLength      int     `yaml:"min_text_length" mapstructure:"min_text_length"`
	MaxTickets         int     `yaml:"max_tickets" mapstructure:"max_tickets"`
	FetchTimeoutSecs   int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
}

// ClusterConfig configures the page cluster classifier.
type ClusterConfig struct {
	// RulesFile points at a YAML rule file; when empty the built-in default
	// rule set is used.
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// CatalogConfig configures hypothesis catalog overrides.
type CatalogConfig struct {
	// OverridesFile points at a YAML file adjusting priority, owner, title
	// or steps of built-in catalog entries; empty means no overrides.
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// NotifyConfig configures the run-summary webhook.
type NotifyConfig struct {
	WebhookURL    string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	RatePerMinute float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// TemporalConfig configures the scheduled-run worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIAGNOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "diagnose.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("diagnosis.current_window_days", 3)
	v.SetDefault("diagnosis.baseline_window_days", 14)
	v.SetDefault("diagnosis.drop_pct", -30.0)
	v.SetDefault("diagnosis.z_score", -2.0)
	v.SetDefault("diagnosis.min_baseline_days", 7)
	v.SetDefault("diagnosis.cluster_loss_share", 0.6)
	v.SetDefault("diagnosis.min_text_length", 300)
	v.SetDefault("diagnosis.max_tickets", 3)
	v.SetDefault("diagnosis.fetch_timeout_secs", 30)
	v.SetDefault("notify.rate_per_minute", 30.0)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "diagnose")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the diagnosis thresholds are internally consistent.
func (c *DiagnosisConfig) Validate() error {
	var errs []string
	if c.CurrentWindowDays <= 0 {
		errs = append(errs, "current_window_days must be > 0")
	}
	if c.BaselineWindowDays <= 0 {
		errs = append(errs, "baseline_window_days must be > 0")
	}
	if c.DropPct >= 0 {
		errs = append(errs, "drop_pct must be negative")
	}
	if c.ZScore >= 0 {
		errs = append(errs, "z_score must be negative")
	}
	if c.MinBaselineDays < 2 {
		errs = append(errs, "min_baseline_days must be >= 2")
	}
	if c.ClusterLossShare <= 0 || c.ClusterLossShare > 1 {
		errs = append(errs, "cluster_loss_share must be in (0, 1]")
	}
	if c.MaxTickets <= 0 {
		errs = append(errs, "max_tickets must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: diagnosis validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

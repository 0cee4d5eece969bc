// Package config loads and validates checker configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// EnvPrefix is prepended to every environment override, e.g. VANITY_SCHEDULER_CONCURRENCY.
const EnvPrefix = "VANITY"

// Source modes.
const (
	SourceWordlist = "wordlist"
	SourceRandom   = "random"
)

// Export providers.
const (
	ExportNone   = "none"
	ExportGCS    = "gcs"
	ExportLocal  = "local"
	ExportMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Candidate CandidateConfig `mapstructure:"candidate"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Results   ResultsConfig   `mapstructure:"results"`
	Resume    ResumeConfig    `mapstructure:"resume"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Export    ExportConfig    `mapstructure:"export"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
}

// SourceConfig selects where candidates come from. Random runs end at
// MaxWords or after MaxStaleBatches batches in a row with no new name.
type SourceConfig struct {
	Mode            string        `mapstructure:"mode" validate:"required,oneof=wordlist random"`
	WordlistPath    string        `mapstructure:"wordlist_path"`
	RandomURL       string        `mapstructure:"random_url" validate:"omitempty,url"`
	BatchSize       int           `mapstructure:"batch_size" validate:"min=1,max=10000"`
	MaxWords        int           `mapstructure:"max_words" validate:"min=0"`
	MaxStaleBatches int           `mapstructure:"max_stale_batches" validate:"min=1"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// CandidateConfig controls normalization.
type CandidateConfig struct {
	CaseInsensitive bool   `mapstructure:"case_insensitive"`
	Pattern         string `mapstructure:"pattern" validate:"required"`
}

// ProbeConfig tunes the availability prober.
type ProbeConfig struct {
	URLTemplate       string        `mapstructure:"url_template" validate:"required"`
	UserAgent         string        `mapstructure:"user_agent" validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"min=1,max=20"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" validate:"gt=0"`
	BackoffMax        time.Duration `mapstructure:"backoff_max" validate:"gt=0"`
	BackoffJitter     float64       `mapstructure:"backoff_jitter" validate:"min=0,max=1"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int           `mapstructure:"burst" validate:"min=1"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" validate:"min=1024"`
	ProxyURL          string        `mapstructure:"proxy_url" validate:"omitempty,url"`
}

// SchedulerConfig bounds concurrency.
type SchedulerConfig struct {
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=512"`
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"min=0"`
	MaxChecks   int           `mapstructure:"max_checks" validate:"min=0"`
}

// ResultsConfig names the two append-only logs.
type ResultsConfig struct {
	FullLog      string `mapstructure:"full_log" validate:"required"`
	AvailableLog string `mapstructure:"available_log" validate:"required"`
	Fsync        bool   `mapstructure:"fsync"`
}

// ResumeConfig toggles skipping previously checked candidates.
type ResumeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ProgressConfig controls console output.
type ProgressConfig struct {
	Every   int  `mapstructure:"every" validate:"min=0"`
	Verbose bool `mapstructure:"verbose"`
	NoColor bool `mapstructure:"no_color"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// PostgresConfig enables the database mirror when DSN is set.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig enables available-name notifications when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ExportConfig uploads both logs at the end of a run.
type ExportConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=none gcs local memory"`
	Bucket   string `mapstructure:"bucket"`
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"wordlist":    "source.wordlist_path",
	"concurrency": "scheduler.concurrency",
	"max-checks":  "scheduler.max_checks",
	"verbose":     "progress.verbose",
	"no-color":    "progress.no_color",
	"log-level":   "logging.level",
	"serve":       "server.enabled",
	"addr":        "server.addr",
}

// Load builds a Config from defaults, the optional file at path, VANITY_*
// environment variables and any changed flags in fs, in increasing priority.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	// --random and --no-resume flip values rather than carrying them.
	if f := fs.Lookup("random"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("source.mode", SourceRandom)
	}
	if f := fs.Lookup("no-resume"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("resume.enabled", false)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("source.mode", SourceWordlist)
	v.SetDefault("source.wordlist_path", "Custom.txt")
	v.SetDefault("source.random_url", "https://random-word-api.herokuapp.com/word")
	v.SetDefault("source.batch_size", 500)
	v.SetDefault("source.max_words", 5000)
	v.SetDefault("source.max_stale_batches", 3)
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("candidate.case_insensitive", true)
	v.SetDefault("candidate.pattern", vanity.DefaultPattern)
	v.SetDefault("probe.url_template", "https://steamcommunity.com/id/{}/")
	v.SetDefault("probe.user_agent", "Mozilla/5.0 (compatible; steam-vanity-checker/1.0)")
	v.SetDefault("probe.timeout", 12*time.Second)
	v.SetDefault("probe.max_attempts", 5)
	v.SetDefault("probe.backoff_base", 600*time.Millisecond)
	v.SetDefault("probe.backoff_max", 10*time.Second)
	v.SetDefault("probe.backoff_jitter", 0.0)
	v.SetDefault("probe.requests_per_second", 0.0)
	v.SetDefault("probe.burst", 1)
	v.SetDefault("probe.max_body_bytes", int64(2<<20))
	v.SetDefault("probe.proxy_url", "")
	v.SetDefault("scheduler.concurrency", 8)
	v.SetDefault("scheduler.grace_period", 10*time.Second)
	v.SetDefault("scheduler.max_checks", 0)
	v.SetDefault("results.full_log", "results.csv")
	v.SetDefault("results.available_log", "Available.txt")
	v.SetDefault("results.fsync", true)
	v.SetDefault("resume.enabled", true)
	v.SetDefault("progress.every", 1)
	v.SetDefault("progress.verbose", false)
	v.SetDefault("progress.no_color", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":9090")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "vanity_checks")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("export.provider", ExportNone)
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.prefix", "vanity")
}

var validate = validator.New()

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Source.Mode == SourceWordlist && c.Source.WordlistPath == "" {
		return fmt.Errorf("source.wordlist_path must be set for wordlist mode")
	}
	if c.Source.Mode == SourceRandom && c.Source.RandomURL == "" {
		return fmt.Errorf("source.random_url must be set for random mode")
	}
	if c.Source.Mode == SourceRandom && c.Source.MaxWords <= 0 {
		return fmt.Errorf("source.max_words must be positive for random mode")
	}
	if _, err := vanity.NewNormalizer(c.Candidate.Pattern, c.Candidate.CaseInsensitive); err != nil {
		return fmt.Errorf("candidate.pattern: %w", err)
	}
	if strings.Count(c.Probe.URLTemplate, "{}") != 1 {
		return fmt.Errorf("probe.url_template must contain exactly one {} placeholder")
	}
	if c.Probe.BackoffMax < c.Probe.BackoffBase {
		return fmt.Errorf("probe.backoff_max must be >= probe.backoff_base")
	}
	if c.Results.FullLog == c.Results.AvailableLog {
		return fmt.Errorf("results.full_log and results.available_log must differ")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set when the server is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	switch c.Export.Provider {
	case ExportGCS:
		if c.Export.Bucket == "" {
			return fmt.Errorf("export.bucket must be set for the gcs provider")
		}
	case ExportLocal:
		if c.Export.Dir == "" {
			return fmt.Errorf("export.dir must be set for the local provider")
		}
	}
	return nil
}

// PostgresEnabled reports whether the database mirror is configured.
func (c Config) PostgresEnabled() bool {
	return c.Postgres.DSN != ""
}

// PubSubEnabled reports whether available-name notifications are configured.
func (c Config) PubSubEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.Topic != ""
}

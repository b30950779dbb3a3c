package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTargetRatio          = 13.0
	DefaultTolerance            = 0.5
	DefaultMaxPoolSize          = 500
	DefaultZThreshold           = 3.5
	DefaultRegressor            = "linear"
	DefaultReferenceTemperature = 20.0
	DefaultGridPoints           = 3000
	DefaultGridMin              = 0.0
	DefaultGridMax              = 200.0
	DefaultMaxInverseResidual   = 0.5
	DefaultPolyOrder            = 3
	DefaultDriver               = "sqlite"
	DefaultDBPath               = "pairmatch.db"
	DefaultHTTPPort             = 8080
	DefaultHistoryTTL           = time.Hour
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Matching  MatchingConfig  `yaml:"matching"`
	Inventory InventoryConfig `yaml:"inventory"`
	Server    ServerConfig    `yaml:"server"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// MatchingConfig holds the numeric parameters of one pipeline run.
type MatchingConfig struct {
	// TargetRatio is the desired flow_A / flow_B ratio at every probe pressure.
	TargetRatio float64 `yaml:"target_ratio"`

	// Tolerance is the absolute half-width of the admissible ratio band.
	Tolerance float64 `yaml:"tolerance"`

	// MaxPoolSize refuses runs whose candidate pools exceed this size.
	MaxPoolSize int `yaml:"max_pool_size"`

	// ExcludeBatches lists batch identifiers dropped before matching.
	ExcludeBatches []string `yaml:"exclude_batches"`

	Outlier     OutlierConfig     `yaml:"outlier"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Envelope    EnvelopeConfig    `yaml:"envelope"`
}

// OutlierConfig configures the per-batch regression outlier test.
type OutlierConfig struct {
	ZThreshold float64 `yaml:"z_threshold"`

	// RegressorA and RegressorB select the regression abscissa per family:
	// linear (geometry) | area (geometry squared).
	RegressorA string `yaml:"regressor_a"`
	RegressorB string `yaml:"regressor_b"`
}

// CalibrationConfig configures the inverse calibration lookup.
type CalibrationConfig struct {
	ReferenceTemperature float64 `yaml:"reference_temperature"`
	GridPoints           int     `yaml:"grid_points"`
	GridMin              float64 `yaml:"grid_min"`
	GridMax              float64 `yaml:"grid_max"`

	// MaxInverseResidual is the largest |predicted - target| accepted from
	// the grid search before the sensor is declared ineligible.
	MaxInverseResidual float64 `yaml:"max_inverse_residual"`
}

// EnvelopeConfig is the specification envelope and the fit order used
// against it.
type EnvelopeConfig struct {
	PolyOrder int                   `yaml:"poly_order"`
	Points    []types.EnvelopePoint `yaml:"points"`
}

// InventoryConfig selects the repository backend.
type InventoryConfig struct {
	// Driver is one of: sqlite | memory.
	Driver string `yaml:"driver"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// SeedFile is a YAML inventory loaded at startup (required for memory).
	SeedFile string `yaml:"seed_file"`
}

// ServerConfig holds the settings of the serve command.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`

	// HistoryTTL is how long a finished run stays queryable.
	HistoryTTL time.Duration `yaml:"history_ttl"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig guards the HTTP API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header carries the key. Defaults to X-API-Key.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or X-API-Key.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

// AlertsConfig holds the rules evaluated after every serve run and the
// webhook targets notified when one fires or resolves.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule is one threshold condition over a run.
type AlertRule struct {
	// Name identifies the alert and deduplicates it.
	Name string `yaml:"name"`

	// Condition is "field op value", e.g. "match_yield < 60",
	// "events.outlier > 5" or "no_match == ratio".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this long. Defaults to 15 minutes.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig is one delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Matching: MatchingConfig{
			TargetRatio: DefaultTargetRatio,
			Tolerance:   DefaultTolerance,
			MaxPoolSize: DefaultMaxPoolSize,
			Outlier: OutlierConfig{
				ZThreshold: DefaultZThreshold,
				RegressorA: DefaultRegressor,
				RegressorB: DefaultRegressor,
			},
			Calibration: CalibrationConfig{
				ReferenceTemperature: DefaultReferenceTemperature,
				GridPoints:           DefaultGridPoints,
				GridMin:              DefaultGridMin,
				GridMax:              DefaultGridMax,
				MaxInverseResidual:   DefaultMaxInverseResidual,
			},
			Envelope: EnvelopeConfig{
				PolyOrder: DefaultPolyOrder,
			},
		},
		Inventory: InventoryConfig{
			Driver: DefaultDriver,
			Path:   DefaultDBPath,
		},
		Server: ServerConfig{
			HTTPPort:   DefaultHTTPPort,
			HistoryTTL: DefaultHistoryTTL,
			Auth:       AuthConfig{Mode: "none"},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	m := cfg.Matching
	if m.TargetRatio <= 0 {
		return &types.ConfigError{Field: "matching.target_ratio", Reason: "must be positive"}
	}
	if m.Tolerance <= 0 {
		return &types.ConfigError{Field: "matching.tolerance", Reason: "must be positive"}
	}
	if m.MaxPoolSize <= 0 {
		return &types.ConfigError{Field: "matching.max_pool_size", Reason: "must be positive"}
	}
	if m.Outlier.ZThreshold <= 0 {
		return &types.ConfigError{Field: "matching.outlier.z_threshold", Reason: "must be positive"}
	}
	for _, r := range []struct{ field, kind string }{
		{"matching.outlier.regressor_a", m.Outlier.RegressorA},
		{"matching.outlier.regressor_b", m.Outlier.RegressorB},
	} {
		switch r.kind {
		case "linear", "area":
		default:
			return &types.ConfigError{Field: r.field, Reason: fmt.Sprintf("unknown regressor %q", r.kind)}
		}
	}
	c := m.Calibration
	if c.GridPoints < 2 {
		return &types.ConfigError{Field: "matching.calibration.grid_points", Reason: "must be at least 2"}
	}
	if c.GridMax <= c.GridMin {
		return &types.ConfigError{Field: "matching.calibration.grid_max", Reason: "must exceed grid_min"}
	}
	if c.MaxInverseResidual <= 0 {
		return &types.ConfigError{Field: "matching.calibration.max_inverse_residual", Reason: "must be positive"}
	}
	e := m.Envelope
	if e.PolyOrder < 1 {
		return &types.ConfigError{Field: "matching.envelope.poly_order", Reason: "must be at least 1"}
	}
	if len(e.Points) == 0 {
		return &types.ConfigError{Field: "matching.envelope.points", Reason: "must not be empty"}
	}
	for i, p := range e.Points {
		if p.Min > p.Max {
			return &types.ConfigError{Field: fmt.Sprintf("matching.envelope.points[%d]", i), Reason: "min exceeds max"}
		}
	}
	switch cfg.Inventory.Driver {
	case "sqlite":
		if cfg.Inventory.Path == "" {
			return &types.ConfigError{Field: "inventory.path", Reason: "is required for the sqlite driver"}
		}
	case "memory":
		if cfg.Inventory.SeedFile == "" {
			return &types.ConfigError{Field: "inventory.seed_file", Reason: "is required for the memory driver"}
		}
	default:
		return &types.ConfigError{Field: "inventory.driver", Reason: fmt.Sprintf("unknown driver %q", cfg.Inventory.Driver)}
	}
	if cfg.Server.HistoryTTL <= 0 {
		return &types.ConfigError{Field: "server.history_ttl", Reason: "must be positive"}
	}
	switch cfg.Server.Auth.Mode {
	case "none":
	case "apikey":
		if cfg.Server.Auth.KeyEnv == "" {
			return &types.ConfigError{Field: "server.auth.key_env", Reason: "is required for apikey mode"}
		}
	default:
		return &types.ConfigError{Field: "server.auth.mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Server.Auth.Mode)}
	}

	seen := make(map[string]bool, len(cfg.Alerts.Rules))
	for i, r := range cfg.Alerts.Rules {
		field := fmt.Sprintf("alerts.rules[%d]", i)
		switch {
		case r.Name == "":
			return &types.ConfigError{Field: field + ".name", Reason: "is required"}
		case seen[r.Name]:
			return &types.ConfigError{Field: field + ".name", Reason: fmt.Sprintf("duplicate rule %q", r.Name)}
		case r.Condition == "":
			return &types.ConfigError{Field: field + ".condition", Reason: "is required"}
		}
		seen[r.Name] = true
		switch r.Severity {
		case "", "critical", "warning", "info":
		default:
			return &types.ConfigError{Field: field + ".severity", Reason: fmt.Sprintf("unknown severity %q", r.Severity)}
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return &types.ConfigError{Field: fmt.Sprintf("alerts.webhooks[%d].type", i), Reason: fmt.Sprintf("unknown webhook type %q", w.Type)}
		}
	}
	return nil
}

// Package config loads the YAML configuration file spec.md §6 defines:
// named data sources with pool-shaping parameters, and a flat props block
// of engine-wide defaults. Loading resolves ${VAR} environment references
// and validates every field before the engine starts, collecting every
// error instead of stopping at the first (mirroring the teacher's
// pattern of returning a single aggregated error from config validation).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/intellisql/intellisql/internal/catalog"
)

// DataSource is one entry of the config file's dataSources map.
type DataSource struct {
	Type                        string `yaml:"type"`
	URL                         string `yaml:"url"`
	Username                    string `yaml:"username"`
	Password                    string `yaml:"password"`
	MaximumPoolSize             int    `yaml:"maximumPoolSize"`
	MinimumIdle                 int    `yaml:"minimumIdle"`
	ConnectionTimeoutMillis     int    `yaml:"connectionTimeout"`
	IdleTimeoutMillis           int    `yaml:"idleTimeout"`
	MaxLifetimeMillis           int    `yaml:"maxLifetime"`
	HealthCheckIntervalSeconds  int    `yaml:"healthCheckIntervalSeconds"`
	HealthCheckTimeoutSeconds   int    `yaml:"healthCheckTimeoutSeconds"`
	HealthCheckFailureThreshold int    `yaml:"healthCheckFailureThreshold"`
}

// Props is the config file's flat engine-wide defaults block.
type Props struct {
	MaxIntermediateRows int64  `yaml:"maxIntermediateRows"`
	QueryTimeoutSeconds int    `yaml:"queryTimeoutSeconds"`
	DefaultFetchSize    int    `yaml:"defaultFetchSize"`
	EnableQueryLogging  bool   `yaml:"enableQueryLogging"`
	LogLevel            string `yaml:"logLevel"`
}

// Config is the fully parsed, substituted, defaulted, and validated
// configuration file.
type Config struct {
	DataSources map[string]DataSource `yaml:"dataSources"`
	Props       Props                 `yaml:"props"`
}

// recognized data source types, matching the closed set spec.md §6 names.
var validSourceTypes = map[string]bool{
	"MYSQL": true, "POSTGRESQL": true, "ELASTIC_SEARCH": true,
}

var validLogLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, substitutes, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse runs the same pipeline as Load against an in-memory document,
// useful for tests and for configs assembled by other tooling.
func Parse(raw []byte) (*Config, error) {
	substituted, err := substituteEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	cfg.applyDefaults()

	if errs := cfg.validate(); len(errs) > 0 {
		return nil, aggregateError(errs)
	}
	return &cfg, nil
}

// substituteEnv replaces every ${VAR} occurrence with its environment
// value, failing when any variable is undefined and naming every undefined
// one in a single error (spec.md §6: "a missing variable fails startup").
func substituteEnv(doc string) (string, error) {
	var missing []string
	result := envRef.ReplaceAllStringFunc(doc, func(match string) string {
		name := envRef.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("config: undefined environment variable(s): %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// applyDefaults fills every zero-valued field with spec.md §6's documented
// default.
func (c *Config) applyDefaults() {
	for id, ds := range c.DataSources {
		if ds.MaximumPoolSize == 0 {
			ds.MaximumPoolSize = 20
		}
		if ds.MinimumIdle == 0 {
			ds.MinimumIdle = 5
		}
		if ds.ConnectionTimeoutMillis == 0 {
			ds.ConnectionTimeoutMillis = 30000
		}
		if ds.IdleTimeoutMillis == 0 {
			ds.IdleTimeoutMillis = 600000
		}
		if ds.MaxLifetimeMillis == 0 {
			ds.MaxLifetimeMillis = 1800000
		}
		if ds.HealthCheckTimeoutSeconds == 0 {
			ds.HealthCheckTimeoutSeconds = 5
		}
		if ds.HealthCheckFailureThreshold == 0 {
			ds.HealthCheckFailureThreshold = 3
		}
		c.DataSources[id] = ds
	}
	if c.Props.MaxIntermediateRows == 0 {
		c.Props.MaxIntermediateRows = 100000
	}
	if c.Props.QueryTimeoutSeconds == 0 {
		c.Props.QueryTimeoutSeconds = 300
	}
	if c.Props.DefaultFetchSize == 0 {
		c.Props.DefaultFetchSize = 1000
	}
	if c.Props.LogLevel == "" {
		c.Props.LogLevel = "INFO"
	}
}

// validate checks types, ranges, and cross-field constraints, returning
// every violation found rather than stopping at the first (spec.md §6).
func (c *Config) validate() []error {
	var errs []error
	for id, ds := range c.DataSources {
		if !validSourceTypes[ds.Type] {
			errs = append(errs, fmt.Errorf("dataSources.%s: unsupported type %q", id, ds.Type))
		}
		if ds.URL == "" {
			errs = append(errs, fmt.Errorf("dataSources.%s: url is required", id))
		}
		if ds.MaximumPoolSize <= 0 {
			errs = append(errs, fmt.Errorf("dataSources.%s: maximumPoolSize must be positive", id))
		}
		if ds.MinimumIdle < 0 {
			errs = append(errs, fmt.Errorf("dataSources.%s: minimumIdle must not be negative", id))
		}
		if ds.MinimumIdle > ds.MaximumPoolSize {
			errs = append(errs, fmt.Errorf("dataSources.%s: minimumIdle (%d) must not exceed maximumPoolSize (%d)", id, ds.MinimumIdle, ds.MaximumPoolSize))
		}
		if ds.HealthCheckIntervalSeconds < 0 {
			errs = append(errs, fmt.Errorf("dataSources.%s: healthCheckIntervalSeconds must not be negative", id))
		}
	}
	if c.Props.MaxIntermediateRows <= 0 {
		errs = append(errs, fmt.Errorf("props.maxIntermediateRows must be positive"))
	}
	if c.Props.QueryTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("props.queryTimeoutSeconds must be positive"))
	}
	if c.Props.DefaultFetchSize <= 0 {
		errs = append(errs, fmt.Errorf("props.defaultFetchSize must be positive"))
	}
	if !validLogLevels[c.Props.LogLevel] {
		errs = append(errs, fmt.Errorf("props.logLevel: unsupported level %q", c.Props.LogLevel))
	}
	return errs
}

// aggregateError folds every collected validation error into one, in the
// order they were found.
func aggregateError(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("config: %d validation error(s):\n  %s", len(errs), strings.Join(msgs, "\n  "))
}

// sourceKind maps a config file's type string onto the catalog's SourceKind.
func sourceKind(t string) catalog.SourceKind {
	if t == "ELASTIC_SEARCH" {
		return catalog.KindDocumentIndex
	}
	return catalog.KindRelational
}

// ConnectionConfig converts a DataSource into the catalog's pool-shaping
// configuration type.
func (d DataSource) ConnectionConfig() catalog.ConnectionConfig {
	return catalog.ConnectionConfig{
		URL:                         d.URL,
		Username:                    d.Username,
		Password:                    d.Password,
		MaximumPoolSize:             d.MaximumPoolSize,
		MinimumIdle:                 d.MinimumIdle,
		ConnectionTimeoutMillis:     d.ConnectionTimeoutMillis,
		IdleTimeoutMillis:           d.IdleTimeoutMillis,
		MaxLifetimeMillis:           d.MaxLifetimeMillis,
		HealthCheckIntervalSeconds:  d.HealthCheckIntervalSeconds,
		HealthCheckTimeoutSeconds:   d.HealthCheckTimeoutSeconds,
		HealthCheckFailureThreshold: d.HealthCheckFailureThreshold,
	}
}

// BuildSources constructs a catalog.Source for every configured data
// source, ready to hand to catalog.Builder.AddSource.
func (c *Config) BuildSources() map[string]*catalog.Source {
	out := make(map[string]*catalog.Source, len(c.DataSources))
	for id, ds := range c.DataSources {
		out[id] = catalog.NewSource(id, sourceKind(ds.Type), ds.ConnectionConfig())
	}
	return out
}

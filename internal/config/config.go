// Package config loads the benchmark configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
	BackendGRPC      = "grpc"
)

var (
	backends   = []string{BackendMemory, BackendPostgres, BackendMongo, BackendFirestore, BackendGRPC}
	strategies = []string{"sequential", "pooled", "cooperative"}
	idSchemes  = []string{"typeid", "uuid1"}
	outputs    = []string{"text", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
	logOutputs = []string{"stdout", "stderr", "file", "both"}
)

type (
	// Config is the full benchmark configuration. Load returns it by value and nothing
	// mutates it afterwards.
	Config struct {
		Backend         string            `yaml:"backend"`
		DSN             string            `yaml:"dsn"`        // postgres/mongo connection string, grpc target
		Database        string            `yaml:"database"`   // mongo database
		ProjectID       string            `yaml:"project_id"` // firestore project; empty detects it
		Schema          string            `yaml:"schema"`     // SQL applied to postgres before the run
		MaxConns        int               `yaml:"max_conns"`  // postgres pool size; 0 sizes it to the largest count
		Collections     CollectionsConfig `yaml:"collections"`
		PoolWidth       int               `yaml:"pool_width"`
		Counts          []int             `yaml:"counts"`
		Sizes           []int             `yaml:"sizes"` // 0 selects the structured record
		Trials          int               `yaml:"trials"`
		Fixture         string            `yaml:"fixture"`
		IDScheme        string            `yaml:"id_scheme"`
		Seed            int64             `yaml:"seed"`
		Strategies      []string          `yaml:"strategies"`
		Output          string            `yaml:"output"`
		ContinueOnError bool              `yaml:"continue_on_error"`
		VerifyIsolation bool              `yaml:"verify_isolation"`
		Memory          MemoryConfig      `yaml:"memory"`
		Log             LogConfig         `yaml:"log"`
		Serve           ServeConfig       `yaml:"serve"`
	}

	// CollectionsConfig names the collections used by blocking and cooperative strategies.
	CollectionsConfig struct {
		Sync  string `yaml:"sync"`
		Async string `yaml:"async"`
	}

	// MemoryConfig tunes the in-process backend.
	MemoryConfig struct {
		Latency      time.Duration `yaml:"latency"`
		FailOnWrite  int           `yaml:"fail_on_write"`
		FailOnDelete int           `yaml:"fail_on_delete"`
	}

	// LogConfig mirrors logger.Config.
	LogConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, console
		Output     string `yaml:"output"` // stdout, stderr, file, both
		FilePath   string `yaml:"file_path"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
	}

	// ServeConfig configures the document server.
	ServeConfig struct {
		Addr string `yaml:"addr"`
	}
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend: BackendMemory,
		Collections: CollectionsConfig{
			Sync:  "benchmark",
			Async: "benchmark-async",
		},
		PoolWidth:       10,
		Counts:          []int{1, 10, 100},
		Sizes:           []int{1024, 10 * 1024, 100 * 1024},
		Trials:          5,
		IDScheme:        "typeid",
		Seed:            1,
		Strategies:      slices.Clone(strategies),
		Output:          "text",
		VerifyIsolation: true,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Serve: ServeConfig{Addr: "127.0.0.1:50051"},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConnPoolSize is the connection pool size for backends that pool connections. Unless
// max_conns is set it covers the largest count, so the cooperative strategy, which has
// a whole workload in flight, is not capped at the pooled strategy's width.
func (c Config) ConnPoolSize() int {
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	size := c.PoolWidth
	for _, n := range c.Counts {
		size = max(size, n)
	}
	return size
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %v", field, value, allowed))
		}
	}

	oneOf("backend", c.Backend, backends)
	oneOf("id_scheme", c.IDScheme, idSchemes)
	oneOf("output", c.Output, outputs)
	oneOf("log.level", c.Log.Level, logLevels)
	oneOf("log.format", c.Log.Format, logFormats)
	oneOf("log.output", c.Log.Output, logOutputs)

	switch c.Backend {
	case BackendPostgres, BackendGRPC:
		if c.DSN == "" {
			errs = append(errs, fmt.Errorf("dsn: required for backend %s", c.Backend))
		}
	case BackendMongo:
		if c.DSN == "" {
			errs = append(errs, errors.New("dsn: required for backend mongo"))
		}
		if c.Database == "" {
			errs = append(errs, errors.New("database: required for backend mongo"))
		}
	}

	if c.Collections.Sync == "" {
		errs = append(errs, errors.New("collections.sync: cannot be empty"))
	}
	if c.Collections.Async == "" {
		errs = append(errs, errors.New("collections.async: cannot be empty"))
	}
	if c.PoolWidth <= 0 {
		errs = append(errs, fmt.Errorf("pool_width: must be positive, got %d", c.PoolWidth))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max_conns: cannot be negative, got %d", c.MaxConns))
	}
	if c.Trials <= 0 {
		errs = append(errs, fmt.Errorf("trials: must be positive, got %d", c.Trials))
	}
	if len(c.Counts) == 0 {
		errs = append(errs, errors.New("counts: cannot be empty"))
	}
	for _, n := range c.Counts {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("counts: must be positive, got %d", n))
		}
	}
	if len(c.Sizes) == 0 {
		errs = append(errs, errors.New("sizes: cannot be empty"))
	}
	for _, n := range c.Sizes {
		if n < 0 {
			errs = append(errs, fmt.Errorf("sizes: cannot be negative, got %d", n))
		}
	}
	if len(c.Strategies) == 0 {
		errs = append(errs, errors.New("strategies: cannot be empty"))
	}
	for _, s := range c.Strategies {
		oneOf("strategies", s, strategies)
	}
	if c.Memory.Latency < 0 {
		errs = append(errs, fmt.Errorf("memory.latency: cannot be negative, got %s", c.Memory.Latency))
	}
	if c.Log.Output == "file" || c.Log.Output == "both" {
		if c.Log.FilePath == "" {
			errs = append(errs, errors.New("log.file_path: required for file output"))
		}
	}

	return errors.Join(errs...)
}

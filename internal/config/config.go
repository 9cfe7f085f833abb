package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/simplex/internal/optimization/neldermead"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development" yaml:"environment"`
	// ConfigFile names an optional YAML file. Values found in it take
	// precedence over the environment.
	ConfigFile string `env:"CONFIG_FILE" yaml:"-"`
	HTTP       struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080" yaml:"port"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s" yaml:"read_timeout"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s" yaml:"write_timeout"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s" yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" yaml:"level"`
		Format string `env:"LOG_FORMAT" envDefault:"json" yaml:"format"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr" yaml:"output"`
	} `yaml:"logging"`
	Store struct {
		Type string `env:"STORE_TYPE" envDefault:"memory" yaml:"type"`
		DSN  string `env:"STORE_DSN" yaml:"dsn"`
	} `yaml:"store"`
	Optimization struct {
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"10" yaml:"worker_count"`
		// MaxIterationsLimit caps every job, so no job runs forever.
		MaxIterationsLimit int     `env:"OPT_MAX_ITERATIONS_LIMIT" envDefault:"100000" yaml:"max_iterations_limit"`
		MaxIterations      int     `env:"OPT_MAX_ITERATIONS" envDefault:"1000" yaml:"max_iterations"`
		FTol               float64 `env:"OPT_F_TOL" yaml:"f_tol"`
		XTol               float64 `env:"OPT_X_TOL" yaml:"x_tol"`
		VarTol             float64 `env:"OPT_VAR_TOL" envDefault:"1e-12" yaml:"var_tol"`
		Step               float64 `env:"OPT_INITIAL_STEP" envDefault:"0.1" yaml:"initial_step"`
		Reflection         float64 `env:"OPT_REFLECTION" envDefault:"1.0" yaml:"reflection"`
		Expansion          float64 `env:"OPT_EXPANSION" envDefault:"2.0" yaml:"expansion"`
		Contraction        float64 `env:"OPT_CONTRACTION" envDefault:"0.5" yaml:"contraction"`
		Shrink             float64 `env:"OPT_SHRINK" envDefault:"0.5" yaml:"shrink"`
		ShrinkMode         string  `env:"OPT_SHRINK_MODE" envDefault:"mirror" yaml:"shrink_mode"`
		LogSimplices       bool    `env:"OPT_LOG_SIMPLICES" envDefault:"false" yaml:"log_simplices"`
	} `yaml:"optimization"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	// Set default store DSN based on the backend
	if cfg.Store.DSN == "" && cfg.Store.Type == "sqlite" {
		// Ensure the data directory exists
		if err := os.MkdirAll("data", 0755); err != nil {
			return nil, err
		}
		cfg.Store.DSN = "file:data/simplex.db?_pragma=busy_timeout(5000)"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the values the server relies on.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store type %q", c.Store.Type)
	}
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.MaxIterationsLimit < 1 {
		return fmt.Errorf("max iterations limit must be positive, got %d", c.Optimization.MaxIterationsLimit)
	}
	if _, ok := neldermead.ParseShrinkMode(c.Optimization.ShrinkMode); !ok {
		return fmt.Errorf("unknown shrink mode %q", c.Optimization.ShrinkMode)
	}
	return nil
}

// Coefficients returns the configured default transformation factors.
func (c *Config) Coefficients() neldermead.Coefficients {
	return neldermead.Coefficients{
		Reflection:  c.Optimization.Reflection,
		Expansion:   c.Optimization.Expansion,
		Contraction: c.Optimization.Contraction,
		Shrink:      c.Optimization.Shrink,
	}
}

// Settings returns the configured default stopping rules.
func (c *Config) Settings() neldermead.Settings {
	return neldermead.Settings{
		MaxIterations: c.Optimization.MaxIterations,
		FTol:          c.Optimization.FTol,
		XTol:          c.Optimization.XTol,
		VarTol:        c.Optimization.VarTol,
	}
}

package grouplasso

import (
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds solver parameters for a group-lasso path fit.
type Config struct {
	InnerIter    int     `yaml:"inner_iter"`    // Proximal iterations per group visit
	OuterIter    int     `yaml:"outer_iter"`    // Refinement passes per path step
	Thresh       float64 `yaml:"thresh"`        // Inner L1 change tolerance
	OuterThresh  float64 `yaml:"outer_thresh"`  // Refinement L1 change tolerance
	Gamma        float64 `yaml:"gamma"`         // Line-search shrink factor in (0, 1)
	Momentum     float64 `yaml:"momentum"`      // Initial trial step size
	Reset        int     `yaml:"reset"`         // Acceleration restart period
	MaxBacktrack int     `yaml:"max_backtrack"` // Line-search trials before giving up on a group

	// IntegerMomentum truncates the extrapolation weight count%reset/(count%reset+3)
	// to an integer, which switches acceleration off. Only useful for reproducing
	// fits made with the truncating formula.
	IntegerMomentum bool `yaml:"integer_momentum"`

	Standardize bool `yaml:"standardize"` // Center and scale the columns of X
	Verbose     bool `yaml:"verbose"`     // Enable progress logs
	LogStep     int  `yaml:"log_step"`    // Logging frequency in path steps

	Logger   *zerolog.Logger `yaml:"-"` // Defaults to the global logger when Verbose
	Observer Observer        `yaml:"-"` // Optional instrumentation hook
}

// NewDefaultConfig returns recommended default parameters.
func NewDefaultConfig() *Config {
	return &Config{
		InnerIter:    1000,
		OuterIter:    1000,
		Thresh:       1e-6,
		OuterThresh:  1e-6,
		Gamma:        0.8,
		Momentum:     1,
		Reset:        10,
		MaxBacktrack: 100,
		LogStep:      1,
	}
}

// LoadConfig reads a YAML config file on top of NewDefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read solver config: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse solver config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks parameter ranges.
func (c *Config) Validate() error {
	switch {
	case c.InnerIter <= 0:
		return invalid("InnerIter", "must be positive, got %d", c.InnerIter)
	case c.OuterIter <= 0:
		return invalid("OuterIter", "must be positive, got %d", c.OuterIter)
	case c.Thresh < 0 || math.IsNaN(c.Thresh):
		return invalid("Thresh", "must be non-negative, got %v", c.Thresh)
	case c.OuterThresh < 0 || math.IsNaN(c.OuterThresh):
		return invalid("OuterThresh", "must be non-negative, got %v", c.OuterThresh)
	case !(c.Gamma > 0 && c.Gamma < 1):
		return invalid("Gamma", "must lie in (0, 1), got %v", c.Gamma)
	case !(c.Momentum > 0) || math.IsInf(c.Momentum, 0):
		return invalid("Momentum", "must be positive and finite, got %v", c.Momentum)
	case c.Reset <= 0:
		return invalid("Reset", "must be positive, got %d", c.Reset)
	case c.MaxBacktrack <= 0:
		return invalid("MaxBacktrack", "must be positive, got %d", c.MaxBacktrack)
	case c.LogStep <= 0:
		return invalid("LogStep", "must be positive, got %d", c.LogStep)
	}
	return nil
}

func (c *Config) logger() zerolog.Logger {
	switch {
	case c.Logger != nil:
		return *c.Logger
	case c.Verbose:
		return log.Logger
	default:
		return zerolog.Nop()
	}
}

func (c *Config) observer() Observer {
	if c.Observer == nil {
		return nopObserver{}
	}
	return c.Observer
}

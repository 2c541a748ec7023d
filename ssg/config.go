package ssg

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/patrikhermansson/ssg/core"
	"gopkg.in/yaml.v3"
)

// Parameter keys, as accepted by Config.Set and used in YAML files.
const (
	KeyL             = "L"
	KeyR             = "R"
	KeyAngle         = "A"
	KeyNTry          = "n_try"
	KeyLSearch       = "L_search"
	KeyNNGraphPath   = "nn_graph_path"
	KeyWorkers       = "workers"
	KeyLockShards    = "lock_shards"
	KeyReciprocation = "reciprocation"
	KeySeed          = "seed"
)

// Reciprocation selects how Link phase 2 handles concurrent updates of one row.
type Reciprocation string

const (
	// ReciprocationRelaxed reads a row, prunes outside the lock and overwrites it.
	// A concurrent update of the same row between read and write is lost.
	ReciprocationRelaxed Reciprocation = "relaxed"
	// ReciprocationStrict re-checks a per-row version under the write lock and
	// prunes again when the row changed in the meantime.
	ReciprocationStrict Reciprocation = "strict"
)

// Config holds build and search parameters.
type Config struct {
	L             int           `yaml:"L"`             // candidate pool size during build
	R             int           `yaml:"R"`             // maximum out-degree
	Angle         float64       `yaml:"A"`             // diversification angle in degrees
	NTry          int           `yaml:"n_try"`         // number of entry points
	LSearch       int           `yaml:"L_search"`      // default candidate pool size during search
	NNGraphPath   string        `yaml:"nn_graph_path"` // candidate k-NN graph file
	Workers       int           `yaml:"workers"`       // 0 means one per CPU
	LockShards    int           `yaml:"lock_shards"`   // 0 means one lock per node
	Reciprocation Reciprocation `yaml:"reciprocation"`
	ShowProgress  bool          `yaml:"show_progress"`
	Seed          int64         `yaml:"seed"` // 0 means core.GetSeed
}

// DefaultConfig returns the parameters commonly used for SIFT-like datasets.
func DefaultConfig() Config {
	return Config{
		L:             100,
		R:             50,
		Angle:         60,
		NTry:          10,
		LSearch:       100,
		Reciprocation: ReciprocationRelaxed,
	}
}

// Validate checks that all parameters are in range.
func (c Config) Validate() error {
	switch {
	case c.L <= 0:
		return fmt.Errorf("%w: L must be positive, got %d", ErrInvalidConfig, c.L)
	case c.R <= 0:
		return fmt.Errorf("%w: R must be positive, got %d", ErrInvalidConfig, c.R)
	case c.Angle <= 0 || c.Angle >= 180:
		return fmt.Errorf("%w: A must be in (0, 180), got %g", ErrInvalidConfig, c.Angle)
	case c.NTry <= 0:
		return fmt.Errorf("%w: n_try must be positive, got %d", ErrInvalidConfig, c.NTry)
	case c.LSearch <= 0:
		return fmt.Errorf("%w: L_search must be positive, got %d", ErrInvalidConfig, c.LSearch)
	case c.Workers < 0 || c.LockShards < 0:
		return fmt.Errorf("%w: workers and lock_shards must not be negative", ErrInvalidConfig)
	}
	switch c.Reciprocation {
	case "", ReciprocationRelaxed, ReciprocationStrict:
	default:
		return fmt.Errorf("%w: unknown reciprocation mode %q", ErrInvalidConfig, c.Reciprocation)
	}
	return nil
}

// Set parses value into the parameter named key.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case KeyL:
		c.L, err = strconv.Atoi(value)
	case KeyR:
		c.R, err = strconv.Atoi(value)
	case KeyAngle:
		c.Angle, err = strconv.ParseFloat(value, 64)
	case KeyNTry:
		c.NTry, err = strconv.Atoi(value)
	case KeyLSearch:
		c.LSearch, err = strconv.Atoi(value)
	case KeyNNGraphPath:
		c.NNGraphPath = value
	case KeyWorkers:
		c.Workers, err = strconv.Atoi(value)
	case KeyLockShards:
		c.LockShards, err = strconv.Atoi(value)
	case KeyReciprocation:
		c.Reciprocation = Reciprocation(strings.ToLower(value))
	case KeySeed:
		c.Seed, err = strconv.ParseInt(value, 10, 64)
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfig, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err)
	}
	return nil
}

// SetPair parses a "key=value" assignment.
func (c *Config) SetPair(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return fmt.Errorf("%w: expected key=value, got %q", ErrInvalidConfig, kv)
	}
	return c.Set(strings.TrimSpace(key), value)
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// seed returns the configured seed or one from the environment.
func (c Config) seed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return core.GetSeed()
}

func (c Config) threshold() float32 {
	return float32(cosDegrees(c.Angle))
}

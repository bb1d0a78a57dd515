package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	kenv "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/katalvlaran/metnet/lp/simplex"
)

const (
	defaultConfigFile = "metnet.toml"
	envPrefix         = "METNET_"
)

// Config holds the settings of one metnet invocation.
type Config struct {
	Model       string  `koanf:"model"`
	Verbose     bool    `koanf:"verbose"`
	LogFormat   string  `koanf:"log-format"`
	MetricsFile string  `koanf:"metrics-file"`
	Tolerance   float64 `koanf:"tolerance"`
	NodeLimit   int     `koanf:"node-limit"`

	Epsilon   float64 `koanf:"epsilon"`
	Objective string  `koanf:"objective"`
	Fraction  float64 `koanf:"fraction"`
	Seed      int64   `koanf:"seed"`
	Scaling   float64 `koanf:"scaling"`
	Type      string  `koanf:"type"`

	Core      []string `koanf:"core"`
	Compounds []string `koanf:"compound"`
	Databases []string `koanf:"database"`
	Penalty   string   `koanf:"penalty"`

	DBPenalty       float64 `koanf:"db-penalty"`
	TPPenalty       float64 `koanf:"tp-penalty"`
	SourcePenalty   float64 `koanf:"source-penalty"`
	SinkPenalty     float64 `koanf:"sink-penalty"`
	BoundsExpansion bool    `koanf:"allow-bounds-expansion"`
	ImplicitSinks   bool    `koanf:"implicit-sinks"`
	EachCompound    bool    `koanf:"each"`
	NoFBASinks      bool    `koanf:"no-fba-sinks"`
	PrintGaps       bool    `koanf:"print-gaps"`
	FastGapFill     bool    `koanf:"fastgapfill"`
}

func defaults() map[string]any {
	return map[string]any{
		"model":                  "model.yaml",
		"verbose":                false,
		"log-format":             "compact",
		"metrics-file":           "",
		"tolerance":              simplex.DefaultTolerance,
		"node-limit":             simplex.DefaultNodeLimit,
		"epsilon":                1e-5,
		"objective":              "",
		"fraction":               1.0,
		"seed":                   int64(1),
		"scaling":                1e5,
		"type":                   "reaction",
		"core":                   []string{},
		"compound":               []string{},
		"database":               []string{},
		"penalty":                "",
		"db-penalty":             0.0,
		"tp-penalty":             0.0,
		"source-penalty":         0.0,
		"sink-penalty":           0.0,
		"allow-bounds-expansion": false,
		"implicit-sinks":         false,
		"each":                   false,
		"no-fba-sinks":           false,
		"print-gaps":             false,
		"fastgapfill":            false,
	}
}

// globalFlags registers the flags shared by every command.
func globalFlags(f *pflag.FlagSet) {
	f.String("config", defaultConfigFile, "TOML configuration file")
	f.StringP("model", "m", "model.yaml", "Model document (YAML)")
	f.BoolP("verbose", "v", false, "Log debug output")
	f.String("log-format", "compact", "Log format: compact or json")
	f.String("metrics-file", "", "Write solver metrics in Prometheus text format to this file")
	f.Float64("tolerance", simplex.DefaultTolerance, "LP feasibility tolerance")
	f.Int("node-limit", simplex.DefaultNodeLimit, "Branch-and-bound node limit (0 = unlimited)")
}

// loadConfig merges, by increasing priority: defaults, the TOML file,
// METNET_* environment variables and command-line flags.
func loadConfig(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path := defaultConfigFile
	if f != nil {
		if p, err := f.GetString("config"); err == nil {
			path = p
		}
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		explicit := f != nil && f.Changed("config")
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	// METNET_NODE_LIMIT=10 sets node-limit.
	if err := k.Load(kenv.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate rejects values the solver and algorithm options would panic on.
func (c *Config) validate() error {
	switch {
	case !(c.Tolerance > 0):
		return fmt.Errorf("tolerance must be > 0, got %g", c.Tolerance)
	case c.NodeLimit < 0:
		return fmt.Errorf("node-limit must be >= 0, got %d", c.NodeLimit)
	case !(c.Scaling > 0):
		return fmt.Errorf("scaling must be > 0, got %g", c.Scaling)
	}
	return nil
}

// mapProvider feeds a flat map of defaults to koanf.
type mapProvider map[string]any

func (p mapProvider) Read() (map[string]any, error) { return p, nil }

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider: ReadBytes not supported")
}

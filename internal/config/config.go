// Package config loads dbref settings from an HCL file, DBREF_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/agentic-research/dbref/api"
	"github.com/agentic-research/dbref/internal/resolve"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DBREF_MAX_DEPTH.
const EnvPrefix = "DBREF"

// Setting keys. They double as flag names.
const (
	KeyDB          = "db"
	KeyReadOnly    = "read-only"
	KeyCollections = "collections"
	KeyMaxDepth    = "max-depth"
	KeyHopLimit    = "hop-limit"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var ErrInvalidConfig = errors.New("invalid config")

// Settings is the merged view of file, environment and flags.
type Settings struct {
	DBPath      string
	ReadOnly    bool
	Collections []string // nil: every collection
	MaxDepth    int
	HopLimit    int
	LogLevel    string
	LogFormat   string
}

// Default returns the built-in configuration.
func Default() *api.Config {
	depth := resolve.Unbounded
	return &api.Config{
		Store:   &api.Store{Path: "dbref.db"},
		Resolve: &api.Resolve{MaxDepth: &depth},
		Log:     &api.Log{Level: logrus.InfoLevel.String(), Format: FormatText},
	}
}

// Load decodes the HCL file at path on top of Default. An empty path yields
// the defaults.
func Load(path string) (*api.Config, error) {
	def := Default()
	if path == "" {
		return def, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var file api.Config
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, path, err)
	}
	return merge(def, &file), nil
}

// merge overlays the blocks and attributes present in file onto def.
func merge(def, file *api.Config) *api.Config {
	out := *def
	if s := file.Store; s != nil {
		st := *def.Store
		if s.Path != "" {
			st.Path = s.Path
		}
		st.ReadOnly = s.ReadOnly
		out.Store = &st
	}
	if r := file.Resolve; r != nil {
		rs := *def.Resolve
		if r.Collections != nil {
			rs.Collections = r.Collections
		}
		if r.MaxDepth != nil {
			rs.MaxDepth = r.MaxDepth
		}
		rs.HopLimit = r.HopLimit
		out.Resolve = &rs
	}
	if l := file.Log; l != nil {
		lg := *def.Log
		if l.Level != "" {
			lg.Level = l.Level
		}
		if l.Format != "" {
			lg.Format = l.Format
		}
		out.Log = &lg
	}
	return &out
}

// NewViper returns a viper instance seeded with cfg as defaults and reading
// DBREF_* environment variables.
func NewViper(cfg *api.Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDB, cfg.Store.Path)
	v.SetDefault(KeyReadOnly, cfg.Store.ReadOnly)
	// Left unset when absent so IsSet distinguishes "all" from "none".
	if cfg.Resolve.Collections != nil {
		v.SetDefault(KeyCollections, cfg.Resolve.Collections)
	}
	v.SetDefault(KeyMaxDepth, *cfg.Resolve.MaxDepth)
	v.SetDefault(KeyHopLimit, cfg.Resolve.HopLimit)
	v.SetDefault(KeyLogLevel, cfg.Log.Level)
	v.SetDefault(KeyLogFormat, cfg.Log.Format)
	return v
}

// BindFlags makes explicitly set flags override everything else.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	return v.BindPFlags(flags)
}

// FromViper reads the merged settings and validates them. Values that do
// not parse, typically from the environment, are an error rather than zero.
func FromViper(v *viper.Viper) (Settings, error) {
	s := Settings{
		DBPath:    v.GetString(KeyDB),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
	}
	var err error
	if s.ReadOnly, err = cast.ToBoolE(v.Get(KeyReadOnly)); err != nil {
		return s, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, KeyReadOnly, err)
	}
	if s.MaxDepth, err = cast.ToIntE(v.Get(KeyMaxDepth)); err != nil {
		return s, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, KeyMaxDepth, err)
	}
	if s.HopLimit, err = cast.ToIntE(v.Get(KeyHopLimit)); err != nil {
		return s, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, KeyHopLimit, err)
	}
	if v.IsSet(KeyCollections) {
		s.Collections = collections(v.Get(KeyCollections))
	}
	return s, s.Validate()
}

// collections accepts a list or a comma separated string, the latter being
// what DBREF_COLLECTIONS carries.
func collections(raw any) []string {
	var parts []string
	switch c := raw.(type) {
	case []string:
		parts = c
	case []any:
		for _, p := range c {
			parts = append(parts, fmt.Sprint(p))
		}
	case string:
		parts = strings.Split(c, ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.DBPath == "" {
		return fmt.Errorf("%w: empty database path", ErrInvalidConfig)
	}
	if s.MaxDepth < resolve.Unbounded {
		return fmt.Errorf("%w: max depth %d", ErrInvalidConfig, s.MaxDepth)
	}
	if s.HopLimit < 0 {
		return fmt.Errorf("%w: hop limit %d", ErrInvalidConfig, s.HopLimit)
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if s.LogFormat != FormatText && s.LogFormat != FormatJSON {
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, s.LogFormat)
	}
	return nil
}

// ResolveOptions turns the settings into resolver options.
func (s Settings) ResolveOptions() []resolve.Option {
	return []resolve.Option{
		resolve.WithCollections(s.Collections),
		resolve.WithMaxDepth(s.MaxDepth),
		resolve.WithHopLimit(s.HopLimit),
	}
}

// ConfigureLogger applies level and format to l.
func ConfigureLogger(l *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	switch format {
	case FormatText:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, format)
	}
	l.SetLevel(lvl)
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the configuration file looked up next to the sources.
const FileName = "bitgen.toml"

// Config is the decoded project configuration.
type Config struct {
	Generate Generate `toml:"generate"`
	Log      Log      `toml:"log"`
}

// Generate holds the code generation settings.
type Generate struct {
	// Suffix is appended to the lowercased source file or schema name to
	// form the output file name.
	Suffix        string `toml:"suffix" default:"_bitgen.go"`
	Header        string `toml:"header" default:"Code generated by bitgen. DO NOT EDIT."`
	RuntimeImport string `toml:"runtime_import" default:"bitgen/bitfield"`
	DiagFormat    string `toml:"diag_format" default:"text"`
}

// Log holds the logger settings.
type Log struct {
	Level       string `toml:"level" default:"info"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Load reads path. A missing file yields the defaults; keys absent from the
// file keep their default value.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(path, data, cfg)
}

// Parse decodes TOML data over base, which usually comes from Default.
func Parse(path string, data []byte, base *Config) (*Config, error) {
	cfg := *base
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Generate.DiagFormat {
	case "text", "json":
	default:
		return fmt.Errorf("generate.diag_format must be text or json, got %q", c.Generate.DiagFormat)
	}
	if !strings.HasSuffix(c.Generate.Suffix, ".go") {
		return fmt.Errorf("generate.suffix must end in .go, got %q", c.Generate.Suffix)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Logger builds a zap logger writing to stderr. verbose forces the debug
// level.
func (c *Config) Logger(verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	var zcfg zap.Config
	if c.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

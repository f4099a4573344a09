package logger

import (
	"fmt"
	"slices"
	"strings"
)

var (
	validLevels    = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	validEncodings = []string{"json", "console"}
)

// Config is the configuration for the logger.
type Config struct {
	// Level, debug, info, warn, error, dpanic, panic, fatal
	// default: "info"
	Level string `yaml:"level"`
	// Encoding, json or console
	// default: "json"
	Encoding string `yaml:"encoding"`
	// Name is attached to every entry as the logger name.
	// default: "entitycache"
	Name string `yaml:"name"`
	// default: []string{"stderr"}
	OutputPaths []string `yaml:"output_paths"`
	// default: []string{"stderr"}
	ErrorOutputPaths []string `yaml:"error_output_paths"`
}

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Encoding:         "json",
		Name:             "entitycache",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Level == "" {
		out.Level = defaults.Level
	}
	if out.Encoding == "" {
		out.Encoding = defaults.Encoding
	}
	if out.Name == "" {
		out.Name = defaults.Name
	}
	if len(out.OutputPaths) == 0 {
		out.OutputPaths = defaults.OutputPaths
	}
	if len(out.ErrorOutputPaths) == 0 {
		out.ErrorOutputPaths = defaults.ErrorOutputPaths
	}
	return &out
}

// Validate checks level and encoding.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Level) {
		return ErrInvalidLevel(c.Level, fmt.Errorf("must be one of: %s", strings.Join(validLevels, ", ")))
	}
	if !slices.Contains(validEncodings, c.Encoding) {
		return ErrInvalidEncoding(c.Encoding)
	}
	return nil
}

// Package config handles jumpline.toml configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the conventional name of the configuration file.
const FileName = "jumpline.toml"

const (
	DefaultTimeout   = 15 * time.Second
	DefaultCacheSize = 512
	DefaultVerbosity = 1
)

// Config is the contents of jumpline.toml.
type Config struct {
	Engine    Engine    `toml:"engine"`
	Classpath Classpath `toml:"classpath"`
	Log       Log       `toml:"log"`
}

// Engine configures jump orchestration.
type Engine struct {
	FetchTimeout Duration `toml:"fetch_timeout"`
	ApplyTimeout Duration `toml:"apply_timeout"`
	DumpDir      string   `toml:"dump_dir"`
}

// Classpath lists where class files are read from.
type Classpath struct {
	Entries   []string `toml:"entries"`
	CacheSize int      `toml:"cache_size"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Path returns the log file, or nil for stderr.
func (l Log) Path() *string {
	if l.File == "" {
		return nil
	}
	return &l.File
}

// Duration is a time.Duration written as a string such as "15s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Engine.FetchTimeout <= 0 {
		c.Engine.FetchTimeout = Duration(DefaultTimeout)
	}
	if c.Engine.ApplyTimeout <= 0 {
		c.Engine.ApplyTimeout = Duration(DefaultTimeout)
	}
	if c.Classpath.CacheSize <= 0 {
		c.Classpath.CacheSize = DefaultCacheSize
	}
	if c.Log.Verbosity == 0 {
		c.Log.Verbosity = DefaultVerbosity
	}
}

// Parse decodes TOML and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("config: unknown key %s", undec[0])
	}
	c.applyDefaults()
	return &c, nil
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return c, nil
}

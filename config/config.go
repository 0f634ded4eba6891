// Package config handles avm.toml configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/colorfulnotion/avm/log"
)

const DefaultPath = "avm.toml"

type Config struct {
	Log   Log   `toml:"log"`
	Run   Run   `toml:"run"`
	Store Store `toml:"store"`
	Debug Debug `toml:"debug"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type Log struct {
	Level   string   `toml:"level"`
	Modules []string `toml:"modules"`
	JSON    bool     `toml:"json"`
}

type Run struct {
	MaxSteps uint64 `toml:"max_steps"`
	Legacy   bool   `toml:"legacy"`
	Trace    string `toml:"trace"` // JSONL output path
	Serve    string `toml:"serve"` // websocket listen address
}

type Store struct {
	Path string `toml:"path"`
}

type Debug struct {
	History string `toml:"history"`
	Prompt  string `toml:"prompt"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:   Log{Level: "info"},
		Run:   Run{MaxSteps: 100_000},
		Store: Store{Path: "avm.db"},
		Debug: Debug{History: "/tmp/avm_history.txt", Prompt: "avm> "},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug(log.CLIModule, "no config file, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := Parse(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes TOML into cfg, keeping values the document does not set.
func Parse(data string, cfg *Config) error {
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	return nil
}

// Encode writes c as TOML.
func (c *Config) Encode() (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return "", err
	}
	return sb.String(), nil
}

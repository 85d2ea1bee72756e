package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type displayConfig struct {
	Name string `toml:"name"`
	ID   int    `toml:"id"`
}

type fileConfig struct {
	Listen      string          `toml:"listen"`
	Link        string          `toml:"link"`
	ReadTimeout string          `toml:"read_timeout"`
	DialTimeout string          `toml:"dial_timeout"`
	Baud        int             `toml:"baud"`
	Rate        float64         `toml:"rate"`
	Burst       int             `toml:"burst"`
	Displays    []displayConfig `toml:"display"`
}

// serveConfig holds everything the HTTP bridge needs
type serveConfig struct {
	Listen      string
	Link        string
	ReadTimeout time.Duration
	DialTimeout time.Duration
	Baud        int
	Rate        float64 // commands per second towards the display bus
	Burst       int
	Displays    []displayConfig
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Listen:      ":8000",
		ReadTimeout: 5 * time.Second,
		DialTimeout: 5 * time.Second,
		Baud:        9600,
		Rate:        4,
		Burst:       2,
	}
}

// loadServeConfig overlays the keys present in the TOML file at path onto cfg
func loadServeConfig(path string, cfg *serveConfig) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("link") {
		cfg.Link = strings.TrimSpace(raw.Link)
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("rate") {
		cfg.Rate = raw.Rate
	}
	if meta.IsDefined("burst") {
		cfg.Burst = raw.Burst
	}
	if meta.IsDefined("display") {
		cfg.Displays = raw.Displays
	}
	return nil
}

func (c serveConfig) validate() error {
	if c.Link == "" {
		return fmt.Errorf("no link configured")
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", c.Rate)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}

	seen := make(map[string]bool, len(c.Displays))
	for _, d := range c.Displays {
		if d.Name == "" {
			return fmt.Errorf("display %d has no name", d.ID)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate display name %q", d.Name)
		}
		seen[d.Name] = true
		if _, err := checkDisplayID(d.ID); err != nil {
			return fmt.Errorf("display %q: %w", d.Name, err)
		}
	}
	return nil
}

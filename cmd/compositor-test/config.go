package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/spi"
)

// config is the optional YAML configuration.
type config struct {
	// Modes maps connector identity to a preferred "WxH" mode.
	Modes map[string]string `yaml:"modes"`

	// Panels configures the SPI backend.
	Panels []panelConfig `yaml:"panels"`
}

type panelConfig struct {
	ID           string `yaml:"id"`
	Port         string `yaml:"port"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	SpeedHz      int    `yaml:"speed_hz"`
	DC           string `yaml:"dc"`
	Reset        string `yaml:"reset"`
	Backlight    string `yaml:"backlight"`
	InvertColors bool   `yaml:"invert_colors"`
}

func loadConfig(path string) (*config, error) {
	cfg := new(config)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *config) panels() []spi.Panel {
	panels := make([]spi.Panel, 0, len(c.Panels))
	for _, p := range c.Panels {
		panels = append(panels, spi.Panel{
			ID:           p.ID,
			Port:         p.Port,
			Width:        p.Width,
			Height:       p.Height,
			SpeedHz:      p.SpeedHz,
			DC:           p.DC,
			Reset:        p.Reset,
			Backlight:    p.Backlight,
			InvertColors: p.InvertColors,
		})
	}
	return panels
}

// preferredMode resolves the configured mode for an output, falling back
// to the hardware default.
func (c *config) preferredMode(o *compositor.Output) *compositor.Mode {
	want, ok := c.Modes[o.ID()]
	if !ok {
		return o.DefaultMode()
	}
	for m := o.Modes(); m != nil; m = m.Next() {
		if m.Name() == want {
			return m
		}
	}
	return o.DefaultMode()
}

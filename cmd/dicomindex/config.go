package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// fileConfig mirrors the command-line options for use in a config file.
// Explicit flags override anything read from the file.
type fileConfig struct {
	Directory        string `yaml:"directory"`
	Pattern          string `yaml:"pattern"`
	Depth            *int   `yaml:"depth"`
	FollowSymlinks   *bool  `yaml:"follow_symlinks"`
	RequirePixelData *bool  `yaml:"require_pixel_data"`
	Level            string `yaml:"level"`
	Workers          *int   `yaml:"workers"`
}

func readConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

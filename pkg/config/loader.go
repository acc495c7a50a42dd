// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the fleetstress YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global FleetstressConfig
	once   sync.Once

	// cfgValidate checks the struct tags after every unmarshal.
	cfgValidate = validator.New()
)

// Load ensures the config is loaded into the Global variable from the
// default path (~/.fleetstress/fleetstress.yaml), creating a default file
// on first run.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not find the user's home directory: %w", err)
	}
	configPath := filepath.Join(home, ".fleetstress", "fleetstress.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf(" First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}
	cfg, err := LoadFile(configPath)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

// LoadFile reads, parses, and validates the config at an explicit path.
func LoadFile(path string) (FleetstressConfig, error) {
	var cfg FleetstressConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err = Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks a config against its struct tags plus the cross-field
// rules the tags cannot express.
func Validate(cfg *FleetstressConfig) error {
	if err := cfgValidate.Struct(cfg); err != nil {
		return err
	}
	switch cfg.Source.Type {
	case "gcs", "s3":
		if cfg.Source.Bucket == "" {
			return fmt.Errorf("source type %q requires a bucket", cfg.Source.Type)
		}
	case "local":
		if cfg.Source.LocalDir == "" {
			return fmt.Errorf("source type local requires local_dir")
		}
	}
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

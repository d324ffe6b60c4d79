package main

import (
	"github.com/vyrodovalexey/coreipc/internal/config"
)

// loadAndValidateConfig loads the configuration file, or the defaults
// when no path is given, and validates it.
func loadAndValidateConfig(configPath string) (*config.BridgeConfig, error) {
	var (
		cfg *config.BridgeConfig
		err error
	)

	if configPath == "" {
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

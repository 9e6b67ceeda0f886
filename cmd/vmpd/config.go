package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/openvmd/vmp/domain"
)

// vmpd config.toml key mapping to daemon runtime settings.
type fileConfig struct {
	ListenAddr       string     `toml:"listen_addr"`
	MaxOutput        int        `toml:"max_output"`
	LogLevel         string     `toml:"log_level"`
	DisabledCommands []string   `toml:"disabled_commands"`
	Users            []fileUser `toml:"user"`
}

type fileUser struct {
	Name     string `toml:"name"`
	Password string `toml:"password"`
	Role     string `toml:"role"`
	Timezone string `toml:"timezone"`
}

type serviceConfig struct {
	ListenAddr string
	MaxOutput  int
	LogLevel   string
	Disabled   []string
	Users      domain.StaticChecker
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		ListenAddr: ":9390",
		LogLevel:   "info",
		Users:      domain.StaticChecker{},
	}
}

// loadServiceConfig loads a TOML config with default overlay.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, errors.Wrap(err, "load vmpd config")
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("max_output") {
		cfg.MaxOutput = raw.MaxOutput
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("disabled_commands") {
		cfg.Disabled = raw.DisabledCommands
	}
	for _, u := range raw.Users {
		if u.Name == "" {
			return serviceConfig{}, errors.New("load vmpd config: user entry missing name")
		}
		cfg.Users[u.Name] = domain.StaticUser{
			Password: u.Password,
			Role:     u.Role,
			Timezone: u.Timezone,
		}
	}
	return cfg, nil
}

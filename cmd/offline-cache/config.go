package main

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int      `yaml:"port" env:"OFFLINE_CACHE_PORT"`
	Version         string   `yaml:"version" env:"OFFLINE_CACHE_VERSION"`
	APIOrigin       string   `yaml:"apiOrigin" env:"OFFLINE_CACHE_API_ORIGIN"`
	StaticOrigin    string   `yaml:"staticOrigin" env:"OFFLINE_CACHE_STATIC_ORIGIN"`
	DB              string   `yaml:"db" env:"OFFLINE_CACHE_DB"`
	Manifest        []string `yaml:"manifest"`
	APIPrefixes     []string `yaml:"apiPrefixes"`
	ExcludeHosts    []string `yaml:"excludeHosts"`
	OfflinePage     string   `yaml:"offlinePage" env:"OFFLINE_CACHE_OFFLINE_PAGE"`
	PlaceholderIcon string   `yaml:"placeholderIcon" env:"OFFLINE_CACHE_PLACEHOLDER_ICON"`
	StrictInstall   bool     `yaml:"strictInstall" env:"OFFLINE_CACHE_STRICT_INSTALL"`
}

// getConfig loads the configuration from the given YAML file (if any)
// and applies environment variable overrides.
func getConfig(filename string) (Config, error) {
	config := Config{
		Port:            8080,
		Version:         "dev",
		DB:              "cache.db",
		OfflinePage:     "/offline.html",
		PlaceholderIcon: "/static/icons/icon-192x192.png",
	}
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, err
		}
	}
	err := env.Parse(&config)
	return config, err
}

package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the udad server's YAML configuration file: a flat struct,
// since this daemon has no layered cluster config to speak of.
type Config struct {
	Listen       string `yaml:"listen"`
	MetricsAddr  string `yaml:"metrics_addr"`
	GeomDataRoot string `yaml:"geom_data_root"`
	Proxy        string `yaml:"proxy"`
	Auth         struct {
		Enabled bool   `yaml:"enabled"`
		Secret  string `yaml:"secret"`
	} `yaml:"auth"`
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig is one entry of the device-indirection table (spec.md §4.3
// Scenario B "DEVICE class"): a device name answered by forwarding the
// request, rewritten, to the named server protocol at host[:port].
type DeviceConfig struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

func defaultConfig() Config {
	return Config{Listen: "0.0.0.0:56565", MetricsAddr: ":9090"}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "udad: read config %q", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "udad: parse config %q", path)
	}
	return cfg, nil
}

// Package config loads the shared YAML configuration used by the cmd/
// tools (device path, session parameters, GPIO wiring). The core t1
// library never reads a config file itself; it only takes typed Options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of the cmd/ tools' config file. t1cat is the
// only tool that loads it, and it does not read GPIOChip/GPIOOffset: its GPIO
// reset line comes from the --gpio-reset flag.
type Config struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	SAD  byte `yaml:"sad"`
	DAD  byte `yaml:"dad"`
	IFSD int  `yaml:"ifsd"`

	Retries int `yaml:"retries"`

	GPIOChip   string `yaml:"gpio_chip"`
	GPIOOffset int    `yaml:"gpio_offset"`

	TraceDir string `yaml:"trace_dir"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Device:  "/dev/ttyUSB0",
		Baud:    9600,
		IFSD:    254,
		Retries: 3,
	}
}

// Load reads and parses a YAML config file, starting from Default() so a
// partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

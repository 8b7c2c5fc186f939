package repo

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/pandonetwork/pando/internal/workdir"
)

// Config is the per-workspace configuration stored at .pando/config.
// Author stamps every snapshot; the environment can override it without
// editing the file.
type Config struct {
	Author string `yaml:"author" env:"PANDO_AUTHOR"`
	// Remote is parsed and preserved for transport layers; the core does
	// not use it.
	Remote string `yaml:"remote,omitempty" env:"PANDO_REMOTE"`
}

// loadConfig reads the workspace config, applying environment overrides.
// The file is parsed explicitly (it has no extension for cleanenv to sniff)
// and cleanenv layers the env vars on top.
func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config env overrides: %w", err)
	}
	return cfg, nil
}

// writeConfig persists the workspace config.
func writeConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := workdir.SafeWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kmathy/carlink/auth"
	"github.com/kmathy/carlink/infra/mqtt"
	"github.com/kmathy/carlink/infra/rest"
)

type Config struct {
	UserID  string        `json:"user_id"`
	VINs    []string      `json:"vins"`
	Auth    auth.Conf     `json:"auth"`
	API     rest.Config   `json:"api"`
	MQTT    mqtt.Config   `json:"mqtt"`
	Session SessionConfig `json:"session"`
	Metrics MetricsConfig `json:"metrics"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("CARLINK_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "carlink_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.API.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Session.SetDefaults()
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if len(cfg.VINs) == 0 {
		return nil, fmt.Errorf("at least one vin is required")
	}
	if err := cfg.API.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

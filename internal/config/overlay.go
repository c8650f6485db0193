package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type overlay struct {
	NotificationTemplates map[string]string `yaml:"notification_templates"`
	Resilience            *ResilienceConfig `yaml:"resilience"`
}

func applyOverlay(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var ov overlay
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if len(ov.NotificationTemplates) > 0 {
		cfg.NotificationTemplates = ov.NotificationTemplates
	}
	if ov.Resilience != nil {
		cfg.Resilience = *ov.Resilience
	}
	return nil
}

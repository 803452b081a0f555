package file

import (
	"errors"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultWatchInterval = 2000

var ErrMissingSrc = errors.New("file input requires a src path or glob")

// Config is the yaml config section of the file input
type Config struct {
	Src             string `json:"src" yaml:"src"`
	FromTail        bool   `json:"from_tail" yaml:"from_tail"`
	WatchIntervalMs int    `json:"watch_interval_ms" yaml:"watch_interval_ms"`
}

// ParseConfig() decodes the config section on top of the defaults and validates it
func ParseConfig(node *yaml.Node) (Config, error) {
	cfg := Config{WatchIntervalMs: DefaultWatchInterval}
	if node != nil && !node.IsZero() {
		if err := node.Decode(&cfg); err != nil {
			return cfg, err
		}
	}
	if cfg.Src == "" {
		return cfg, ErrMissingSrc
	}
	if cfg.WatchIntervalMs < 0 {
		cfg.WatchIntervalMs = 0
	}
	return cfg, nil
}

func (c Config) watchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMs) * time.Millisecond
}

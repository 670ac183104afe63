package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ModelPath string // hcl model file
	Block     string // root block name, empty selects the file's last block

	Steps        int
	Inputs       []string // raw name=value pairs for boundary inputs
	SnapshotPath string   // write the final context snapshot here when set

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is a required configuration field and cannot be empty")
	}
	if cfg.Steps < 1 {
		return nil, errors.New("Steps must be at least 1")
	}

	return &cfg, nil
}

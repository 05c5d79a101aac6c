package harvest

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines polling harvester configuration.
type Config struct {
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	Interval  time.Duration `yaml:"interval"`
	Threshold time.Duration `yaml:"threshold"`
	BatchSize int           `yaml:"batch_size"`
}

// LoadConfig loads config from yaml or env. Env values fill gaps the yaml
// file leaves; BLOB_PROCESS_THRESHOLD is in minutes.
func LoadConfig() (Config, error) {
	cfg := Config{
		Bucket:    os.Getenv("HARVEST_BUCKET"),
		Prefix:    os.Getenv("HARVEST_PREFIX"),
		Interval:  getenvDuration("HARVEST_INTERVAL", time.Minute),
		Threshold: time.Duration(getenvIntDefault("BLOB_PROCESS_THRESHOLD", 1440)) * time.Minute,
		BatchSize: getenvIntDefault("HARVEST_BATCH_SIZE", 500),
	}

	if path := os.Getenv("HARVEST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1440 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Bucket == "" {
		return cfg, errors.New("harvest: bucket required")
	}
	return cfg, nil
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

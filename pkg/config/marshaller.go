package config

import "github.com/goccy/go-yaml"

// Prep is the config file consumed by the offline verification tool: the
// database to describe against and the queries whose metadata is cached.
type Prep struct {
	URL           string   `yaml:"url"`
	SchemaVersion string   `yaml:"schema_version"`
	Output        string   `yaml:"output"`
	Queries       []string `yaml:"queries"`
	QueryFiles    []string `yaml:"query_files"`
}

func UnmarshalPrepConfig(data []byte) (*Prep, error) {
	var cfg Prep
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MarshalPrepConfig(cfg *Prep) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func UnmarshalPoolConfig(data []byte) (*PoolConfig, error) {
	var cfg PoolConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MarshalPoolConfig(cfg *PoolConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

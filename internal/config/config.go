package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type RelationalConfig struct {
	DSN string `toml:"dsn"`
}

type ModelConfig struct {
	HiddenDim  int     `toml:"hidden_dim"`
	NumLayers  int     `toml:"num_layers"`
	FeatureDim int     `toml:"feature_dim"`
	Dropout    float64 `toml:"dropout"`
}

type TrainingConfig struct {
	Epochs         int     `toml:"epochs"`
	LearningRate   float64 `toml:"learning_rate"`
	InteractionCap int     `toml:"interaction_cap"`
	WatchSyncLimit int     `toml:"watch_sync_limit"`
	Seed           int64   `toml:"seed"`
}

type StalenessConfig struct {
	MaxAgeDays   int     `toml:"max_age_days"`
	GrowthFactor float64 `toml:"growth_factor"`
}

type ArtifactsConfig struct {
	Dir string `toml:"dir"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Neo4j      Neo4jConfig      `toml:"neo4j"`
	Relational RelationalConfig `toml:"relational"`
	Model      ModelConfig      `toml:"model"`
	Training   TrainingConfig   `toml:"training"`
	Staleness  StalenessConfig  `toml:"staleness"`
	Artifacts  ArtifactsConfig  `toml:"artifacts"`
	Server     ServerConfig     `toml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Neo4j:      Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j"},
		Relational: RelationalConfig{DSN: "recgraph.db"},
		Model:      ModelConfig{HiddenDim: 128, NumLayers: 3, FeatureDim: 64, Dropout: 0.3},
		Training:   TrainingConfig{Epochs: 30, LearningRate: 0.001, InteractionCap: 5000, WatchSyncLimit: 10000},
		Staleness:  StalenessConfig{MaxAgeDays: 7, GrowthFactor: 1.2},
		Artifacts:  ArtifactsConfig{Dir: "ml_models"},
		Server:     ServerConfig{Port: "8080"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads the config file if it exists and falls back to
// defaults otherwise. Environment variables override connection settings.
func LoadOrDefault(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Neo4j.Password = pass
	}
	if dsn := os.Getenv("RELATIONAL_DSN"); dsn != "" {
		cfg.Relational.DSN = dsn
	}

	return cfg, nil
}

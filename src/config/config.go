package config

import (
	"fmt"
	"os"

	"market-relay/src/helpers"
	"market-relay/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes, applying defaults before validation
func Parse(data []byte) (*Config, error) {
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	config := &Config{MConfig: &modelConfig}

	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Defaults returns the configuration used for keys the YAML file leaves out
func Defaults() models.MConfig {
	return models.MConfig{
		Name:     "market-relay",
		Host:     "0.0.0.0",
		Port:     8000,
		LogLevel: "INFO",
		GrpcHost: "0.0.0.0",
		GrpcPort: 8001,
		Ingest: models.MIngestConfig{
			Host:            "0.0.0.0",
			Port:            9000,
			MaxMessageBytes: 10 * 1024 * 1024,
		},
		Snapshot: models.MSnapshotConfig{
			LiveFile:            "live_market_data.json",
			FallbackFile:        "market_data.json",
			PollIntervalSeconds: 5,
		},
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath:        "data/pushes.db",
			RetentionDays: 30,
		},
		Client: models.MClientConfig{
			URL:            "ws://localhost:8000/data",
			TimeoutSeconds: 30,
			Retries:        1,
		},
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Query server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if err := validatePort("server", c.Port); err != nil {
		return err
	}

	// gRPC health is optional; port 0 disables it
	if c.GrpcPort != 0 {
		if err := validatePort("grpc", c.GrpcPort); err != nil {
			return err
		}
	}

	// Ingestion
	if c.Ingest.Host == "" {
		return fmt.Errorf("ingest host cannot be empty")
	}
	if err := validatePort("ingest", c.Ingest.Port); err != nil {
		return err
	}
	if c.Ingest.Port == c.Port {
		return fmt.Errorf("ingest port %d collides with server port", c.Ingest.Port)
	}
	if c.Ingest.MaxMessageBytes <= 0 {
		return fmt.Errorf("ingest max message bytes must be greater than 0")
	}

	// Snapshot files
	if c.Snapshot.LiveFile == "" {
		return fmt.Errorf("live snapshot file cannot be empty")
	}
	if c.Snapshot.FallbackFile == "" {
		return fmt.Errorf("fallback snapshot file cannot be empty")
	}
	if c.Snapshot.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}

	// Push journal
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "none":
	case "":
		return fmt.Errorf("database type cannot be empty")
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	// Client adapter
	if c.Client.TimeoutSeconds <= 0 {
		return fmt.Errorf("client timeout must be greater than 0")
	}
	if c.Client.Retries < 0 {
		return fmt.Errorf("client retries cannot be negative")
	}

	return nil
}

func validatePort(what string, port int) error {
	if port <= 1024 || port > 65535 {
		return fmt.Errorf("invalid %s port number: %d (must be between 1025 and 65535)", what, port)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

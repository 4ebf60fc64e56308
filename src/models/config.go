package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Ingest   MIngestConfig   `yaml:"ingest"`
	Snapshot MSnapshotConfig `yaml:"snapshot"`
	Storage  MStorageConfig  `yaml:"storage"`
	Client   MClientConfig   `yaml:"client"`
}

type MIngestConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`
}

type MSnapshotConfig struct {
	LiveFile            string `yaml:"live_file"`
	FallbackFile        string `yaml:"fallback_file"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres or none
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"` // 0 keeps every entry
}

type MClientConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
}

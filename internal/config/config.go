// Package config loads, merges, and validates the recorder's configuration
// from defaults, an optional INI file, environment variables, and
// command-line flags, in that precedence order.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	App              AppConfig
	Logger           LoggerConfig
	CommandInterface CommandInterfaceConfig
	Debug            DebugConfig
	FileReader       FileReaderConfig
	RedisRelay       RedisRelayConfig
	MQTTRelay        MQTTRelayConfig
}

// AppConfig holds process-identity and top-level logging settings.
type AppConfig struct {
	Name            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// LoggerConfig configures the logger satellite (SPEC_FULL §4.I).
type LoggerConfig struct {
	FilePath           string
	HexDumpBytesPerRow int
	HexDumpBytesPerCol int
}

// CommandInterfaceConfig configures the command-protocol TCP listener.
type CommandInterfaceConfig struct {
	ListeningPort int
	MaxMessage    int
}

// DebugConfig configures startup thread suppression and best-effort
// CPU pinning.
type DebugConfig struct {
	SuppressThreads []string
	CPUAffinity     []int
}

// ReadMode is the file reader's re-read policy.
type ReadMode string

const (
	ReadModeOnce  ReadMode = "once"
	ReadModeLoop  ReadMode = "loop"
	ReadModeWatch ReadMode = "watch" // reserved; falls back to once at runtime
)

// FileReaderConfig configures the chunked file-ingestion worker.
type FileReaderConfig struct {
	ReadMode           ReadMode
	Path               string
	TargetWorker       string
	ChunkSize          int
	ChunkDelay         time.Duration
	ReloadDelay        time.Duration
	QueueTimeout       time.Duration
	MaxQueueSize       int
	BlockWhenFull      bool
	LogProgress        bool
	ProgressInterval   time.Duration
}

// RedisRelayConfig configures the Redis Pub/Sub relay.
type RedisRelayConfig struct {
	Enabled      bool
	Address      string
	Channel      string
	TargetWorker string
}

// MQTTRelayConfig configures the MQTT relay.
type MQTTRelayConfig struct {
	Enabled      bool
	Broker       string
	Topic        string
	TargetWorker string
	QoS          byte
}

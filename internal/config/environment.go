package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnvironment loads configuration from environment variables,
// all namespaced under the RECORDER_ prefix.
func LoadFromEnvironment(cfg *Config) {
	applyAppEnv(cfg)
	applyLoggerEnv(cfg)
	applyCommandInterfaceEnv(cfg)
	applyDebugEnv(cfg)
	applyFileReaderEnv(cfg)
	applyRedisRelayEnv(cfg)
	applyMQTTRelayEnv(cfg)
}

// --- App ---

func applyAppEnv(cfg *Config) {
	if v := os.Getenv("RECORDER_APP_NAME"); v != "" {
		cfg.App.Name = v
	}
	if v := os.Getenv("RECORDER_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("RECORDER_LOG_FORMAT"); v != "" {
		cfg.App.LogFormat = v
	}
	if v := getEnvDuration("RECORDER_SHUTDOWN_TIMEOUT"); v != 0 {
		cfg.App.ShutdownTimeout = v
	}
}

// --- Logger ---

func applyLoggerEnv(cfg *Config) {
	if v := os.Getenv("RECORDER_LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.FilePath = v
	}
	if v, ok := getEnvInt("RECORDER_LOGGER_HEXDUMP_BYTES_PER_ROW"); ok {
		cfg.Logger.HexDumpBytesPerRow = v
	}
	if v, ok := getEnvInt("RECORDER_LOGGER_HEXDUMP_BYTES_PER_COL"); ok {
		cfg.Logger.HexDumpBytesPerCol = v
	}
}

// --- Command interface ---

func applyCommandInterfaceEnv(cfg *Config) {
	if v, ok := getEnvInt("RECORDER_COMMAND_LISTENING_PORT"); ok {
		cfg.CommandInterface.ListeningPort = v
	}
	if v, ok := getEnvInt("RECORDER_COMMAND_MAX_MESSAGE"); ok {
		cfg.CommandInterface.MaxMessage = v
	}
}

// --- Debug ---

func applyDebugEnv(cfg *Config) {
	if v := os.Getenv("RECORDER_DEBUG_SUPPRESS_THREADS"); v != "" {
		cfg.Debug.SuppressThreads = splitCSV(v)
	}
	if v := os.Getenv("RECORDER_DEBUG_CPU_AFFINITY"); v != "" {
		cfg.Debug.CPUAffinity = splitCSVInts(v)
	}
}

// --- File reader ---

func applyFileReaderEnv(cfg *Config) {
	if v := os.Getenv("RECORDER_FILE_READER_READ_MODE"); v != "" {
		cfg.FileReader.ReadMode = ReadMode(v)
	}
	if v := os.Getenv("RECORDER_FILE_READER_PATH"); v != "" {
		cfg.FileReader.Path = v
	}
	if v := os.Getenv("RECORDER_FILE_READER_TARGET_WORKER"); v != "" {
		cfg.FileReader.TargetWorker = v
	}
	if v, ok := getEnvInt("RECORDER_FILE_READER_CHUNK_SIZE"); ok {
		cfg.FileReader.ChunkSize = v
	}
	if v := getEnvDuration("RECORDER_FILE_READER_CHUNK_DELAY"); v != 0 {
		cfg.FileReader.ChunkDelay = v
	}
	if v := getEnvDuration("RECORDER_FILE_READER_RELOAD_DELAY"); v != 0 {
		cfg.FileReader.ReloadDelay = v
	}
	if v := getEnvDuration("RECORDER_FILE_READER_QUEUE_TIMEOUT"); v != 0 {
		cfg.FileReader.QueueTimeout = v
	}
	if v, ok := getEnvInt("RECORDER_FILE_READER_MAX_QUEUE_SIZE"); ok {
		cfg.FileReader.MaxQueueSize = v
	}
	if v, ok := getEnvBool("RECORDER_FILE_READER_BLOCK_WHEN_FULL"); ok {
		cfg.FileReader.BlockWhenFull = v
	}
	if v, ok := getEnvBool("RECORDER_FILE_READER_LOG_PROGRESS"); ok {
		cfg.FileReader.LogProgress = v
	}
	if v := getEnvDuration("RECORDER_FILE_READER_PROGRESS_INTERVAL"); v != 0 {
		cfg.FileReader.ProgressInterval = v
	}
}

// --- Redis relay ---

func applyRedisRelayEnv(cfg *Config) {
	if v, ok := getEnvBool("RECORDER_REDIS_RELAY_ENABLED"); ok {
		cfg.RedisRelay.Enabled = v
	}
	if v := os.Getenv("RECORDER_REDIS_RELAY_ADDRESS"); v != "" {
		cfg.RedisRelay.Address = v
	}
	if v := os.Getenv("RECORDER_REDIS_RELAY_CHANNEL"); v != "" {
		cfg.RedisRelay.Channel = v
	}
	if v := os.Getenv("RECORDER_REDIS_RELAY_TARGET_WORKER"); v != "" {
		cfg.RedisRelay.TargetWorker = v
	}
}

// --- MQTT relay ---

func applyMQTTRelayEnv(cfg *Config) {
	if v, ok := getEnvBool("RECORDER_MQTT_RELAY_ENABLED"); ok {
		cfg.MQTTRelay.Enabled = v
	}
	if v := os.Getenv("RECORDER_MQTT_RELAY_BROKER"); v != "" {
		cfg.MQTTRelay.Broker = v
	}
	if v := os.Getenv("RECORDER_MQTT_RELAY_TOPIC"); v != "" {
		cfg.MQTTRelay.Topic = v
	}
	if v := os.Getenv("RECORDER_MQTT_RELAY_TARGET_WORKER"); v != "" {
		cfg.MQTTRelay.TargetWorker = v
	}
	if v, ok := getEnvInt("RECORDER_MQTT_RELAY_QOS"); ok {
		cfg.MQTTRelay.QoS = byte(v)
	}
}

// --- helpers ---

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

func getEnvDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

var (
	flagConfigPath        string
	flagAppName           string
	flagLogLevel          string
	flagLogFormat         string
	flagLoggerFilePath    string
	flagListeningPort     int
	flagSuppressThreads   string
	flagCPUAffinity       string
	flagReadMode          string
	flagFilePath          string
	flagFileTargetWorker  string
	flagChunkSize         int
	flagBlockWhenFull     string
	flagRedisRelayEnabled string
	flagRedisAddress      string
	flagRedisChannel      string
	flagMQTTRelayEnabled  string
	flagMQTTBroker        string
	flagMQTTTopic         string
)

// RegisterFlags registers every command-line flag. Guarded against
// re-registration so tests may call it more than once per process.
func RegisterFlags() {
	if flag.Lookup("c") != nil {
		return
	}

	flag.StringVar(&flagConfigPath, "c", DefaultConfigFile, "path to the INI configuration file")
	flag.StringVar(&flagAppName, "app-name", "", "process name reported in logs")
	flag.StringVar(&flagLogLevel, "log-level", "", "minimum log level (trace|debug|info|warn|error)")
	flag.StringVar(&flagLogFormat, "log-format", "", "log line format (text|json)")
	flag.StringVar(&flagLoggerFilePath, "logger-file", "", "path to mirror log output to, in addition to stdout")
	flag.IntVar(&flagListeningPort, "listening-port", 0, "command_interface TCP listening port")
	flag.StringVar(&flagSuppressThreads, "suppress-threads", "", "comma-separated worker labels to skip at startup")
	flag.StringVar(&flagCPUAffinity, "cpu-affinity", "", "comma-separated CPU indices to pin the process to")
	flag.StringVar(&flagReadMode, "read-mode", "", "file reader re-read policy (once|loop)")
	flag.StringVar(&flagFilePath, "file-path", "", "path the file reader ingests")
	flag.StringVar(&flagFileTargetWorker, "file-target-worker", "", "worker label the file reader pushes chunks to")
	flag.IntVar(&flagChunkSize, "chunk-size", 0, "file reader chunk size in bytes")
	flag.StringVar(&flagBlockWhenFull, "block-when-full", "", "file reader blocks (true) or drops (false) when the target inbox is full")
	flag.StringVar(&flagRedisRelayEnabled, "redis-relay-enabled", "", "enable the Redis Pub/Sub relay")
	flag.StringVar(&flagRedisAddress, "redis-address", "", "Redis server address")
	flag.StringVar(&flagRedisChannel, "redis-channel", "", "Redis Pub/Sub channel to subscribe to")
	flag.StringVar(&flagMQTTRelayEnabled, "mqtt-relay-enabled", "", "enable the MQTT relay")
	flag.StringVar(&flagMQTTBroker, "mqtt-broker", "", "MQTT broker URI")
	flag.StringVar(&flagMQTTTopic, "mqtt-topic", "", "MQTT topic to subscribe to")
}

// ConfigPathFlag parses flags (if not already parsed) and returns the
// -c value, so the loader can resolve the INI layer before applying flags.
func ConfigPathFlag() string {
	if !flag.Parsed() {
		flag.Parse()
	}
	return flagConfigPath
}

// ApplyFlags applies command-line flag values to cfg; an unset flag
// (empty string, or zero for numeric flags) leaves the prior layer's
// value untouched.
func ApplyFlags(cfg *Config) {
	if !flag.Parsed() {
		flag.Parse()
	}

	if flagAppName != "" {
		cfg.App.Name = flagAppName
	}
	if flagLogLevel != "" {
		cfg.App.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.App.LogFormat = flagLogFormat
	}
	if flagLoggerFilePath != "" {
		cfg.Logger.FilePath = flagLoggerFilePath
	}
	if flagListeningPort != 0 {
		cfg.CommandInterface.ListeningPort = flagListeningPort
	}
	if flagSuppressThreads != "" {
		cfg.Debug.SuppressThreads = splitCSV(flagSuppressThreads)
	}
	if flagCPUAffinity != "" {
		cfg.Debug.CPUAffinity = splitCSVInts(flagCPUAffinity)
	}
	if flagReadMode != "" {
		cfg.FileReader.ReadMode = ReadMode(flagReadMode)
	}
	if flagFilePath != "" {
		cfg.FileReader.Path = flagFilePath
	}
	if flagFileTargetWorker != "" {
		cfg.FileReader.TargetWorker = flagFileTargetWorker
	}
	if flagChunkSize != 0 {
		cfg.FileReader.ChunkSize = flagChunkSize
	}
	if b, ok := parseFlagBool(flagBlockWhenFull); ok {
		cfg.FileReader.BlockWhenFull = b
	}
	if b, ok := parseFlagBool(flagRedisRelayEnabled); ok {
		cfg.RedisRelay.Enabled = b
	}
	if flagRedisAddress != "" {
		cfg.RedisRelay.Address = flagRedisAddress
	}
	if flagRedisChannel != "" {
		cfg.RedisRelay.Channel = flagRedisChannel
	}
	if b, ok := parseFlagBool(flagMQTTRelayEnabled); ok {
		cfg.MQTTRelay.Enabled = b
	}
	if flagMQTTBroker != "" {
		cfg.MQTTRelay.Broker = flagMQTTBroker
	}
	if flagMQTTTopic != "" {
		cfg.MQTTRelay.Topic = flagMQTTTopic
	}
}

func parseFlagBool(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

// Usage prints flag help to the default flag output, headed by the
// recorder's own -h banner rather than flag.PrintDefaults's default one.
func Usage(version string) {
	fmt.Printf("recorder %s\n\n", version)
	fmt.Println("Usage: recorder [flags]")
	flag.PrintDefaults()
}

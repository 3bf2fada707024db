package config

import "time"

// GetDefaults returns a Config with every field set to its documented
// default value.
func GetDefaults() *Config {
	return &Config{
		App:              defaultApp(),
		Logger:           defaultLogger(),
		CommandInterface: defaultCommandInterface(),
		Debug:            defaultDebug(),
		FileReader:       defaultFileReader(),
		RedisRelay:       defaultRedisRelay(),
		MQTTRelay:        defaultMQTTRelay(),
	}
}

func defaultApp() AppConfig {
	return AppConfig{
		Name:            "recorder",
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 10 * time.Second,
	}
}

func defaultLogger() LoggerConfig {
	return LoggerConfig{
		FilePath:           "",
		HexDumpBytesPerRow: 16,
		HexDumpBytesPerCol: 8,
	}
}

func defaultCommandInterface() CommandInterfaceConfig {
	return CommandInterfaceConfig{
		ListeningPort: 4150,
		MaxMessage:    64 * 1024,
	}
}

func defaultDebug() DebugConfig {
	return DebugConfig{
		SuppressThreads: []string{},
		CPUAffinity:     []int{},
	}
}

func defaultFileReader() FileReaderConfig {
	return FileReaderConfig{
		ReadMode:         ReadModeOnce,
		Path:             "",
		TargetWorker:     "",
		ChunkSize:        4096,
		ChunkDelay:       0,
		ReloadDelay:      1 * time.Second,
		QueueTimeout:     1 * time.Second,
		MaxQueueSize:     1024,
		BlockWhenFull:    true,
		LogProgress:      false,
		ProgressInterval: 5 * time.Second,
	}
}

func defaultRedisRelay() RedisRelayConfig {
	return RedisRelayConfig{
		Enabled:      false,
		Address:      "localhost:6379",
		Channel:      "recorder",
		TargetWorker: "",
	}
}

func defaultMQTTRelay() MQTTRelayConfig {
	return MQTTRelayConfig{
		Enabled:      false,
		Broker:       "tcp://localhost:1883",
		Topic:        "recorder",
		TargetWorker: "",
		QoS:          1,
	}
}

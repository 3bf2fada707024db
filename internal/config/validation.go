package config

import "fmt"

// Validate checks every field against the ranges and enumerations
// SPEC_FULL §4.G requires, after all four load layers have been applied.
func (c *Config) Validate() error {
	if err := validateApp(c); err != nil {
		return err
	}
	if err := validateLogger(c); err != nil {
		return err
	}
	if err := validateCommandInterface(c); err != nil {
		return err
	}
	if err := validateFileReader(c); err != nil {
		return err
	}
	if err := validateRedisRelay(c); err != nil {
		return err
	}
	if err := validateMQTTRelay(c); err != nil {
		return err
	}
	return nil
}

func validateApp(c *Config) error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name cannot be empty")
	}
	if !isValidLogLevel(c.App.LogLevel) {
		return fmt.Errorf("app.log_level: invalid value %q", c.App.LogLevel)
	}
	if !isValidLogFormat(c.App.LogFormat) {
		return fmt.Errorf("app.log_format: invalid value %q", c.App.LogFormat)
	}
	if c.App.ShutdownTimeout <= 0 {
		return fmt.Errorf("app.shutdown_timeout must be positive")
	}
	return nil
}

func validateLogger(c *Config) error {
	if c.Logger.HexDumpBytesPerRow <= 0 {
		return fmt.Errorf("logger.hex_dump_bytes_per_row must be positive")
	}
	if c.Logger.HexDumpBytesPerCol <= 0 {
		return fmt.Errorf("logger.hex_dump_bytes_per_col must be positive")
	}
	return nil
}

func validateCommandInterface(c *Config) error {
	if c.CommandInterface.ListeningPort < 1 || c.CommandInterface.ListeningPort > 65535 {
		return fmt.Errorf("command_interface.listening_port must be in [1, 65535], got %d", c.CommandInterface.ListeningPort)
	}
	if c.CommandInterface.MaxMessage <= 0 {
		return fmt.Errorf("command_interface.max_message must be positive")
	}
	return nil
}

func validateFileReader(c *Config) error {
	switch c.FileReader.ReadMode {
	case ReadModeOnce, ReadModeLoop, ReadModeWatch:
	default:
		return fmt.Errorf("file_reader.read_mode: invalid value %q", c.FileReader.ReadMode)
	}
	if c.FileReader.Path != "" && c.FileReader.ChunkSize <= 0 {
		return fmt.Errorf("file_reader.chunk_size must be positive")
	}
	if c.FileReader.MaxQueueSize <= 0 {
		return fmt.Errorf("file_reader.max_queue_size must be positive")
	}
	return nil
}

func validateRedisRelay(c *Config) error {
	if !c.RedisRelay.Enabled {
		return nil
	}
	if c.RedisRelay.Address == "" {
		return fmt.Errorf("redis_relay.address cannot be empty when enabled")
	}
	if c.RedisRelay.Channel == "" {
		return fmt.Errorf("redis_relay.channel cannot be empty when enabled")
	}
	return nil
}

func validateMQTTRelay(c *Config) error {
	if !c.MQTTRelay.Enabled {
		return nil
	}
	if c.MQTTRelay.Broker == "" {
		return fmt.Errorf("mqtt_relay.broker cannot be empty when enabled")
	}
	if c.MQTTRelay.Topic == "" {
		return fmt.Errorf("mqtt_relay.topic cannot be empty when enabled")
	}
	if c.MQTTRelay.QoS > 2 {
		return fmt.Errorf("mqtt_relay.qos must be 0, 1, or 2, got %d", c.MQTTRelay.QoS)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

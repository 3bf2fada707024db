package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultConfigFile is the INI file Load consults when the caller does
// not pass an explicit -c path.
const DefaultConfigFile = "config.ini"

// iniDoc is a parsed INI file: section name to key/value pairs. The
// empty string is the implicit section for keys preceding any
// "[section]" header.
type iniDoc map[string]map[string]string

// parseINI reads a minimal INI dialect: "[section]" headers, "key = value"
// pairs, blank lines, and ';' or '#' comment lines. No dependency
// available to this project carries an INI library, so this layer is
// the one ambient concern built directly on the standard library, using
// the same bufio.Scanner-based line processing as the rest of this
// codebase.
func parseINI(r io.Reader) (iniDoc, error) {
	doc := iniDoc{}
	section := ""
	doc[section] = map[string]string{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("config: line %d: malformed section header %q", lineNo, line)
			}
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := doc[section]; !ok {
				doc[section] = map[string]string{}
			}
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("config: line %d: expected \"key = value\", got %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			return nil, fmt.Errorf("config: line %d: empty key", lineNo)
		}
		doc[section][key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading ini: %w", err)
	}
	return doc, nil
}

// LoadFromFile merges the INI file at path into cfg. A missing file at
// the default path is not an error (the file layer is optional); a
// missing file at an explicitly-requested path is.
func LoadFromFile(cfg *Config, path string, explicit bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := parseINI(f)
	if err != nil {
		return err
	}
	applyINI(cfg, doc)
	return nil
}

func applyINI(cfg *Config, doc iniDoc) {
	applyAppINI(cfg, doc["app"])
	applyLoggerINI(cfg, doc["logger"])
	applyCommandInterfaceINI(cfg, doc["command_interface"])
	applyDebugINI(cfg, doc["debug"])
	applyFileReaderINI(cfg, doc["file_reader"])
	applyRedisRelayINI(cfg, doc["redis_relay"])
	applyMQTTRelayINI(cfg, doc["mqtt_relay"])
}

func applyAppINI(cfg *Config, sec map[string]string) {
	if v, ok := sec["name"]; ok {
		cfg.App.Name = v
	}
	if v, ok := sec["log_level"]; ok {
		cfg.App.LogLevel = v
	}
	if v, ok := sec["log_format"]; ok {
		cfg.App.LogFormat = v
	}
	if v, ok := iniDuration(sec, "shutdown_timeout"); ok {
		cfg.App.ShutdownTimeout = v
	}
}

func applyLoggerINI(cfg *Config, sec map[string]string) {
	if v, ok := sec["file_path"]; ok {
		cfg.Logger.FilePath = v
	}
	if v, ok := iniInt(sec, "hex_dump_bytes_per_row"); ok {
		cfg.Logger.HexDumpBytesPerRow = v
	}
	if v, ok := iniInt(sec, "hex_dump_bytes_per_col"); ok {
		cfg.Logger.HexDumpBytesPerCol = v
	}
}

func applyCommandInterfaceINI(cfg *Config, sec map[string]string) {
	if v, ok := iniInt(sec, "listening_port"); ok {
		cfg.CommandInterface.ListeningPort = v
	}
	if v, ok := iniInt(sec, "max_message"); ok {
		cfg.CommandInterface.MaxMessage = v
	}
}

func applyDebugINI(cfg *Config, sec map[string]string) {
	if v, ok := sec["suppress_threads"]; ok {
		cfg.Debug.SuppressThreads = splitCSV(v)
	}
	if v, ok := sec["cpu_affinity"]; ok {
		cfg.Debug.CPUAffinity = splitCSVInts(v)
	}
}

func applyFileReaderINI(cfg *Config, sec map[string]string) {
	if v, ok := sec["read_mode"]; ok {
		cfg.FileReader.ReadMode = ReadMode(v)
	}
	if v, ok := sec["path"]; ok {
		cfg.FileReader.Path = v
	}
	if v, ok := sec["target_worker"]; ok {
		cfg.FileReader.TargetWorker = v
	}
	if v, ok := iniInt(sec, "chunk_size"); ok {
		cfg.FileReader.ChunkSize = v
	}
	if v, ok := iniMillis(sec, "chunk_delay_ms"); ok {
		cfg.FileReader.ChunkDelay = v
	}
	if v, ok := iniMillis(sec, "reload_delay_ms"); ok {
		cfg.FileReader.ReloadDelay = v
	}
	if v, ok := iniMillis(sec, "queue_timeout_ms"); ok {
		cfg.FileReader.QueueTimeout = v
	}
	if v, ok := iniInt(sec, "max_queue_size"); ok {
		cfg.FileReader.MaxQueueSize = v
	}
	if v, ok := iniBool(sec, "block_when_full"); ok {
		cfg.FileReader.BlockWhenFull = v
	}
	if v, ok := iniBool(sec, "log_progress"); ok {
		cfg.FileReader.LogProgress = v
	}
	if v, ok := iniMillis(sec, "progress_interval_ms"); ok {
		cfg.FileReader.ProgressInterval = v
	}
}

func applyRedisRelayINI(cfg *Config, sec map[string]string) {
	if v, ok := iniBool(sec, "enabled"); ok {
		cfg.RedisRelay.Enabled = v
	}
	if v, ok := sec["address"]; ok {
		cfg.RedisRelay.Address = v
	}
	if v, ok := sec["channel"]; ok {
		cfg.RedisRelay.Channel = v
	}
	if v, ok := sec["target_worker"]; ok {
		cfg.RedisRelay.TargetWorker = v
	}
}

func applyMQTTRelayINI(cfg *Config, sec map[string]string) {
	if v, ok := iniBool(sec, "enabled"); ok {
		cfg.MQTTRelay.Enabled = v
	}
	if v, ok := sec["broker"]; ok {
		cfg.MQTTRelay.Broker = v
	}
	if v, ok := sec["topic"]; ok {
		cfg.MQTTRelay.Topic = v
	}
	if v, ok := sec["target_worker"]; ok {
		cfg.MQTTRelay.TargetWorker = v
	}
	if v, ok := iniInt(sec, "qos"); ok {
		cfg.MQTTRelay.QoS = byte(v)
	}
}

func iniInt(sec map[string]string, key string) (int, bool) {
	v, ok := sec[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func iniBool(sec map[string]string, key string) (bool, bool) {
	v, ok := sec[key]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

func iniDuration(sec map[string]string, key string) (time.Duration, bool) {
	v, ok := sec[key]
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	return d, err == nil
}

// iniMillis reads an integer count of milliseconds (the "_ms" keys).
func iniMillis(sec map[string]string, key string) (time.Duration, bool) {
	n, ok := iniInt(sec, key)
	return time.Duration(n) * time.Millisecond, ok
}

func splitCSV(v string) []string {
	if v == "" {
		return []string{}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCSVInts(v string) []int {
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileSettings is the subset of Config that may be set from the TOML file
// and changed while the server is running. Unset fields keep their current
// value.
//
//	log_level = "debug"
//
//	[device]
//	url = "http://10.0.0.12/ai_garden/latest.json"
//	sample_interval = "5s"
//	probe_timeout = "5s"
//
//	[mqtt]
//	topic_prefix = "greenhouse"
//
//	[llm]
//	model = "google/gemini-2.5-flash"
type FileSettings struct {
	LogLevel *string `toml:"log_level"`
	Device   struct {
		URL            *string `toml:"url"`
		SampleInterval *string `toml:"sample_interval"`
		ProbeTimeout   *string `toml:"probe_timeout"`
	} `toml:"device"`
	MQTT struct {
		TopicPrefix *string `toml:"topic_prefix"`
	} `toml:"mqtt"`
	LLM struct {
		Model *string `toml:"model"`
	} `toml:"llm"`

	sampleInterval time.Duration
	probeTimeout   time.Duration
}

// ReadFile parses and validates a settings file.
func ReadFile(path string) (*FileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses TOML settings.
func ParseFile(data []byte) (*FileSettings, error) {
	var fs FileSettings
	if err := toml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if fs.Device.SampleInterval != nil {
		d, err := parsePositiveDuration(*fs.Device.SampleInterval)
		if err != nil {
			return nil, fmt.Errorf("device.sample_interval: %w", err)
		}
		fs.sampleInterval = d
	}
	if fs.Device.ProbeTimeout != nil {
		d, err := parsePositiveDuration(*fs.Device.ProbeTimeout)
		if err != nil {
			return nil, fmt.Errorf("device.probe_timeout: %w", err)
		}
		fs.probeTimeout = d
	}
	return &fs, nil
}

// Apply copies the file's values into cfg. A field is skipped when skip
// reports its environment variable as set.
func (fs *FileSettings) Apply(cfg *Config, skip func(envKey string) bool) {
	if skip == nil {
		skip = func(string) bool { return false }
	}
	if fs.LogLevel != nil && !skip("LOG_LEVEL") {
		cfg.LogLevel = *fs.LogLevel
	}
	if fs.Device.URL != nil && !skip("DEVICE_URL") {
		cfg.Device.URL = *fs.Device.URL
	}
	if fs.sampleInterval > 0 && !skip("SAMPLE_INTERVAL") {
		cfg.Device.SampleInterval = fs.sampleInterval
	}
	if fs.probeTimeout > 0 && !skip("PROBE_TIMEOUT") {
		cfg.Device.ProbeTimeout = fs.probeTimeout
	}
	if fs.MQTT.TopicPrefix != nil && !skip("MQTT_TOPIC_PREFIX") {
		cfg.MQTT.TopicPrefix = *fs.MQTT.TopicPrefix
	}
	if fs.LLM.Model != nil && !skip("LLM_MODEL") {
		cfg.LLM.Model = *fs.LLM.Model
	}
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

// SampleInterval returns the parsed device.sample_interval, or 0 when unset.
func (fs *FileSettings) SampleInterval() time.Duration { return fs.sampleInterval }

// ProbeTimeout returns the parsed device.probe_timeout, or 0 when unset.
func (fs *FileSettings) ProbeTimeout() time.Duration { return fs.probeTimeout }

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"telemetrychannel/internal/logger"
)

// Format identifies the encoding of a configuration file.
type Format int

const (
	FormatJSON Format = iota
	FormatTOML
)

// FormatFor picks the decoder from the file extension. Anything but .toml is read as JSON.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// rawConfig mirrors Config with durations as strings and optional booleans as pointers,
// so absent keys leave defaults untouched.
type rawConfig struct {
	InstrumentationKey string                        `json:"InstrumentationKey" toml:"instrumentation_key"`
	EndpointURI        string                        `json:"EndpointURI" toml:"endpoint_uri"`
	SenderType         string                        `json:"SenderType" toml:"sender_type"`
	Channel            rawChannelConfig              `json:"Channel" toml:"channel"`
	HTTP               rawHTTPConfig                 `json:"HTTP" toml:"http"`
	Kafka              rawKafkaConfig                `json:"Kafka" toml:"kafka"`
	KafkaRest          rawKafkaRestConfig            `json:"KafkaRest" toml:"kafka_rest"`
	Redis              rawRedisConfig                `json:"Redis" toml:"redis"`
	File               rawFileConfig                 `json:"File" toml:"file"`
	SOCKSProxy         rawSOCKSConfig                `json:"SocksProxy" toml:"socks_proxy"`
	Host               rawHostConfig                 `json:"Host" toml:"host"`
	Collectors         map[string]rawCollectorConfig `json:"Collectors" toml:"collectors"`
}

type rawChannelConfig struct {
	SendInterval   string `json:"SendInterval" toml:"send_interval"`
	SendTime       string `json:"SendTime" toml:"send_time"`
	SendBatchSize  int    `json:"SendBatchSize" toml:"send_batch_size"`
	MaxQueueLength int    `json:"MaxQueueLength" toml:"max_queue_length"`
	Mode           string `json:"Mode" toml:"mode"`
}

type rawHTTPConfig struct {
	Timeout    string `json:"Timeout" toml:"timeout"`
	MaxRetries int    `json:"MaxRetries" toml:"max_retries"`
	RetryDelay string `json:"RetryDelay" toml:"retry_delay"`
}

type rawKafkaConfig struct {
	Brokers        []string `json:"Brokers" toml:"brokers"`
	Topic          string   `json:"Topic" toml:"topic"`
	Compression    string   `json:"Compression" toml:"compression"`
	RequiredAcks   int      `json:"RequiredAcks" toml:"required_acks"`
	MaxRetries     int      `json:"MaxRetries" toml:"max_retries"`
	RetryBackoff   string   `json:"RetryBackoff" toml:"retry_backoff"`
	FlushFrequency string   `json:"FlushFrequency" toml:"flush_frequency"`
	FlushMessages  int      `json:"FlushMessages" toml:"flush_messages"`
	Timeout        string   `json:"Timeout" toml:"timeout"`
	EnableTLS      bool     `json:"EnableTLS" toml:"enable_tls"`
	TLSCertFile    string   `json:"TLSCertFile" toml:"tls_cert_file"`
	TLSKeyFile     string   `json:"TLSKeyFile" toml:"tls_key_file"`
	TLSCAFile      string   `json:"TLSCAFile" toml:"tls_ca_file"`
	SASLEnabled    bool     `json:"SASLEnabled" toml:"sasl_enabled"`
	SASLMechanism  string   `json:"SASLMechanism" toml:"sasl_mechanism"`
	SASLUser       string   `json:"SASLUser" toml:"sasl_user"`
	SASLPassword   string   `json:"SASLPassword" toml:"sasl_password"`
}

type rawKafkaRestConfig struct {
	Address string `json:"Address" toml:"address"`
	Topic   string `json:"Topic" toml:"topic"`
}

type rawRedisConfig struct {
	Addr      string `json:"Addr" toml:"addr"`
	Password  string `json:"Password" toml:"password"`
	DB        int    `json:"DB" toml:"db"`
	Key       string `json:"Key" toml:"key"`
	MaxLength int64  `json:"MaxLength" toml:"max_length"`
}

type rawFileConfig struct {
	FilePath   string `json:"FilePath" toml:"file_path"`
	MaxSizeMB  int    `json:"MaxSizeMB" toml:"max_size_mb"`
	MaxBackups int    `json:"MaxBackups" toml:"max_backups"`
	Console    *bool  `json:"Console" toml:"console"`
	Pretty     *bool  `json:"Pretty" toml:"pretty"`
}

type rawSOCKSConfig struct {
	Host string `json:"Host" toml:"host"`
	Port int    `json:"Port" toml:"port"`
}

type rawHostConfig struct {
	Name      string `json:"Name" toml:"name"`
	IPPattern string `json:"IPPattern" toml:"ip_pattern"`
}

type rawCollectorConfig struct {
	Enabled  *bool    `json:"Enabled" toml:"enabled"`
	Interval string   `json:"Interval" toml:"interval"`
	Disks    []string `json:"Disks,omitempty" toml:"disks"`
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseFormat(data, FormatFor(path))
}

// Parse parses configuration from JSON bytes.
func Parse(data []byte) (*Config, error) {
	return ParseFormat(data, FormatJSON)
}

// ParseFormat parses configuration encoded as f and merges it onto the defaults.
func ParseFormat(data []byte, f Format) (*Config, error) {
	var raw rawConfig
	if err := decode(data, f, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	parsed, err := convertRawConfig(&raw, cfg)
	if err != nil {
		return nil, err
	}

	cfg.Merge(parsed)
	return cfg, nil
}

func decode(data []byte, f Format, v interface{}) error {
	if f == FormatTOML {
		return toml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// convertRawConfig converts raw into a Config. Booleans absent from raw take their value
// from base so that Merge does not reset them.
func convertRawConfig(raw *rawConfig, base *Config) (*Config, error) {
	cfg := &Config{
		InstrumentationKey: raw.InstrumentationKey,
		EndpointURI:        raw.EndpointURI,
		SenderType:         strings.ToLower(raw.SenderType),
		KafkaRest:          KafkaRestConfig(raw.KafkaRest),
		Redis:              RedisConfig(raw.Redis),
		SOCKSProxy:         SOCKSConfig(raw.SOCKSProxy),
		Host:               HostConfig(raw.Host),
		File: FileConfig{
			FilePath:   raw.File.FilePath,
			MaxSizeMB:  raw.File.MaxSizeMB,
			MaxBackups: raw.File.MaxBackups,
			Console:    boolOr(raw.File.Console, base.File.Console),
			Pretty:     boolOr(raw.File.Pretty, base.File.Pretty),
		},
	}

	ch, err := convertRawChannel(&raw.Channel)
	if err != nil {
		return nil, err
	}
	cfg.Channel = *ch

	httpCfg, err := convertRawHTTP(&raw.HTTP)
	if err != nil {
		return nil, err
	}
	cfg.HTTP = *httpCfg

	kafka, err := convertRawKafka(&raw.Kafka)
	if err != nil {
		return nil, err
	}
	cfg.Kafka = *kafka

	if len(raw.Collectors) > 0 {
		cfg.Collectors = make(map[string]CollectorConfig, len(raw.Collectors))
		for name, rc := range raw.Collectors {
			rc := rc
			coll, err := convertRawCollector(name, &rc, base.Collectors[name])
			if err != nil {
				return nil, err
			}
			cfg.Collectors[name] = *coll
		}
	}

	return cfg, nil
}

func convertRawChannel(raw *rawChannelConfig) (*ChannelConfig, error) {
	ch := &ChannelConfig{
		SendBatchSize:  raw.SendBatchSize,
		MaxQueueLength: raw.MaxQueueLength,
		Mode:           strings.ToLower(raw.Mode),
	}

	var err error
	if ch.SendInterval, err = parseDuration("Channel.SendInterval", raw.SendInterval); err != nil {
		return nil, err
	}
	if ch.SendTime, err = parseDuration("Channel.SendTime", raw.SendTime); err != nil {
		return nil, err
	}
	return ch, nil
}

func convertRawHTTP(raw *rawHTTPConfig) (*HTTPConfig, error) {
	h := &HTTPConfig{MaxRetries: raw.MaxRetries}

	var err error
	if h.Timeout, err = parseDuration("HTTP.Timeout", raw.Timeout); err != nil {
		return nil, err
	}
	if h.RetryDelay, err = parseDuration("HTTP.RetryDelay", raw.RetryDelay); err != nil {
		return nil, err
	}
	return h, nil
}

func convertRawKafka(raw *rawKafkaConfig) (*KafkaConfig, error) {
	kafka := &KafkaConfig{
		Brokers:       raw.Brokers,
		Topic:         raw.Topic,
		Compression:   raw.Compression,
		RequiredAcks:  raw.RequiredAcks,
		MaxRetries:    raw.MaxRetries,
		FlushMessages: raw.FlushMessages,
		EnableTLS:     raw.EnableTLS,
		TLSCertFile:   raw.TLSCertFile,
		TLSKeyFile:    raw.TLSKeyFile,
		TLSCAFile:     raw.TLSCAFile,
		SASLEnabled:   raw.SASLEnabled,
		SASLMechanism: raw.SASLMechanism,
		SASLUser:      raw.SASLUser,
		SASLPassword:  raw.SASLPassword,
	}

	var err error
	if kafka.RetryBackoff, err = parseDuration("Kafka.RetryBackoff", raw.RetryBackoff); err != nil {
		return nil, err
	}
	if kafka.FlushFrequency, err = parseDuration("Kafka.FlushFrequency", raw.FlushFrequency); err != nil {
		return nil, err
	}
	if kafka.Timeout, err = parseDuration("Kafka.Timeout", raw.Timeout); err != nil {
		return nil, err
	}
	return kafka, nil
}

func convertRawCollector(name string, raw *rawCollectorConfig, base CollectorConfig) (*CollectorConfig, error) {
	enabledDefault := true
	if base.Interval != 0 {
		enabledDefault = base.Enabled
	}
	coll := &CollectorConfig{
		Enabled: boolOr(raw.Enabled, enabledDefault),
		Disks:   raw.Disks,
	}

	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval for collector %s: %w", name, err)
		}
		coll.Interval = d
	}

	return coll, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return d, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// LoadLogging reads logging configuration from the specified file path.
func LoadLogging(path string) (*logger.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return ParseLogging(data, FormatFor(path))
}

// ParseLogging parses logging configuration onto logger.DefaultConfig.
// Keys missing from data keep their default.
func ParseLogging(data []byte, f Format) (*logger.Config, error) {
	lc := logger.DefaultConfig()
	if err := decode(data, f, &lc); err != nil {
		return nil, fmt.Errorf("failed to parse logging config: %w", err)
	}
	if lc.Format != logger.FormatJSON && lc.Format != logger.FormatFixed {
		return nil, fmt.Errorf("unsupported log format %q: must be %q or %q",
			lc.Format, logger.FormatJSON, logger.FormatFixed)
	}
	return &lc, nil
}

// LoadAll loads the agent configuration and, when loggingPath is set, the logging
// configuration. Without a logging file the logging defaults are returned.
func LoadAll(configPath, loggingPath string) (*Config, *logger.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if loggingPath == "" {
		lc := logger.DefaultConfig()
		return cfg, &lc, nil
	}

	lc, err := LoadLogging(loggingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
	}
	return cfg, lc, nil
}

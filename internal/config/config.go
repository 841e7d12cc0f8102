// Package config provides configuration management for the telemetry agent.
package config

import (
	"time"
)

// Sender types.
const (
	SenderHTTP      = "http"
	SenderKafka     = "kafka"
	SenderKafkaRest = "kafkarest"
	SenderRedis     = "redis"
	SenderFile      = "file"
)

// DefaultEndpointURI is the ingestion endpoint used when none is configured.
const DefaultEndpointURI = "https://dc.services.visualstudio.com/v2/track"

// Config is the root configuration structure.
type Config struct {
	InstrumentationKey string                     `json:"InstrumentationKey"`
	EndpointURI        string                     `json:"EndpointURI"`
	SenderType         string                     `json:"SenderType"` // "http", "kafka", "kafkarest", "redis" or "file"
	Channel            ChannelConfig              `json:"Channel"`
	HTTP               HTTPConfig                 `json:"HTTP"`
	Kafka              KafkaConfig                `json:"Kafka"`
	KafkaRest          KafkaRestConfig            `json:"KafkaRest"`
	Redis              RedisConfig                `json:"Redis"`
	File               FileConfig                 `json:"File"`
	SOCKSProxy         SOCKSConfig                `json:"SocksProxy"`
	Host               HostConfig                 `json:"Host"`
	Collectors         map[string]CollectorConfig `json:"Collectors"`
}

// ChannelConfig holds the batching tunables of the telemetry channel.
type ChannelConfig struct {
	SendInterval   time.Duration `json:"SendInterval"`
	SendTime       time.Duration `json:"SendTime"`
	SendBatchSize  int           `json:"SendBatchSize"`
	MaxQueueLength int           `json:"MaxQueueLength"`
	Mode           string        `json:"Mode"` // "async" or "sync"
}

// HTTPConfig contains settings shared by the HTTP based senders.
type HTTPConfig struct {
	Timeout    time.Duration `json:"Timeout"`
	MaxRetries int           `json:"MaxRetries"`
	RetryDelay time.Duration `json:"RetryDelay"`
}

// KafkaConfig contains Kafka connection settings.
type KafkaConfig struct {
	Brokers        []string      `json:"Brokers"`
	Topic          string        `json:"Topic"`
	Compression    string        `json:"Compression"`
	RequiredAcks   int           `json:"RequiredAcks"`
	MaxRetries     int           `json:"MaxRetries"`
	RetryBackoff   time.Duration `json:"RetryBackoff"`
	FlushFrequency time.Duration `json:"FlushFrequency"`
	FlushMessages  int           `json:"FlushMessages"`
	Timeout        time.Duration `json:"Timeout"`
	EnableTLS      bool          `json:"EnableTLS"`
	TLSCertFile    string        `json:"TLSCertFile"`
	TLSKeyFile     string        `json:"TLSKeyFile"`
	TLSCAFile      string        `json:"TLSCAFile"`
	SASLEnabled    bool          `json:"SASLEnabled"`
	SASLMechanism  string        `json:"SASLMechanism"`
	SASLUser       string        `json:"SASLUser"`
	SASLPassword   string        `json:"SASLPassword"`
}

// KafkaRestConfig contains settings for the KafkaRest HTTP proxy sender.
type KafkaRestConfig struct {
	Address string `json:"Address"`
	Topic   string `json:"Topic"`
}

// RedisConfig contains settings for the Redis list sender.
type RedisConfig struct {
	Addr      string `json:"Addr"`
	Password  string `json:"Password"`
	DB        int    `json:"DB"`
	Key       string `json:"Key"`
	MaxLength int64  `json:"MaxLength"` // 0 keeps the list unbounded
}

// FileConfig contains settings for the file sender.
type FileConfig struct {
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Console    bool   `json:"Console"`
	Pretty     bool   `json:"Pretty"`
}

// SOCKSConfig contains SOCKS5 proxy settings.
type SOCKSConfig struct {
	Host string `json:"Host"`
	Port int    `json:"Port"`
}

// Enabled reports whether a proxy is configured.
func (s SOCKSConfig) Enabled() bool {
	return s.Host != "" && s.Port > 0
}

// HostConfig controls the host identity stamped on every envelope.
type HostConfig struct {
	Name      string `json:"Name"`      // overrides os.Hostname
	IPPattern string `json:"IPPattern"` // regex choosing the reported address among local IPv4s
}

// CollectorConfig contains settings for individual collectors.
type CollectorConfig struct {
	Enabled  bool          `json:"Enabled"`
	Interval time.Duration `json:"Interval"`
	Disks    []string      `json:"Disks,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		EndpointURI: DefaultEndpointURI,
		SenderType:  SenderHTTP,
		Channel: ChannelConfig{
			SendInterval:   time.Second,
			SendTime:       3 * time.Second,
			SendBatchSize:  100,
			MaxQueueLength: 500,
			Mode:           "async",
		},
		HTTP: HTTPConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			Topic:          "telemetry",
			Compression:    "snappy",
			RequiredAcks:   1,
			MaxRetries:     3,
			RetryBackoff:   100 * time.Millisecond,
			FlushFrequency: 500 * time.Millisecond,
			FlushMessages:  100,
			Timeout:        10 * time.Second,
		},
		KafkaRest: KafkaRestConfig{
			Address: "localhost:8082",
			Topic:   "telemetry",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  "telemetry",
		},
		File: FileConfig{
			FilePath:   "log/telemetrychannel/telemetry.jsonl",
			MaxSizeMB:  50,
			MaxBackups: 3,
			Console:    false,
			Pretty:     false,
		},
		Collectors: DefaultCollectors(),
	}
}

// DefaultCollectors returns the collectors enabled out of the box.
func DefaultCollectors() map[string]CollectorConfig {
	return map[string]CollectorConfig{
		"cpu":    {Enabled: true, Interval: 10 * time.Second},
		"memory": {Enabled: true, Interval: 10 * time.Second},
		"disk":   {Enabled: true, Interval: 30 * time.Second},
		"uptime": {Enabled: true, Interval: time.Minute},
	}
}

// Merge applies non-zero values from other to this config.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.InstrumentationKey != "" {
		c.InstrumentationKey = other.InstrumentationKey
	}
	if other.EndpointURI != "" {
		c.EndpointURI = other.EndpointURI
	}
	if other.SenderType != "" {
		c.SenderType = other.SenderType
	}

	// Channel
	if other.Channel.SendInterval != 0 {
		c.Channel.SendInterval = other.Channel.SendInterval
	}
	if other.Channel.SendTime != 0 {
		c.Channel.SendTime = other.Channel.SendTime
	}
	if other.Channel.SendBatchSize != 0 {
		c.Channel.SendBatchSize = other.Channel.SendBatchSize
	}
	if other.Channel.MaxQueueLength != 0 {
		c.Channel.MaxQueueLength = other.Channel.MaxQueueLength
	}
	if other.Channel.Mode != "" {
		c.Channel.Mode = other.Channel.Mode
	}

	// HTTP
	if other.HTTP.Timeout != 0 {
		c.HTTP.Timeout = other.HTTP.Timeout
	}
	if other.HTTP.MaxRetries != 0 {
		c.HTTP.MaxRetries = other.HTTP.MaxRetries
	}
	if other.HTTP.RetryDelay != 0 {
		c.HTTP.RetryDelay = other.HTTP.RetryDelay
	}

	// Kafka
	if len(other.Kafka.Brokers) > 0 {
		c.Kafka.Brokers = other.Kafka.Brokers
	}
	if other.Kafka.Topic != "" {
		c.Kafka.Topic = other.Kafka.Topic
	}
	if other.Kafka.Compression != "" {
		c.Kafka.Compression = other.Kafka.Compression
	}
	if other.Kafka.RequiredAcks != 0 {
		c.Kafka.RequiredAcks = other.Kafka.RequiredAcks
	}
	if other.Kafka.MaxRetries != 0 {
		c.Kafka.MaxRetries = other.Kafka.MaxRetries
	}
	if other.Kafka.RetryBackoff != 0 {
		c.Kafka.RetryBackoff = other.Kafka.RetryBackoff
	}
	if other.Kafka.FlushFrequency != 0 {
		c.Kafka.FlushFrequency = other.Kafka.FlushFrequency
	}
	if other.Kafka.FlushMessages != 0 {
		c.Kafka.FlushMessages = other.Kafka.FlushMessages
	}
	if other.Kafka.Timeout != 0 {
		c.Kafka.Timeout = other.Kafka.Timeout
	}
	c.Kafka.EnableTLS = other.Kafka.EnableTLS
	if other.Kafka.TLSCertFile != "" {
		c.Kafka.TLSCertFile = other.Kafka.TLSCertFile
	}
	if other.Kafka.TLSKeyFile != "" {
		c.Kafka.TLSKeyFile = other.Kafka.TLSKeyFile
	}
	if other.Kafka.TLSCAFile != "" {
		c.Kafka.TLSCAFile = other.Kafka.TLSCAFile
	}
	c.Kafka.SASLEnabled = other.Kafka.SASLEnabled
	if other.Kafka.SASLMechanism != "" {
		c.Kafka.SASLMechanism = other.Kafka.SASLMechanism
	}
	if other.Kafka.SASLUser != "" {
		c.Kafka.SASLUser = other.Kafka.SASLUser
	}
	if other.Kafka.SASLPassword != "" {
		c.Kafka.SASLPassword = other.Kafka.SASLPassword
	}

	// KafkaRest
	if other.KafkaRest.Address != "" {
		c.KafkaRest.Address = other.KafkaRest.Address
	}
	if other.KafkaRest.Topic != "" {
		c.KafkaRest.Topic = other.KafkaRest.Topic
	}

	// Redis
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}
	if other.Redis.Key != "" {
		c.Redis.Key = other.Redis.Key
	}
	if other.Redis.MaxLength != 0 {
		c.Redis.MaxLength = other.Redis.MaxLength
	}

	// File
	if other.File.FilePath != "" {
		c.File.FilePath = other.File.FilePath
	}
	if other.File.MaxSizeMB != 0 {
		c.File.MaxSizeMB = other.File.MaxSizeMB
	}
	if other.File.MaxBackups != 0 {
		c.File.MaxBackups = other.File.MaxBackups
	}
	c.File.Console = other.File.Console
	c.File.Pretty = other.File.Pretty

	// SOCKS proxy
	if other.SOCKSProxy.Host != "" {
		c.SOCKSProxy.Host = other.SOCKSProxy.Host
	}
	if other.SOCKSProxy.Port != 0 {
		c.SOCKSProxy.Port = other.SOCKSProxy.Port
	}

	// Host
	if other.Host.Name != "" {
		c.Host.Name = other.Host.Name
	}
	if other.Host.IPPattern != "" {
		c.Host.IPPattern = other.Host.IPPattern
	}

	c.mergeCollectors(other.Collectors)
}

func (c *Config) mergeCollectors(other map[string]CollectorConfig) {
	if c.Collectors == nil {
		c.Collectors = make(map[string]CollectorConfig)
	}
	for name, cc := range other {
		existing, ok := c.Collectors[name]
		if !ok {
			c.Collectors[name] = cc
			continue
		}
		existing.Enabled = cc.Enabled
		if cc.Interval != 0 {
			existing.Interval = cc.Interval
		}
		if len(cc.Disks) > 0 {
			existing.Disks = cc.Disks
		}
		c.Collectors[name] = existing
	}
}

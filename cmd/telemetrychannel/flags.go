package main

import (
	"os"
	"time"

	pflag "github.com/spf13/pflag"

	"telemetrychannel/internal/config"
)

const (
	defaultConfigPath  = "conf/telemetrychannel/telemetrychannel.json"
	defaultLoggingPath = "conf/telemetrychannel/logging.json"
	startupErrorLogDir = "log/telemetrychannel"
)

// cliFlags holds command line values that override file configuration.
type cliFlags struct {
	configPath   string
	loggingPath  string
	iKey         string
	endpoint     string
	senderType   string
	sendInterval time.Duration
	sendTime     time.Duration
	batchSize    int
	mode         string
}

func (f *cliFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", defaultConfigPath, "Path to main configuration file (.json or .toml)")
	fs.StringVar(&f.loggingPath, "logging", defaultLoggingPath, "Path to logging configuration file (.json or .toml)")
	fs.StringVar(&f.iKey, "ikey", "", "Instrumentation key stamped on every item")
	fs.StringVar(&f.endpoint, "endpoint", "", "Ingestion endpoint URI for the http sender")
	fs.StringVar(&f.senderType, "sender", "", "Transport: http, kafka, kafkarest, redis or file")
	fs.DurationVar(&f.sendInterval, "send-interval", 0, "Poll interval of the send worker (floor 100ms)")
	fs.DurationVar(&f.sendTime, "send-time", 0, "Idle time after which the send worker exits")
	fs.IntVar(&f.batchSize, "batch-size", 0, "Maximum items per transmitted batch")
	fs.StringVar(&f.mode, "mode", "", "Channel mode: async or sync")
}

// override copies the flags the user set explicitly onto cfg.
func (f *cliFlags) override(cfg *config.Config, changed map[string]bool) {
	if changed["ikey"] {
		cfg.InstrumentationKey = f.iKey
	}
	if changed["endpoint"] {
		cfg.EndpointURI = f.endpoint
	}
	if changed["sender"] {
		cfg.SenderType = f.senderType
	}
	if changed["send-interval"] {
		cfg.Channel.SendInterval = f.sendInterval
	}
	if changed["send-time"] {
		cfg.Channel.SendTime = f.sendTime
	}
	if changed["batch-size"] {
		cfg.Channel.SendBatchSize = f.batchSize
	}
	if changed["mode"] {
		cfg.Channel.Mode = f.mode
	}
}

// resolvePath drops a default path that does not exist so built-in defaults apply.
// Paths set explicitly are kept and must load.
func resolvePath(path string, explicit bool) string {
	if explicit || path == "" {
		return path
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Package main is the entry point for the telemetrychannel agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/logger"
	"telemetrychannel/internal/service"
)

var version = ""

func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, service.ErrForcedExit) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:          "telemetrychannel",
		Short:        "Batch host telemetry and ship it to an ingestion endpoint",
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			return run(&flags, changed)
		},
	}
	flags.register(root.Flags())
	return root
}

func run(flags *cliFlags, changed map[string]bool) error {
	svc := service.NewService(nil)
	if svc.IsService() {
		logger.SetServiceMode(true)
	}

	configPath := resolvePath(flags.configPath, changed["config"])
	loggingPath := resolvePath(flags.loggingPath, changed["logging"])

	cfg, lc, err := loadConfig(configPath, loggingPath)
	if err != nil {
		service.WriteStartupErrorFile(startupErrorLogDir, err)
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}
	flags.override(cfg, changed)

	if err := logger.Init(*lc); err != nil {
		service.WriteStartupErrorFile(startupErrorLogDir, err)
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return err
	}

	log := logger.WithComponent("main")
	log.Info().
		Str("version", getVersion()).
		Str("config", configPath).
		Str("logging", loggingPath).
		Str("sender_type", cfg.SenderType).
		Msg("Starting telemetrychannel")

	runner := service.NewRunner(cfg, lc, service.Options{
		ConfigPath:  configPath,
		LoggingPath: loggingPath,
		Version:     getVersion(),
		Override:    func(c *config.Config) { flags.override(c, changed) },
	})

	svc = service.NewService(runner.Run)
	if err := svc.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("Service exited with error")
		return err
	}

	log.Info().Msg("telemetrychannel stopped")
	return nil
}

func loadConfig(configPath, loggingPath string) (*config.Config, *logger.Config, error) {
	if configPath != "" {
		return config.LoadAll(configPath, loggingPath)
	}

	cfg := config.DefaultConfig()
	if loggingPath == "" {
		lc := logger.DefaultConfig()
		return cfg, &lc, nil
	}
	lc, err := config.LoadLogging(loggingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
	}
	return cfg, lc, nil
}

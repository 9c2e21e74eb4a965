// Command meetbridge serves the meeting page backend: readiness polling of the
// conferencing backend, websocket page sessions and session analytics.
package main

import (
	"fmt"
	"os"

	"github.com/cwrk-planet/meet-bridge/config"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides CONFIG_PATH when set
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "meetbridge",
	Short: "Meeting page backend for the conferencing service",
	Long: `meetbridge waits for the conferencing backend to come up, drives the
meeting page over a websocket and records session analytics.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, waitReadyCmd, migrateCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadConfig()
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Env:              logger.ParseEnv(cfg.Logging.Env),
		Service:          cfg.Logging.Service,
		Version:          cfg.Logging.Version,
		Backend:          logger.Backend(cfg.Logging.Backend),
		Level:            logger.ParseLevel(cfg.Logging.Level),
		AddSource:        cfg.Logging.AddSource,
		Debug:            cfg.Logging.Debug,
		SampleInitial:    cfg.Logging.SampleInitial,
		SampleThereafter: cfg.Logging.SampleThereafter,
	})
}

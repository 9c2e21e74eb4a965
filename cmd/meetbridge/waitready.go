package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/meet-bridge/internal/readiness"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/spf13/cobra"
)

var waitReadyCmd = &cobra.Command{
	Use:   "wait-ready",
	Short: "Poll the conferencing backend until it reports already_running",
	Long: `Poll POST /start-jitsi on the configured backend until it reports
already_running, the retry budget is exhausted or the deadline passes.
Exits non-zero on failure; useful as an init container or deploy gate.`,
	RunE: runWaitReady,
}

func runWaitReady(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogger(cfg)
	log := logger.Component("wait-ready")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker, closeChecker, err := newChecker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChecker()

	p := readiness.New(checker, readinessConfig(cfg),
		readiness.WithLogger(log),
		readiness.WithProgress(func(pr readiness.Progress) {
			log.Info("waiting for backend",
				slog.Int("attempt", pr.Attempt),
				slog.Int("max_attempts", pr.MaxAttempts),
				slog.Duration("elapsed", pr.Elapsed),
				slog.String("status", string(pr.LastStatus)))
		}),
	)
	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	if err := p.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "backend ready")
	return nil
}

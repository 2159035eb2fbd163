package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"labelpress/internal/config"
	"labelpress/internal/logging"
	"labelpress/internal/render"
	"labelpress/internal/sender"
	"labelpress/internal/transport"
	"labelpress/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox directory and ship documents to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "labelpress-watch")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			src := watch.NewPoller(cfg.Paths.WatchDir, cfg.Sender.Extensions, interval, logger)
			if err := src.Start(runCtx); err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			defer src.Stop()

			push := transport.NewSender(cfg.Transport.Connect, dialTimeout(cfg))
			defer push.Close()

			s := sender.New(cfg, push, pageCounter(cfg), logger)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (sending to %s)\n", cfg.Paths.WatchDir, cfg.Transport.Connect)
			if err := s.Run(runCtx, src); err != nil && runCtx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Directory poll interval")
	return cmd
}

func dialTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Transport.DialTimeout) * time.Second
}

// pageCounter returns nil when page splitting is disabled.
func pageCounter(cfg *config.Config) sender.PageCounter {
	if !cfg.Sender.SplitPages {
		return nil
	}
	return render.NewPoppler(cfg.Render.Rasterizer, cfg.Render.InfoTool, cfg.Label.DPI)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labelpress/internal/config"
	"labelpress/internal/logging"
	"labelpress/internal/sender"
	"labelpress/internal/transport"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send <file>",
		Short: "Send a single document to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			push := transport.NewSender(cfg.Transport.Connect, dialTimeout(cfg))
			defer push.Close()

			s := sender.New(cfg, push, pageCounter(cfg), logger)
			outcome, err := s.Submit(cmd.Context(), path)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			switch outcome {
			case sender.OutcomeDelivered:
				fmt.Fprintf(stdout, "Delivered %s\n", path)
			case sender.OutcomeNoReceiver:
				fmt.Fprintf(stdout, "No receiver at %s; file kept in place\n", cfg.Transport.Connect)
			case sender.OutcomeLockedGiveUp:
				fmt.Fprintf(stdout, "File stayed locked after %d attempts; giving up\n", cfg.Sender.MaxAttempts)
			default:
				fmt.Fprintf(stdout, "Skipped %s\n", path)
			}
			return nil
		},
	}
}

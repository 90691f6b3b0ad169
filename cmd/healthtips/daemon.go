package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var interval time.Duration
	var once bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Re-import the configured feeds on an interval",
		Long: `Continuously import every feed listed under content.feeds into the
dataset. Titles already present are skipped, so repeated cycles only append
new items. Running web servers pick up new tips on restart.
Handles SIGINT/SIGTERM for graceful shutdown (finishes the current cycle).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !once && interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			formatter := newFormatter(cmd)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			logging.Info().Dur("interval", interval).Int("feeds", len(cfg.Content.Feeds)).Msg("daemon starting")

			for cycle := 1; ; cycle++ {
				start := time.Now()

				added, err := importConfiguredFeeds(ctx, formatter)
				if err != nil {
					return err
				}
				logging.Info().
					Int("cycle", cycle).
					Int("added", added).
					Dur("took", time.Since(start).Round(time.Millisecond)).
					Msg("cycle completed")

				if once {
					return nil
				}

				// Wait for the next tick or a shutdown signal.
				timer := time.NewTimer(interval)
				select {
				case <-sig:
					timer.Stop()
					logging.Info().Msg("received shutdown signal, exiting")
					return nil
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Hour, "duration between import cycles (e.g. 30m, 6h)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

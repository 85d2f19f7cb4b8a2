package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/veilmatch/internal/backfill"
	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/metrics"
	"github.com/MikeSquared-Agency/veilmatch/internal/service"
)

func backfillCmd() *cobra.Command {
	var bcfg backfill.Config
	cmd := &cobra.Command{
		Use:   "backfill [files...]",
		Short: "Replay archived trust signals from JSONL files",
		RunE: func(cmd *cobra.Command, args []string) error {
			bcfg.Files = args
			if bcfg.Dir == "" && len(bcfg.Files) == 0 {
				return fmt.Errorf("give --dir or at least one file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.DatabaseURL == "" && !bcfg.DryRun {
				return fmt.Errorf("DATABASE_URL is required unless --dry-run is set")
			}
			db, _, err := openBackend(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			svc, err := service.New(db, eventlog.NewRecorder(db, nil, slog.Default()), nil,
				metrics.New(prometheus.NewRegistry()), service.Options{
					InitialTrust:  cfg.InitialTrust,
					AvatarBaseURL: cfg.AvatarBaseURL,
					GridSize:      cfg.GridSize,
				}, slog.Default())
			if err != nil {
				return err
			}

			sum, err := backfill.NewRunner(bcfg, svc, slog.Default()).Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "files %d, applied %d, skipped %d, failed %d\n",
				sum.Files, sum.Applied, sum.Skipped, sum.Failed)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bcfg.Dir, "dir", "", "directory of *.jsonl signal files")
	cmd.Flags().StringVar(&bcfg.StatePath, "state", backfill.DefaultStatePath, "resume state file")
	cmd.Flags().BoolVar(&bcfg.DryRun, "dry-run", false, "parse and count without applying")
	return cmd
}

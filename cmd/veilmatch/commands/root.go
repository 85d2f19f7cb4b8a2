package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/veilmatch/internal/config"
)

var cfg config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "veilmatch",
		Short:         "Progressive identity disclosure service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(serveCmd(), migrateCmd(), backfillCmd(), scoreCmd(), gridCmd(), milestonesCmd())
	return root
}

func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		slog.Error("command failed", "error", err)
	}
	return err
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

package main

import (
	"github.com/sifan077/TrackPoint/config"
	"github.com/sifan077/TrackPoint/internal/infra/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries what every subcommand needs once the root pre-run has loaded it.
type cli struct {
	cfg      *config.Config
	log      *zap.Logger
	logLevel string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "Operate a TrackPoint deployment",
		Long:          `trackctl runs migrations, checks connectivity, prints dashboard counts and follows click notifications using the same configuration as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg

			level := c.logLevel
			if level == "" {
				level = cfg.Server.LogLevel
			}
			log, err := logger.Init(logger.Config{Development: true, Level: level, Encoding: "console"})
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(c),
		newPingCmd(c),
		newStatsCmd(c),
		newTailCmd(c),
		newKeygenCmd(),
	)
	return root
}

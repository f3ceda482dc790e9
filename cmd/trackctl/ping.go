package main

import (
	"fmt"

	"github.com/sifan077/TrackPoint/internal/app/repository"
	infraNATS "github.com/sifan077/TrackPoint/internal/infra/nats"
	infraRedis "github.com/sifan077/TrackPoint/internal/infra/redis"
	"github.com/spf13/cobra"
)

func newPingCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the database and any configured Redis and NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, release, err := repository.Open(ctx, c.cfg.Database, c.log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer release()

			health, err := store.Health(ctx)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			fmt.Fprintf(out, "database  ok  %s %s (server time %s)\n", health.Database, health.Version, health.ServerTime)

			if infraRedis.Enabled(c.cfg.Redis) {
				client, err := infraRedis.NewClient(ctx, c.cfg.Redis)
				if err != nil {
					return err
				}
				_ = client.Close()
				fmt.Fprintf(out, "redis     ok  %s\n", infraRedis.Addr(c.cfg.Redis))
			} else {
				fmt.Fprintln(out, "redis     --  not configured")
			}

			if infraNATS.Enabled(c.cfg.NATS) {
				conn, js, err := infraNATS.Connect(c.cfg.NATS)
				if err != nil {
					return err
				}
				defer conn.Close()
				info, err := js.StreamInfo(infraNATS.ClickStream)
				if err != nil {
					fmt.Fprintf(out, "nats      ok  %s (stream %s missing)\n", conn.ConnectedUrlRedacted(), infraNATS.ClickStream)
				} else {
					fmt.Fprintf(out, "nats      ok  %s (stream %s, %d messages)\n", conn.ConnectedUrlRedacted(), infraNATS.ClickStream, info.State.Msgs)
				}
			} else {
				fmt.Fprintln(out, "nats      --  not configured")
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/TrackPoint/internal/app/model"
	"github.com/sifan077/TrackPoint/internal/app/service"
	infraNATS "github.com/sifan077/TrackPoint/internal/infra/nats"
	"github.com/spf13/cobra"
)

func newTailCmd(c *cli) *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow click notifications from NATS JetStream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !infraNATS.Enabled(c.cfg.NATS) {
				return errors.New("NATS is not configured; set NATS_HOST")
			}
			conn, js, err := infraNATS.Connect(c.cfg.NATS)
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			consumer := service.NewClickConsumer(js, c.log, durable, func(_ context.Context, e model.ClickRecorded) error {
				_, err := fmt.Fprintln(out, formatClickRecorded(e))
				return err
			})
			return consumer.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&durable, "durable", "trackctl-tail", "durable consumer name")
	return cmd
}

func formatClickRecorded(e model.ClickRecorded) string {
	place := e.City
	if e.Country != "" {
		if place != "" {
			place += ", "
		}
		place += e.Country
	}
	if place == "" {
		place = "-"
	}
	return fmt.Sprintf("%s  #%d  consent=%t gps=%t device=%s  %s",
		e.ClickedAt.Local().Format("15:04:05"), e.ID, e.Consent, e.HasGPS, orDash(e.Device), place)
}

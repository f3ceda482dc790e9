package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sifan077/TrackPoint/internal/app/model"
	"github.com/sifan077/TrackPoint/internal/app/privacy"
	"github.com/sifan077/TrackPoint/internal/app/repository"
	"github.com/sifan077/TrackPoint/internal/app/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type statsOptions struct {
	recent    int
	location  string
	startDate string
	endDate   string
}

func newStatsCmd(c *cli) *cobra.Command {
	opts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard counts and optionally the latest clicks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, release, err := repository.Open(ctx, c.cfg.Database, c.log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer release()

			// Without a valid key stored addresses stay hidden.
			cipher, err := privacy.NewCipher(c.cfg.Security.EncryptionKey)
			if err != nil {
				c.log.Warn("ENCRYPTION_KEY unusable; addresses will not be shown", zap.Error(err))
			}

			analytics := service.NewAnalyticsService(repository.NewClickEventRepository(store), cipher, time.Local, c.log)

			stats, err := analytics.DashboardStats(ctx)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)

			if opts.recent <= 0 {
				return nil
			}
			page, err := analytics.ListClicks(ctx, service.ClickQuery{
				Page:      1,
				Limit:     opts.recent,
				StartDate: opts.startDate,
				EndDate:   opts.endDate,
				Location:  opts.location,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			printClicks(cmd.OutOrStdout(), page)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.recent, "recent", "n", 0, "also list the N most recent clicks")
	cmd.Flags().StringVar(&opts.location, "location", "", "filter listed clicks: gps or no-gps")
	cmd.Flags().StringVar(&opts.startDate, "start-date", "", "first day to list (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.endDate, "end-date", "", "last day to list (YYYY-MM-DD)")
	return cmd
}

func printStats(w io.Writer, s *model.DashboardStats) {
	fmt.Fprintf(w, "Total clicks:  %d\n", s.TotalClicks)
	fmt.Fprintf(w, "With GPS:      %d\n", s.GPSClicks)
	fmt.Fprintf(w, "Unique users:  %d\n", s.UniqueUsers)
	fmt.Fprintf(w, "Today:         %d\n", s.TodayClicks)
}

func printClicks(w io.Writer, page *service.ClickPage) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLICKED AT\tIP\tDEVICE\tLOCATION\tGPS\tELEMENT")
	for _, e := range page.Clicks {
		gps := "-"
		if e.HasGPS() {
			gps = fmt.Sprintf("%.5f,%.5f", *e.Latitude, *e.Longitude)
		}
		ip := e.IPMasked
		if ip == "" {
			ip = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.ClickedAt.Local().Format("2006-01-02 15:04:05"),
			ip,
			orDash(e.DeviceType),
			orDash(derefOr(e.City)),
			gps,
			orDash(derefOr(e.ElementID)),
		)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d of %d clicks\n", len(page.Clicks), page.Total)
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

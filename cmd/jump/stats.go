package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	rldomain "jump/middleware/ratelimit/domain"
	rlinfra "jump/middleware/ratelimit/infra"
)

func newStatsCmd(v *viper.Viper) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show rate limit decision counters stored in Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(v)
			if err != nil {
				return err
			}
			if minutes < 1 {
				minutes = 1
			}

			rdb := redis.NewClient(&redis.Options{
				Addr:        cfg.Redis.Addr,
				Password:    cfg.Redis.Password,
				DB:          cfg.Redis.DB,
				DialTimeout: cfg.Redis.DialTimeout,
			})
			defer func() { _ = rdb.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			stats := rlinfra.NewRedisStatsStore(rdb, rlinfra.WithStatsPrefix(cfg.Stats.Prefix))
			snap, err := stats.Snapshot(ctx, time.Now(), minutes)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", 10, "how many recent minutes to show")
	return cmd
}

func renderStats(w io.Writer, snap rlinfra.Snapshot) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Decisions by class")
	t.AppendHeader(table.Row{"Class", "Allowed", "Denied", "Denied %"})
	for _, c := range rldomain.Classes {
		cnt := snap.ByClass[c]
		t.AppendRow(table.Row{string(c), cnt.Allowed, cnt.Denied, deniedPct(cnt)})
	}
	t.AppendFooter(table.Row{"Total", snap.Total.Allowed, snap.Total.Denied, deniedPct(snap.Total)})
	fmt.Fprintln(w, t.Render())

	if len(snap.Recent) == 0 {
		return
	}
	m := table.NewWriter()
	m.SetStyle(table.StyleRounded)
	m.SetTitle("Recent minutes (UTC)")
	m.AppendHeader(table.Row{"Minute", "Allowed", "Denied"})
	for _, b := range snap.Recent {
		m.AppendRow(table.Row{b.Minute.Format("2006-01-02 15:04"), b.Allowed, b.Denied})
	}
	fmt.Fprintln(w, m.Render())
}

func deniedPct(c rlinfra.Counters) string {
	total := c.Allowed + c.Denied
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(c.Denied)*100/float64(total))
}

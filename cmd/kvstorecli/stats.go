package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func statsCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Print occupancy and GC counters",
		Exec: func(o *IO, _ []string) int {
			return execStats(o, store)
		},
	}
}

func execStats(o *IO, store *kvstore.Store) int {
	stats, status := store.Stats()
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	o.Printf("live_keys:    %d / %d\n", stats.LiveKeys, stats.MaxKeyCount)
	o.Printf("bytes_used:   %d\n", stats.BytesUsed)
	o.Printf("bytes_free:   %d\n", stats.BytesFree)
	o.Printf("gc_runs:      %d\n", stats.GCRuns)

	return 0
}

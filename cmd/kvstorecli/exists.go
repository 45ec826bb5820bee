package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func existsCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("exists", flag.ContinueOnError),
		Usage: "exists <key>",
		Short: "Report whether key is present",
		Exec: func(o *IO, args []string) int {
			return execExists(o, store, args)
		},
	}
}

func execExists(o *IO, store *kvstore.Store, args []string) int {
	if len(args) < 1 {
		o.Errorln("error: exists requires <key>")

		return 1
	}

	key, err := encodeKey(args[0])
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	present, status := store.Exists(key)
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	if present {
		o.Println("true")
	} else {
		o.Println("false")
	}

	return 0
}

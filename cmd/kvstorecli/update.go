package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func updateCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("update", flag.ContinueOnError),
		Usage: "update <key> <value>",
		Short: "Replace the value stored under an existing key",
		Exec: func(o *IO, args []string) int {
			return execUpdate(o, store, args)
		},
	}
}

func execUpdate(o *IO, store *kvstore.Store, args []string) int {
	if len(args) < 2 {
		o.Errorln("error: update requires <key> and <value>")

		return 1
	}

	key, err := encodeKey(args[0])
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	status := store.Update(key, []byte(args[1]))
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	o.Println("OK")

	return 0
}

package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func deleteCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage: "delete <key>",
		Short: "Remove key from the store",
		Exec: func(o *IO, args []string) int {
			return execDelete(o, store, args)
		},
	}
}

func execDelete(o *IO, store *kvstore.Store, args []string) int {
	if len(args) < 1 {
		o.Errorln("error: delete requires <key>")

		return 1
	}

	key, err := encodeKey(args[0])
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	status := store.Delete(key)
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	o.Println("OK")

	return 0
}

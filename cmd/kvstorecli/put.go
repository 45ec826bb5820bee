package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func putCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("put", flag.ContinueOnError),
		Usage: "put <key> <value>",
		Short: "Insert a new key, failing if it already exists",
		Exec: func(o *IO, args []string) int {
			return execPut(o, store, args)
		},
	}
}

func execPut(o *IO, store *kvstore.Store, args []string) int {
	if len(args) < 2 {
		o.Errorln("error: put requires <key> and <value>")

		return 1
	}

	key, err := encodeKey(args[0])
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	status := store.Put(key, []byte(args[1]))
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	o.Println("OK")

	return 0
}

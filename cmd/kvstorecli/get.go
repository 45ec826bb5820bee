package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func getCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <key>",
		Short: "Print the value stored under key",
		Exec: func(o *IO, args []string) int {
			return execGet(o, store, args)
		},
	}
}

func execGet(o *IO, store *kvstore.Store, args []string) int {
	if len(args) < 1 {
		o.Errorln("error: get requires <key>")

		return 1
	}

	key, err := encodeKey(args[0])
	if err != nil {
		o.Errorln("error:", err)

		return 1
	}

	// Probe for the required size first (Get reports it via
	// StatusBufferTooSmall when dst is too small), then fetch for real.
	size, status := store.Get(key, nil)
	if status == kvstore.StatusKeyNotFound {
		o.Errorln("error:", status)

		return 1
	}

	if status != kvstore.StatusBufferTooSmall && status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	dst := make([]byte, size)

	n, status := store.Get(key, dst)
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	o.Println(string(dst[:n]))

	return 0
}

package main

import (
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

func verifyCmd(store *kvstore.Store) *Command {
	return &Command{
		Flags: flag.NewFlagSet("verify", flag.ContinueOnError),
		Usage: "verify",
		Short: "Re-check on-disk integrity without mutating anything",
		Exec: func(o *IO, _ []string) int {
			return execVerify(o, store)
		},
	}
}

func execVerify(o *IO, store *kvstore.Store) int {
	status := store.Verify()
	if status != kvstore.StatusSuccess {
		o.Errorln("error:", status)

		return 1
	}

	o.Println("OK")

	return 0
}

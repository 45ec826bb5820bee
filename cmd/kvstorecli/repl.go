package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/flashkv/flashkv/internal/logsink"
	"github.com/flashkv/flashkv/pkg/kvstore"
)

func replCmd(store *kvstore.Store, sink *logsink.Sink) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Start an interactive session",
		Exec: func(o *IO, _ []string) int {
			return (&repl{store: store, sink: sink, io: o}).run()
		},
	}
}

// repl is the interactive command loop, grounded on the teacher's cmd/sloty
// REPL (main.go): liner for readline-style editing/history, a completer
// over the command set, same exit/help conventions.
type repl struct {
	store *kvstore.Store
	sink  *logsink.Sink
	io    *IO
	liner *liner.State
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".kvstorecli_history")
}

func (r *repl) run() int {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(replHistoryFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	r.io.Println("kvstorecli - interactive session")
	r.io.Println("Type 'help' for available commands.")
	r.io.Println()

	for {
		line, err := r.liner.Prompt("kvstore> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				r.io.Println("\nBye!")

				break
			}

			r.io.Errorln("error: reading input:", err)

			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if r.dispatch(cmd, args) {
			break
		}
	}

	r.saveHistory()

	return 0
}

// dispatch runs one REPL command, returning true if the loop should stop.
func (r *repl) dispatch(cmd string, args []string) bool {
	switch cmd {
	case "exit", "quit", "q":
		r.io.Println("Bye!")

		return true

	case "help", "?":
		r.printHelp()

	case "put":
		execPut(r.io, r.store, args)

	case "get":
		execGet(r.io, r.store, args)

	case "del", "delete":
		execDelete(r.io, r.store, args)

	case "exists":
		execExists(r.io, r.store, args)

	case "update":
		execUpdate(r.io, r.store, args)

	case "stats":
		execStats(r.io, r.store)

	case "verify":
		execVerify(r.io, r.store)

	case "clear", "cls":
		fmt.Print("\033[H\033[2J")

	default:
		r.io.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return false
}

func (r *repl) saveHistory() {
	path := replHistoryFile()
	if path == "" {
		return
	}

	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = r.liner.WriteHistory(f)
}

func (r *repl) completer(line string) []string {
	commands := []string{
		"put", "get", "del", "delete", "exists", "update",
		"stats", "verify", "clear", "cls", "help", "exit", "quit", "q",
	}

	var out []string

	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}

	return out
}

func (r *repl) printHelp() {
	r.io.Println("Commands:")
	r.io.Println("  put <key> <value>     Insert a new key")
	r.io.Println("  get <key>             Print the value for key")
	r.io.Println("  del <key>             Remove key")
	r.io.Println("  exists <key>          Report whether key is present")
	r.io.Println("  update <key> <value>  Replace an existing key's value")
	r.io.Println("  stats                 Print occupancy and GC counters")
	r.io.Println("  verify                Re-check on-disk integrity")
	r.io.Println("  clear                 Clear the screen")
	r.io.Println("  help                  Show this help")
	r.io.Println("  exit / quit / q       Exit")
}

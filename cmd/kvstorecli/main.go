// Command kvstorecli drives a flashkv store from the shell: put, get,
// delete, exists, update, stats, verify and an interactive repl. Grounded on
// the teacher's cmd/tk/main.go + internal/cli package (run.go/command.go),
// trimmed to this store's synchronous, single-threaded operation model — no
// signal handling or goroutine-guarded shutdown is needed since every
// kvstore call already runs to completion before returning.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/flashkv/flashkv/internal/kvconfig"
	"github.com/flashkv/flashkv/internal/logsink"
	"github.com/flashkv/flashkv/pkg/kvstore"

	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	globalFlags := flag.NewFlagSet("kvstorecli", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagDataDir := globalFlags.String("data-dir", "", "Override data directory")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagUserSize := globalFlags.Uint64("user-size", 0, "User data area size in bytes (new store only)")
	flagLogPath := globalFlags.String("log-path", "", "Override advisory log file path")
	flagCrashAfter := globalFlags.Int("crash-after", 0, "Exit the process before the n-th device word write (crash injection for testing)")

	err := globalFlags.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	override := kvconfig.OverrideSet{
		DataDir:      globalFlags.Changed("data-dir"),
		UserDataSize: globalFlags.Changed("user-size"),
		LogPath:      globalFlags.Changed("log-path"),
	}

	cfg, err := kvconfig.Load(*flagConfig, kvconfig.Config{
		DataDir:      *flagDataDir,
		UserDataSize: *flagUserSize,
		LogPath:      *flagLogPath,
	}, override)
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, allCommands(nil, nil))

		return 0
	}

	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, allCommands(nil, nil))

		return 1
	}

	sink := logsink.New(cfg.LogPath)

	store := kvstore.New()

	status := store.Init(cfg.DataDir, kvstore.Options{
		UserDataSize: cfg.UserDataSize,
		Log:          sink,
	})
	if status != kvstore.StatusSuccess {
		fprintln(errOut, "error: opening store:", status)

		return 1
	}

	defer store.Deinit()

	if *flagCrashAfter > 0 {
		store.SetCrashCountdown(*flagCrashAfter)
	}

	commands := allCommands(store, sink)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	return cmd.Run(cmdIO, commandAndArgs[1:])
}

// allCommands returns all subcommands in display order. store and sink may
// be nil when only used to render help/usage text.
func allCommands(store *kvstore.Store, sink *logsink.Sink) []*Command {
	return []*Command{
		putCmd(store),
		getCmd(store),
		deleteCmd(store),
		existsCmd(store),
		updateCmd(store),
		statsCmd(store),
		verifyCmd(store),
		replCmd(store, sink),
	}
}

func fprintln(w *os.File, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help             Show help
  --data-dir <dir>       Override data directory
  -c, --config <file>    Use specified config file
  --user-size <bytes>    User data area size (new store only)
  --log-path <file>      Override advisory log file path
  --crash-after <n>      Exit before the n-th device word write`

func printGlobalOptions(w *os.File) {
	fprintln(w, "Usage: kvstorecli [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'kvstorecli --help' for a list of commands.")
}

func printUsage(w *os.File, commands []*Command) {
	fprintln(w, "kvstorecli - drive a flashkv store from the shell")
	fprintln(w)
	fprintln(w, "Usage: kvstorecli [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}

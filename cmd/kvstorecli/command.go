package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines one kvstorecli subcommand, grounded on the teacher's
// internal/cli.Command (command.go): a pflag.FlagSet plus an Exec closure,
// with command identity taken from the first word of Usage.
type Command struct {
	Flags *flag.FlagSet
	Usage string
	Short string
	Exec  func(o *IO, args []string) int
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine returns the one-line summary shown in the top-level usage.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// Run parses args against the command's flag set and, unless the user
// asked for --help, hands the remainder to Exec. Returns the process
// exit code.
func (c *Command) Run(o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			o.Println("Usage: kvstorecli", c.Usage)
			o.Println()
			o.Println(c.Short)

			if c.Flags.HasFlags() {
				o.Println()
				o.Println("Flags:")

				var buf strings.Builder

				c.Flags.SetOutput(&buf)
				c.Flags.PrintDefaults()
				o.Printf("%s", buf.String())
			}

			return 0
		}

		o.Errorln("error:", err)

		return 1
	}

	return c.Exec(o, c.Flags.Args())
}

// IO bundles the command's output streams, grounded on the teacher's
// internal/cli.IO (io.go), trimmed to this CLI's needs.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

func (o *IO) Errorln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

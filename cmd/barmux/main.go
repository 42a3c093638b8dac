package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := buildRoot(stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stdio are the streams a session talks on: the host's click events come in
// on in, the status protocol goes out on out, diagnostics on err.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// buildRoot creates the root command.
func buildRoot(s stdio) *cobra.Command {
	flags := &RootFlags{}
	v := viper.New()

	root := &cobra.Command{
		Use:   "barmux [flags] [command ...]",
		Short: "Combine several i3bar status commands into one status line",
		Long: `barmux runs several status commands at once and merges their output into
a single i3bar protocol stream. Commands may print plain text lines or speak
the i3bar protocol themselves; click events from the bar are forwarded to the
commands that asked for them.

Examples:
  barmux 'date +%H:%M' 'i3status -c ~/.i3status-net'
  barmux -f ~/.config/barmux/commands
  barmux --config ~/.config/barmux/barmux.toml
  barmux --pid-file /run/user/1000/barmux.pid date
  barmux reload --pid-file /run/user/1000/barmux.pid   # restart all status commands`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), v, flags, args, s)
		},
	}
	root.SetOut(s.err)
	root.SetErr(s.err)
	addFlags(root, flags)
	if err := bindFlags(root, v); err != nil {
		panic(err)
	}
	root.AddCommand(createReloadCommand(&ReloadFlags{}))
	return root
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/barmux/internal/config"
	"github.com/loykin/barmux/internal/process"
)

// createReloadCommand creates the reload subcommand, which signals a running
// barmux found through its PID file.
func createReloadCommand(f *ReloadFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Restart the status commands of a running barmux",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReload(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "config file of the running barmux")
	cmd.Flags().StringVar(&f.PIDFile, "pid-file", "", "PID file written by the running barmux")
	cmd.Flags().StringVar(&f.ReloadSignal, "reload-signal", "", "signal to send (default: the configured reload signal)")
	return cmd
}

func runReload(cmd *cobra.Command, f *ReloadFlags) error {
	c, err := config.Load(viper.New(), f.ConfigPath)
	if err != nil {
		return err
	}
	pidFile := firstNonEmpty(f.PIDFile, c.PIDFile)
	if pidFile == "" {
		return errors.New("no pid file: use --pid-file or set pid_file in the config")
	}
	sig, err := config.ParseSignal(firstNonEmpty(f.ReloadSignal, c.ReloadSignal))
	if err != nil {
		return err
	}
	pid, err := process.SignalPIDFile(pidFile, sig)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent %s to barmux (pid %d)\n", sig, pid)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

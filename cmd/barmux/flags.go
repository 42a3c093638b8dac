package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/barmux/internal/config"
	"github.com/loykin/barmux/internal/linebuf"
)

// RootFlags holds the command-line flags. Everything except ConfigPath is
// bound into viper, so a flag set on the command line overrides BARMUX_*
// variables and the config file.
type RootFlags struct {
	ConfigPath    string
	CommandsFile  string
	Env           []string
	EnvFiles      []string
	ReloadSignal  string
	StopTimeout   time.Duration
	LogLevel      string
	LogFormat     string
	LogFile       string
	MetricsListen string
	HistoryDB     string
	MaxLine       int
	PIDFile       string
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"file":           "commands_file",
	"env":            "env",
	"env-file":       "env_files",
	"reload-signal":  "reload_signal",
	"stop-timeout":   "stop_timeout",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file.path",
	"metrics-listen": "metrics.listen",
	"history-db":     "history.dsn",
	"max-line":       "max_line",
	"pid-file":       "pid_file",
}

func addFlags(cmd *cobra.Command, f *RootFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.ConfigPath, "config", "", "path to config file (toml, yaml or json)")
	fs.StringVarP(&f.CommandsFile, "file", "f", "", "read status commands from file, one per line")
	fs.StringArrayVar(&f.Env, "env", nil, "KEY=VALUE passed to every status command (repeatable)")
	fs.StringArrayVar(&f.EnvFiles, "env-file", nil, "file of KEY=VALUE lines passed to every status command (repeatable)")
	fs.StringVar(&f.ReloadSignal, "reload-signal", config.DefaultReloadSignal, "signal that restarts all status commands (HUP, USR1 or USR2)")
	fs.DurationVar(&f.StopTimeout, "stop-timeout", config.DefaultStopTimeout, "grace period between SIGTERM and SIGKILL")
	fs.StringVar(&f.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&f.LogFormat, "log-format", "text", "log format: text, color or json")
	fs.StringVar(&f.LogFile, "log-file", "", "write logs to a rotated file instead of stderr")
	fs.StringVar(&f.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (e.g. :9100)")
	fs.StringVar(&f.HistoryDB, "history-db", "", "record command lifecycle to this sqlite database")
	fs.IntVar(&f.MaxLine, "max-line", linebuf.DefaultMaxLine, "maximum length of one output line in bytes")
	fs.StringVar(&f.PIDFile, "pid-file", "", "write the barmux PID to this file while running")
}

// ReloadFlags holds flags for the reload command.
type ReloadFlags struct {
	ConfigPath   string
	PIDFile      string
	ReloadSignal string
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

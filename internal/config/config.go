package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/barmux/internal/linebuf"
	"github.com/loykin/barmux/internal/logger"
	"github.com/loykin/barmux/internal/mux"
)

// ErrNoCommands is returned when no source yields a status command.
var ErrNoCommands = mux.ErrNoCommands

const (
	DefaultReloadSignal = "HUP"
	DefaultStopTimeout  = mux.DefaultStopTimeout
	EnvPrefix           = "BARMUX"
)

// Config is barmux's runtime configuration. It is read from an optional
// config file (toml, yaml or json), BARMUX_* environment variables and
// command-line flags bound into the same viper instance.
type Config struct {
	Commands     []string      `mapstructure:"commands"`
	CommandsFile string        `mapstructure:"commands_file"`
	Env          []string      `mapstructure:"env"`
	EnvFiles     []string      `mapstructure:"env_files"`
	ReloadSignal string        `mapstructure:"reload_signal"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	MaxLine      int           `mapstructure:"max_line"`
	PIDFile      string        `mapstructure:"pid_file"`
	Log          logger.Config `mapstructure:"log"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	History      HistoryConfig `mapstructure:"history"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// HistoryConfig enables the lifecycle history sink when DSN is set.
type HistoryConfig struct {
	DSN   string `mapstructure:"dsn"`
	Queue int    `mapstructure:"queue"`
}

// SetDefaults installs default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("reload_signal", DefaultReloadSignal)
	v.SetDefault("stop_timeout", DefaultStopTimeout)
	v.SetDefault("max_line", linebuf.DefaultMaxLine)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	// keys without a meaningful default are declared so that BARMUX_*
	// variables reach them through Unmarshal
	for _, k := range []string{"commands_file", "pid_file", "log.file.path", "metrics.listen", "history.dsn"} {
		v.SetDefault(k, "")
	}
}

// Load reads the config file at path (optional) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// ResolveCommands picks the command list: positional args win, then the
// commands file, then the config file's commands.
func (c *Config) ResolveCommands(args []string) ([]string, error) {
	var cmds []string
	switch {
	case len(args) > 0:
		cmds = args
	case c.CommandsFile != "":
		fromFile, err := LoadCommandsFile(c.CommandsFile)
		if err != nil {
			return nil, err
		}
		cmds = fromFile
	default:
		cmds = c.Commands
	}
	out := make([]string, 0, len(cmds))
	for _, s := range cmds {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCommands
	}
	return out, nil
}

// GlobalEnv returns the env_files contents followed by the env list, as
// KEY=VALUE pairs; later entries override earlier ones when merged.
func (c *Config) GlobalEnv() ([]string, error) {
	var out []string
	for _, p := range c.EnvFiles {
		pairs, err := LoadEnvFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return append(out, c.Env...), nil
}

// Validate checks the values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if _, err := ParseSignal(c.ReloadSignal); err != nil {
		return err
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("stop_timeout must not be negative: %s", c.StopTimeout)
	}
	return nil
}

// LoadCommandsFile reads one command per line. Blank lines and lines whose
// first non-blank character is '#' are skipped.
func LoadCommandsFile(path string) ([]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read commands file: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// LoadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func LoadEnvFile(path string) ([]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			out = append(out, strings.TrimSpace(k)+"="+strings.TrimSpace(v))
		}
	}
	return out, nil
}

var signals = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
}

// ParseSignal maps a reload signal name ("HUP", "SIGUSR1", "usr2") to its value.
func ParseSignal(name string) (syscall.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "SIG")
	if s, ok := signals[n]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unsupported reload signal %q", name)
}

// Package config loads the configuration of the sshed commands from a
// config file, a .env file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: SSHED_SOCK sets Sock,
// SSHED_LOG_LEVEL sets Log.Level.
const EnvPrefix = "SSHED"

// Config is the configuration shared by the sshed commands.
type Config struct {
	// Sock is the agent socket, or the directory holding it
	Sock string `mapstructure:"sock"`

	// Shell selects the export syntax printed by the agent. Empty means the
	// base name of $SHELL.
	Shell string `mapstructure:"shell"`

	// Editor is the editor command. Empty means chosen from the environment.
	Editor string `mapstructure:"editor"`

	MaxSessions int           `mapstructure:"max_sessions"`
	TempDir     string        `mapstructure:"temp_dir"`
	DiffContext int           `mapstructure:"diff_context"`
	IOTimeout   time.Duration `mapstructure:"io_timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// FullContent disables diffs in replies
	FullContent bool `mapstructure:"full_content"`

	// NoFallback disables the local editor fallback of the guest
	NoFallback bool `mapstructure:"no_fallback"`

	// MetricsAddr is the listen address of the agent metrics server.
	// Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// SSHClient is the SSH client used by edssh
	SSHClient string `mapstructure:"ssh_client"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with defaults. Logs go to stderr: the
// agent prints its export command on stdout.
func Default() *Config {
	return &Config{
		MaxSessions: 16,
		DiffContext: 3,
		IOTimeout:   time.Minute,
		DialTimeout: 5 * time.Second,
		Log: LogConfig{
			Level:   "warn",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load builds the configuration from, by increasing precedence: defaults,
// the config file, a .env file in the working directory, the environment
// and the flags of fs that were set. Flag names map to keys with dashes
// replaced by underscores ("max-sessions" sets max_sessions).
//
// An empty path searches sshed.yaml in the working directory and in
// ~/.config/sshed; a missing file is not an error.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed every key so env-only configs work
	v.SetDefault("sock", cfg.Sock)
	v.SetDefault("shell", cfg.Shell)
	v.SetDefault("editor", cfg.Editor)
	v.SetDefault("max_sessions", cfg.MaxSessions)
	v.SetDefault("temp_dir", cfg.TempDir)
	v.SetDefault("diff_context", cfg.DiffContext)
	v.SetDefault("io_timeout", cfg.IOTimeout)
	v.SetDefault("dial_timeout", cfg.DialTimeout)
	v.SetDefault("full_content", cfg.FullContent)
	v.SetDefault("no_fallback", cfg.NoFallback)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("ssh_client", cfg.SSHClient)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sshed")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "sshed"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("invalid max_sessions: %d", c.MaxSessions)
	}
	if c.DiffContext < 0 {
		return fmt.Errorf("invalid diff_context: %d", c.DiffContext)
	}
	return nil
}

// ShellName returns the configured shell, or the base name of $SHELL, or
// bash.
func (c *Config) ShellName() string {
	if c.Shell != "" {
		return c.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return filepath.Base(sh)
	}
	return "bash"
}

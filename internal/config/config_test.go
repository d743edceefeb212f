package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	t.Setenv(EnvPrefix+"_CONFIG", "")
	return dir
}

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("sock", "a", "", "")
	fs.Int("max-sessions", 16, "")
	fs.Duration("io-timeout", time.Minute, "")
	fs.Bool("full-content", false, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sock: /tmp/agent/socket
max_sessions: 4
io_timeout: 30s
log:
  level: debug
  format: json
  outputs: [stdout, /var/log/sshed.log]
  rotation:
    enable: true
    max_size_mb: 5
`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/agent/socket", cfg.Sock)
	assert.Equal(t, 4, cfg.MaxSessions)
	assert.Equal(t, 30*time.Second, cfg.IOTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stdout", "/var/log/sshed.log"}, cfg.Log.Outputs)
	assert.True(t, cfg.Log.Rotation.Enable)
	assert.Equal(t, 5, cfg.Log.Rotation.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.Rotation.MaxBackups, "unset keys keep their default")
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sshed.yaml"), []byte("diff_context: 7\n"), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.DiffContext)
}

func TestLoad_ConfigFromEnvironment(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("editor: nano\n"), 0o600))
	t.Setenv(EnvPrefix+"_CONFIG", path)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "nano", cfg.Editor)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("SSHED_SOCK", "/run/sshed/socket")
	t.Setenv("SSHED_MAX_SESSIONS", "2")
	t.Setenv("SSHED_LOG_LEVEL", "info")
	t.Setenv("SSHED_FULL_CONTENT", "true")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/run/sshed/socket", cfg.Sock)
	assert.Equal(t, 2, cfg.MaxSessions)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.FullContent)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sshed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sock: /from/file\nmax_sessions: 4\nio_timeout: 10s\n"), 0o600))
	t.Setenv("SSHED_MAX_SESSIONS", "8")

	fs := flagSet()
	require.NoError(t, fs.Parse([]string{"-a", "/from/flag"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Sock, "set flag beats the file")
	assert.Equal(t, 8, cfg.MaxSessions, "environment beats the file")
	assert.Equal(t, 10*time.Second, cfg.IOTimeout, "file beats an unset flag")
	assert.False(t, cfg.FullContent)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SSHED_DIFF_CONTEXT=5\nSSHED_SHELL=fish\n"), 0o600))
	t.Setenv("SSHED_SHELL", "csh")
	// godotenv sets the variables for the whole process
	t.Setenv("SSHED_DIFF_CONTEXT", "")
	require.NoError(t, os.Unsetenv("SSHED_DIFF_CONTEXT"))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.DiffContext)
	assert.Equal(t, "csh", cfg.Shell, "the environment wins over .env")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"log level", map[string]string{"SSHED_LOG_LEVEL": "loud"}},
		{"max sessions", map[string]string{"SSHED_MAX_SESSIONS": "-1"}},
		{"diff context", map[string]string{"SSHED_DIFF_CONTEXT": "-3"}},
		{"duration", map[string]string{"SSHED_IO_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	isolate(t)
	assert.NoError(t, LoadDotEnv("nope.env", "other.env"))
}

func TestShellName(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/zsh")
	assert.Equal(t, "zsh", (&Config{}).ShellName())
	assert.Equal(t, "fish", (&Config{Shell: "fish"}).ShellName())

	t.Setenv("SHELL", "")
	assert.Equal(t, "bash", (&Config{}).ShellName())
}

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/pior/sshed"
	"github.com/pior/sshed/internal/config"
	"github.com/pior/sshed/internal/observability"
)

func main() {
	err := rootCmd().Execute()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "edssh: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "edssh [--ssh-client ssh] [--] [SSH ARGUMENTS...]",
		Short: "Run ssh with the sshed agent socket forwarded",
		Long: `edssh runs the SSH client with the socket of the local sshed agent
forwarded to the same path on the remote host, and starts the remote shell
with SSHED_SOCK set.

SSH options must follow "--": edssh -- -p 2222 user@host`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Sugar()

			client, err := sshed.FindSSHClient(cmd.Context(), cfg.SSHClient, exec.LookPath)
			if err != nil {
				return err
			}
			if !client.Valid() {
				return fmt.Errorf("unsupported SSH client: %s", client)
			}

			socket, err := sshed.FindSocket(cfg.Sock, os.Getenv)
			if err != nil {
				return fmt.Errorf("no usable agent socket, start sshed-agent first: %w", err)
			}

			argv := client.Command(socket, args, remoteShell())
			log.Debugw("running", "argv", argv)

			c := exec.CommandContext(cmd.Context(), client.Executable, argv[1:]...)
			c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
			return c.Run()
		},
	}

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.StringVar(&configPath, "config", "", "config file (default: sshed.yaml)")
	f.String("ssh-client", defaults.SSHClient, "SSH client executable (default: ssh, then dbclient)")
	f.String("sock", defaults.Sock, "agent socket (default: $SSHED_SOCK)")
	return cmd
}

func remoteShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "bash"
}

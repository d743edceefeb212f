package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pior/sshed"
	"github.com/pior/sshed/internal/config"
	"github.com/pior/sshed/internal/observability"
	"github.com/pior/sshed/packet"
)

// Version information set at build time.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sshed-agent: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		shell      string
	)
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "sshed-agent",
		Short: "Serve edit sessions to remote sshed guests",
		Long: `sshed-agent listens on a private Unix socket and opens the files sent by
sshed guests in a local editor, replying with the changes.

It prints the command exporting SSHED_SOCK for the current shell, so it is
usually started with:

  eval "$(sshed-agent &)"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Level = "debug"
			}
			if shell != "" {
				cfg.Shell = shell
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "config file (default: sshed.yaml)")
	f.BoolVarP(&debug, "debug", "d", false, "log debug messages")
	f.StringP("sock", "a", defaults.Sock, "socket path (default: a private temporary directory)")
	f.String("shell", defaults.Shell, "shell syntax of the printed export command (default: from $SHELL)")
	f.BoolP("bash", "b", false, `shortcut for --shell bash`)
	f.BoolP("csh", "c", false, `shortcut for --shell csh`)
	f.Bool("fish", false, `shortcut for --shell fish`)
	f.String("editor", defaults.Editor, "editor command (default: from $EDITOR, $VISUAL, ...)")
	f.Int("max-sessions", defaults.MaxSessions, "maximum number of concurrent sessions")
	f.Int("diff-context", defaults.DiffContext, "context lines around each change in diffs")
	f.Duration("io-timeout", defaults.IOTimeout, "timeout of each transfer (0 for none)")
	f.String("temp-dir", defaults.TempDir, "parent directory of the session directories")
	f.String("metrics-addr", defaults.MetricsAddr, "serve Prometheus metrics on this address")
	cmd.MarkFlagsMutuallyExclusive("shell", "bash", "csh", "fish")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		for _, name := range []string{"bash", "csh", "fish"} {
			if on, _ := cmd.Flags().GetBool(name); on {
				shell = name
			}
		}
	}

	cmd.AddCommand(versionCmd())
	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	agentConfig := sshed.AgentConfig{
		MaxSessions: int32(cfg.MaxSessions),
		TempDir:     cfg.TempDir,
		DiffContext: cfg.DiffContext,
		IOTimeout:   cfg.IOTimeout,
		Logger:      log,
	}
	if argv := strings.Fields(cfg.Editor); len(argv) > 0 {
		agentConfig.Editor = &sshed.ExecEditor{Argv: argv}
	}

	agent, err := sshed.NewAgent(agentConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			log.Warnw("cleanup failed", "error", err)
		}
	}()

	l, err := agent.Listen(cfg.Sock)
	if err != nil {
		return err
	}

	export, err := sshed.ExportCommand(cfg.ShellName(), sshed.SocketEnv, l.Addr().String(), true)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, export)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: sshed.MetricsHandler(agent)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	log.Infow("serving", "socket", l.Addr().String())
	return agent.Serve(ctx, l)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sshed-agent %s (protocol %d)\n", version, packet.ProtocolVersion)
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/sshed"
	"github.com/pior/sshed/internal/config"
	"github.com/pior/sshed/internal/observability"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sshed: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "sshed FILE...",
		Short: "Edit files with the editor of the sshed agent",
		Long: `sshed sends each file to the sshed agent found through SSHED_SOCK, waits
for the editor to be closed and writes the changes back.

Without a reachable agent the files are edited with a local editor.
Set EDITOR=sshed to use it from other programs.`,
		Args:          cobra.MinimumNArgs(1),
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "config file (default: sshed.yaml)")
	f.BoolVarP(&debug, "debug", "d", false, "log debug messages")
	f.StringP("sock", "a", defaults.Sock, "agent socket (default: $SSHED_SOCK)")
	f.Bool("full-content", defaults.FullContent, "ask for the whole file back instead of a diff")
	f.Bool("no-fallback", defaults.NoFallback, "fail instead of using a local editor")
	f.Duration("dial-timeout", defaults.DialTimeout, "timeout of the connection to the agent")
	f.String("editor", defaults.Editor, "local editor command (default: from $EDITOR, $VISUAL, ...)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, files []string) error {
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	guestConfig := sshed.GuestConfig{
		Socket:            cfg.Sock,
		FullContent:       cfg.FullContent,
		DialTimeout:       cfg.DialTimeout,
		NoFallback:        cfg.NoFallback,
		NewCircuitBreaker: sshed.NewCircuitBreakerConfig(1, 0, time.Minute),
		Logger:            logger.Sugar(),
	}
	if argv := strings.Fields(cfg.Editor); len(argv) > 0 {
		guestConfig.LocalEditor = &sshed.ExecEditor{Argv: argv}
	}

	guest := sshed.NewGuest(guestConfig)
	for _, file := range files {
		if err := guest.Edit(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

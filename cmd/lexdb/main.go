package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/lexdb/cmd/lexdb/check"
	"github.com/walteh/lexdb/cmd/lexdb/repl"
	"github.com/walteh/lexdb/cmd/lexdb/tokens"
	lexdebug "github.com/walteh/lexdb/pkg/debug"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "lexdb",
		Short:         "Lex source files and report lexical diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return errors.Errorf("parsing --log-level: %w", err)
		}
		logger := lexdebug.NewLogger(cmd.ErrOrStderr(), level, !color.NoColor)
		cmd.SetContext(logger.WithContext(cmd.Context()))
		return nil
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	cmdVersion := &cobra.Command{
		Use: "raw-version",
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
		Hidden: true,
	}

	rootCmd.AddCommand(cmdVersion)

	rootCmd.AddCommand(check.NewCheckCommand())
	rootCmd.AddCommand(tokens.NewTokensCommand())
	rootCmd.AddCommand(repl.NewReplCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}

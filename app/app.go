// Package app wires configuration, logging and the gateways into the
// mailsheet command line.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailsheet/config"
	"github.com/bassamadnan/mailsheet/logger"
)

var rootCmd = &cobra.Command{
	Use:           "mailsheet",
	Short:         "Copy unread mail into a spreadsheet",
	Long:          "Reads unread messages from Gmail or an IMAP mailbox, appends sender, subject, date and body to a Google Sheet, and marks them read.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "config.yaml", "Path to the YAML settings file")
	flags.String("spreadsheet-id", "", "Target spreadsheet ID")
	flags.String("sheet-name", "", "Target sheet tab")
	flags.String("subject-filter", "", "Only transfer messages whose subject contains this text")
	flags.String("state-path", "", "Processed-state file or database")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "JSON log file, empty to log to stderr only")

	rootCmd.AddCommand(runCmd, watchCmd, authCmd, imapPasswordCmd, stateCmd)
}

// env is what every command starts from.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	cleanup func()
}

func setup(cmd *cobra.Command) (*env, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, cleanup, err := logger.New(logger.Config{
		File:  cfg.Log.File,
		Level: cfg.Log.Level,
		Dev:   cfg.Log.Dev,
	})
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("command", cmd.Name()))
	return &env{cfg: cfg, log: log, cleanup: cleanup}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func requireValid(cfg *config.Config) error {
	return errors.Wrap(cfg.Validate(), "invalid configuration")
}

package app

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailsheet/credential"
	"github.com/bassamadnan/mailsheet/googleauth"
	"github.com/bassamadnan/mailsheet/state"
	"github.com/bassamadnan/mailsheet/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail and Sheets access and save the OAuth token",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.cleanup()

		a, err := googleauth.New(e.cfg.Auth.CredentialsFile, e.cfg.Auth.TokenFile, e.log)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), tui.RenderAuthURL(a.AuthCodeURL()))

		code, err := tui.Prompt("Authorization code", "paste the code here", false)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		if err := a.Exchange(ctx, code); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", e.cfg.Auth.TokenFile)
		return nil
	},
}

var imapPasswordCmd = &cobra.Command{
	Use:   "imap-password",
	Short: "Store the IMAP password in the system keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.cleanup()

		username := e.cfg.Mailbox.IMAP.Username
		if username == "" {
			return errors.New("mailbox.imap.username is not set")
		}
		password, err := tui.Prompt("IMAP password for "+username, "", true)
		if err != nil {
			return err
		}

		store, err := credential.Open()
		if err != nil {
			return err
		}
		if err := store.SetIMAPPassword(username, password); err != nil {
			return err
		}
		e.log.Info("stored IMAP password in keyring", zap.String("user", username))
		fmt.Fprintf(cmd.OutOrStdout(), "Password for %s saved to the keyring\n", username)
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show how many messages have been transferred",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.cleanup()

		store, err := state.Open(e.cfg.State.Backend, e.cfg.State.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderState(e.cfg.State.Backend, e.cfg.State.Path, snap))
		return nil
	},
}

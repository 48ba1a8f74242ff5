package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsheet/config"
	"github.com/bassamadnan/mailsheet/credential"
	"github.com/bassamadnan/mailsheet/gmail"
	"github.com/bassamadnan/mailsheet/googleauth"
	"github.com/bassamadnan/mailsheet/imap"
	"github.com/bassamadnan/mailsheet/processor"
	"github.com/bassamadnan/mailsheet/sheets"
	"github.com/bassamadnan/mailsheet/state"
)

// services holds the gateways and store a run needs. They are built once
// and shared by every pass in watch mode.
type services struct {
	mailbox processor.Mailbox
	sheet   processor.Sheet
	store   state.Store
	closers []func() error
}

func openServices(ctx context.Context, cfg *config.Config, log *zap.Logger) (*services, error) {
	auth, err := googleauth.New(cfg.Auth.CredentialsFile, cfg.Auth.TokenFile, log)
	if err != nil {
		return nil, err
	}
	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}

	s := &services{}
	s.sheet, err = sheets.NewClient(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	switch cfg.Mailbox.Provider {
	case config.ProviderIMAP:
		ic := cfg.Mailbox.IMAP
		password, err := credential.ResolveIMAPPassword(cfg.Auth.IMAPPassword, ic.Username, credential.Open)
		if err != nil {
			return nil, err
		}
		client := imap.NewClient(imap.Config{
			Host:     ic.Host,
			Port:     ic.Port,
			Username: ic.Username,
			Password: password,
			Folder:   ic.Folder,
			TLS:      ic.TLS,
		}, log)
		s.mailbox = client
		s.closers = append(s.closers, client.Close)
	default:
		s.mailbox, err = gmail.NewClient(ctx, cfg.Mailbox.Query, cfg.Mailbox.MaxResults, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
	}

	s.store, err = state.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "opening processed state")
	}
	s.closers = append(s.closers, s.store.Close)
	return s, nil
}

func (s *services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func processorConfig(cfg *config.Config) processor.Config {
	return processor.Config{
		SpreadsheetID: cfg.SpreadsheetID,
		SheetName:     cfg.SheetName,
		SubjectFilter: cfg.SubjectFilter,
		Retry:         cfg.Retry.Policy(),
	}
}

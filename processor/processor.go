// Package processor runs one transfer pass: unread messages are parsed,
// appended to the sheet, marked read and recorded so a rerun never appends
// the same message twice.
package processor

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailsheet/mail"
	"github.com/bassamadnan/mailsheet/retry"
	"github.com/bassamadnan/mailsheet/state"
)

// Mailbox is the source of unread messages.
type Mailbox interface {
	ListUnread(ctx context.Context) ([]string, error)
	// Fetch returns nil and no error when the message is gone.
	Fetch(ctx context.Context, id string) (*mail.Message, error)
	MarkRead(ctx context.Context, id string) error
}

// Sheet is the destination spreadsheet.
type Sheet interface {
	AppendRow(ctx context.Context, spreadsheetID, sheetName string, row []string) error
}

// Config names the destination and how one run behaves.
type Config struct {
	SpreadsheetID string
	SheetName     string
	SubjectFilter string // empty transfers every message
	Retry         retry.Policy
}

// RunResult counts what happened to each listed id. Skipped covers ids
// already recorded and messages the subject filter rejected; Failed covers
// fetch misses, parse failures and appends that ran out of retries.
type RunResult struct {
	Processed int
	Skipped   int
	Failed    int
}

func (r RunResult) Total() int { return r.Processed + r.Skipped + r.Failed }

// Processor transfers unread messages to the sheet, one run at a time.
type Processor struct {
	cfg     Config
	mailbox Mailbox
	sheet   Sheet
	store   state.Store
	log     *zap.Logger
}

// New returns a Processor. It does not touch the mailbox or the store until Run.
func New(cfg Config, mailbox Mailbox, sheet Sheet, store state.Store, log *zap.Logger) *Processor {
	return &Processor{cfg: cfg, mailbox: mailbox, sheet: sheet, store: store, log: log}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Run makes one pass over the unread messages. The processed set is saved
// when the pass ends, fatal error or not; a save failure is only logged.
func (p *Processor) Run(ctx context.Context) (result RunResult, err error) {
	processed := p.loadState(ctx)

	defer func() {
		if serr := p.store.Save(ctx, processed); serr != nil {
			p.log.Error("could not save processed state", zap.Error(serr))
			return
		}
		p.log.Debug("saved processed state", zap.Int("ids", processed.Len()))
	}()

	var ids []string
	err = retry.Do(ctx, p.cfg.Retry, p.log, "list unread messages", func(ctx context.Context) error {
		var lerr error
		ids, lerr = p.mailbox.ListUnread(ctx)
		return lerr
	})
	if err != nil {
		p.log.Error("listing unread messages failed", zap.Error(err))
		return result, err
	}
	if len(ids) == 0 {
		p.log.Info("no unread messages")
		return result, nil
	}
	p.log.Info("found unread messages", zap.Int("count", len(ids)))

	for _, id := range ids {
		o, herr := p.handle(ctx, processed, id)
		if herr != nil {
			p.log.Error("run aborted", zap.String("message_id", id), zap.Error(herr))
			return result, herr
		}
		switch o {
		case outcomeProcessed:
			result.Processed++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}

	p.log.Info("run finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (p *Processor) loadState(ctx context.Context) state.ProcessedSet {
	snap, err := p.store.Load(ctx)
	if err != nil {
		p.log.Error("could not load processed state, starting empty", zap.Error(err))
		return state.NewProcessedSet()
	}
	p.log.Info("loaded processed state",
		zap.Int("ids", snap.ProcessedIDs.Len()),
		zap.Time("last_updated", snap.LastUpdated),
	)
	return snap.ProcessedIDs
}

// handle moves one id through fetch, parse, filter, append and mark-read.
// A returned error is fatal to the run.
func (p *Processor) handle(ctx context.Context, processed state.ProcessedSet, id string) (outcome, error) {
	log := p.log.With(zap.String("message_id", id))

	if processed.Has(id) {
		log.Debug("already processed")
		return outcomeSkipped, nil
	}

	msg, err := p.mailbox.Fetch(ctx, id)
	if err != nil {
		if !retry.IsProvider(err) {
			return outcomeFailed, errors.Wrapf(err, "fetching message %s", id)
		}
		log.Warn("could not fetch message", zap.Error(err))
		return outcomeFailed, nil
	}
	if msg == nil {
		log.Warn("message not found")
		return outcomeFailed, nil
	}

	rec, err := mail.Parse(msg)
	if err != nil {
		log.Warn("could not parse message", zap.Error(err))
		return outcomeFailed, nil
	}

	if p.cfg.SubjectFilter != "" && !strings.Contains(rec.Subject, p.cfg.SubjectFilter) {
		log.Debug("subject does not match filter", zap.String("subject", rec.Subject))
		return outcomeSkipped, nil
	}

	err = retry.Do(ctx, p.cfg.Retry, log, "append row", func(ctx context.Context) error {
		return p.sheet.AppendRow(ctx, p.cfg.SpreadsheetID, p.cfg.SheetName, rec.Row())
	})
	if err != nil {
		if !retry.IsProvider(err) {
			return outcomeFailed, errors.Wrapf(err, "appending message %s", id)
		}
		log.Error("could not append row", zap.Error(err))
		return outcomeFailed, nil
	}

	// The row is on the sheet, so the id is recorded even if mark-read fails.
	if err := p.mailbox.MarkRead(ctx, id); err != nil {
		log.Warn("could not mark message read", zap.Error(err))
	}
	processed.Add(id)

	log.Info("transferred message", zap.String("from", rec.From), zap.String("subject", rec.Subject))
	return outcomeProcessed, nil
}

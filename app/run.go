package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailsheet/processor"
	"github.com/bassamadnan/mailsheet/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Transfer unread messages once",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.cleanup()
		if err := requireValid(e.cfg); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx, e.cfg, e.log)
		if err != nil {
			e.log.Error("could not start", zap.Error(err))
			return err
		}
		defer svc.Close()

		return runPass(ctx, processorConfig(e.cfg), svc, e.log, cmd.OutOrStdout())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Transfer unread messages now and then on the watch schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.cleanup()
		if err := requireValid(e.cfg); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx, e.cfg, e.log)
		if err != nil {
			e.log.Error("could not start", zap.Error(err))
			return err
		}
		defer svc.Close()

		pcfg := processorConfig(e.cfg)
		out := cmd.OutOrStdout()
		e.log.Info("watching mailbox", zap.String("schedule", e.cfg.Watch.Schedule))
		return watch(ctx, e.cfg.Watch.Schedule, e.log, func(ctx context.Context) {
			// A failed pass is logged in runPass; the next tick tries again.
			_ = runPass(ctx, pcfg, svc, e.log, out)
		})
	},
}

// runPass makes one processing pass under a fresh run id and prints the
// summary. A started pass is not interrupted by cancelling ctx.
func runPass(ctx context.Context, cfg processor.Config, svc *services, log *zap.Logger, out io.Writer) error {
	runLog := log.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()

	res, err := processor.New(cfg, svc.mailbox, svc.sheet, svc.store, runLog).Run(context.WithoutCancel(ctx))
	elapsed := time.Since(start)
	runLog.Info("run summary",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", elapsed),
	)
	fmt.Fprintln(out, tui.RenderSummary(res, elapsed, err))
	return err
}

// watch runs pass immediately and then on schedule until ctx is cancelled.
// Passes never overlap.
func watch(ctx context.Context, schedule string, log *zap.Logger, pass func(context.Context)) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(log))),
	))
	if _, err := c.AddFunc(schedule, func() { pass(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid watch.schedule %q", schedule)
	}

	pass(ctx)
	if ctx.Err() != nil {
		return nil
	}

	c.Start()
	<-ctx.Done()
	log.Info("stopping watch, waiting for the current pass")
	<-c.Stop().Done()
	return nil
}

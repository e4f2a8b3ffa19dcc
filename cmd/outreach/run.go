package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/livinlefevreloca/outreach/internal/browser"
	"github.com/livinlefevreloca/outreach/internal/campaign"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
	"github.com/livinlefevreloca/outreach/internal/message"
	"github.com/livinlefevreloca/outreach/internal/stats"
	"github.com/livinlefevreloca/outreach/internal/throttle"
	"github.com/livinlefevreloca/outreach/internal/worklist"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var loop bool

	cmd := &cobra.Command{
		Use:   "run [csv]",
		Short: "Run the campaign over a worklist",
		Long: `Advance every profile of the worklist as far as it can go, in throttled
cycles. With --loop the worklist is reloaded and passed over again every
campaign.pass_interval until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.Campaign.InputCSV = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runCampaign(ctx, loop)
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "Repeat passes until interrupted")
	return cmd
}

func (a *app) runCampaign(ctx context.Context, loop bool) error {
	cfg := a.cfg
	logger := a.logger

	renderer, err := message.NewRenderer(cfg.Message)
	if err != nil {
		return err
	}

	database, err := a.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	session, err := browser.Open(ctx, cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	inspector := browser.NewInspector(session, logger)
	checker := classifier.NewChecker(inspector, cfg.Classifier, logger)
	machine := lifecycle.NewMachine(lifecycle.NewDBAdapter(database), lifecycle.Collaborators{
		Enricher:  browser.NewEnricher(session, logger),
		Connector: browser.NewConnector(session, cfg.Classifier, logger),
		Checker:   checker,
		Messenger: browser.NewMessenger(session, checker, renderer, logger),
	}, logger)

	runID := uuid.NewString()
	collector := stats.NewCollector(cfg.Stats, runID, stats.NewDBAdapter(database), logger)
	if err := collector.Start(ctx); err != nil {
		return err
	}

	runner := campaign.NewRunner(cfg.Campaign, campaign.Deps{
		Machine:     machine,
		Store:       database,
		Throttle:    throttle.New(cfg.Throttle, logger),
		Snapshotter: browser.NewSnapshotter(cfg.Campaign.SnapshotDir, session, logger),
		Stats:       collector,
		Logger:      logger.With("run_id", runID),
	})

	load := func(ctx context.Context) ([]worklist.Item, error) {
		return worklist.Load(ctx, cfg.Campaign.InputCSV, database)
	}

	logger.Info("campaign starting", "run_id", runID, "input_csv", cfg.Campaign.InputCSV, "loop", loop)

	var summary campaign.Summary
	var runErr error
	if loop {
		summary, runErr = runner.RunLoop(ctx, load)
	} else {
		items, err := load(ctx)
		if err != nil {
			runErr = err
		} else {
			summary, runErr = runner.Run(ctx, items)
		}
	}

	status := db.RunStatusCompleted
	switch {
	case runErr != nil:
		status = db.RunStatusFailed
	case summary.Cancelled:
		status = db.RunStatusCancelled
	}

	// the run context may already be cancelled
	final, err := collector.Finish(context.WithoutCancel(ctx), status, !runner.ConnectionsAllowed())
	if err != nil {
		logger.Error("failed to record run summary", "error", err)
	}

	logger.Info("campaign finished",
		"run_id", runID,
		"status", status,
		"cycles", final.Cycles,
		"transitions", final.Transitions,
		"skipped", final.Skipped,
		"completed", final.Completed,
		"remaining", summary.Remaining,
		"connections_disabled", final.ConnectionsDisabled,
		"stats_write_failures", collector.WriteFailures())

	if runErr != nil {
		return errors.Wrapf(runErr, "run %s", runID)
	}
	return nil
}

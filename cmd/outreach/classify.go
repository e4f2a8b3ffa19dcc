package main

import (
	"fmt"

	"github.com/livinlefevreloca/outreach/internal/browser"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
	"github.com/livinlefevreloca/outreach/lib/profileurl"
	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <profile-url>",
		Short: "Open one profile and report its connection status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			publicID, err := profileurl.ToPublicID(args[0])
			if err != nil {
				return err
			}
			target := lifecycle.Target{
				PublicIdentifier: publicID,
				URL:              profileurl.FromPublicID(publicID),
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			// a stored enrichment supplies the degree hint
			stored, err := database.GetProfile(ctx, publicID)
			switch {
			case err == nil:
				target.Profile = stored.Profile
			case !db.IsNotFound(err):
				return err
			}

			session, err := browser.Open(ctx, a.cfg.Browser, a.logger)
			if err != nil {
				return err
			}
			defer session.Close()

			ct := target.ClassifierTarget()
			signals, err := browser.NewInspector(session, a.logger).InspectPageSignals(ctx, ct)
			if err != nil {
				return err
			}
			verdict := classifier.Classify(ct.DegreeHint, signals, a.cfg.Classifier)

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", publicID, verdict.Status, verdict.Reason)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/worklist"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [csv]",
		Short: "Register the profiles of a CSV as discovered",
		Long: `Read profile URLs from a CSV (column url, linkedin_url or profile_url)
and register every unknown profile as discovered. Known profiles keep their
state. Defaults to campaign.input_csv.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Campaign.InputCSV
			if len(args) == 1 {
				path = args[0]
			}

			items, err := worklist.LoadCSV(path)
			if err != nil {
				return err
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			ids := make([]string, len(items))
			for i, it := range items {
				ids[i] = it.PublicIdentifier
			}
			added, err := database.AddProfileURLs(cmd.Context(), ids)
			if err != nil {
				return errors.Wrap(err, "import profiles")
			}

			a.logger.Info("profiles imported", "path", path, "profiles", len(items), "new", added)
			fmt.Fprintf(cmd.OutOrStdout(), "%d profiles read, %d new\n", len(items), added)
			return nil
		},
	}
}

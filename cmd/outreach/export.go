package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/livinlefevreloca/outreach/lib/profileurl"
	"github.com/spf13/cobra"
)

// exportRecord is one line of the export file
type exportRecord struct {
	PublicIdentifier string          `json:"public_identifier"`
	URL              string          `json:"url"`
	State            string          `json:"state"`
	Profile          json.RawMessage `json:"profile"`
	Data             json.RawMessage `json:"data,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// exportStore is the part of the database the export needs
type exportStore interface {
	ListUnsynced(ctx context.Context, limit int) ([]*db.Profile, error)
	MarkSynced(ctx context.Context, publicID string) error
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write enriched profiles not yet exported as JSON lines",
		Long: `Write every enriched profile whose cloud_synced flag is unset as one JSON
object per line, then set the flag. Re-enriching a profile clears the flag
so it is exported again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return errors.Wrapf(err, "open %s", out)
				}
				defer f.Close()
				w = f
			}

			n, err := exportUnsynced(cmd.Context(), database, w, limit)
			a.logger.Info("profiles exported", "count", n, "out", out)
			if err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "%d profiles exported to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Append to this file instead of stdout")
	cmd.Flags().IntVar(&limit, "limit", 0, "Export at most this many profiles (0 for all)")
	return cmd
}

// exportUnsynced writes each unsynced profile and flags it once written.
// A profile whose line could not be written stays unsynced.
func exportUnsynced(ctx context.Context, store exportStore, w io.Writer, limit int) (int, error) {
	profiles, err := store.ListUnsynced(ctx, limit)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	exported := 0
	for _, p := range profiles {
		rec := exportRecord{
			PublicIdentifier: p.PublicIdentifier,
			URL:              profileurl.FromPublicID(p.PublicIdentifier),
			State:            p.State,
			Profile:          p.Profile,
			Data:             p.Data,
			UpdatedAt:        p.UpdatedAt,
		}
		if err := enc.Encode(rec); err != nil {
			return exported, errors.Wrapf(err, "write %s", p.PublicIdentifier)
		}
		if err := store.MarkSynced(ctx, p.PublicIdentifier); err != nil {
			return exported, errors.Wrapf(err, "mark %s exported", p.PublicIdentifier)
		}
		exported++
	}
	return exported, nil
}

package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/db"
)

// DBAdapter adapts db.DB to the Store interface
type DBAdapter struct {
	db *db.DB
}

// NewDBAdapter creates a new database adapter
func NewDBAdapter(database *db.DB) *DBAdapter {
	return &DBAdapter{db: database}
}

// ReadProfile returns nil when the profile is not stored
func (a *DBAdapter) ReadProfile(ctx context.Context, publicID string) (*Record, error) {
	p, err := a.db.GetProfile(ctx, publicID)
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state, err := ParseState(p.State)
	if err != nil {
		return nil, errors.Wrapf(err, "profile %s", publicID)
	}
	return &Record{
		PublicIdentifier: p.PublicIdentifier,
		State:            state,
		Profile:          p.Profile,
		Raw:              p.Data,
		CloudSynced:      p.CloudSynced,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

// PersistState writes the state and bumps updated_at
func (a *DBAdapter) PersistState(ctx context.Context, publicID string, state ProfileState) error {
	return a.db.SetProfileState(ctx, publicID, state.String())
}

// PersistEnriched stores the payloads and marks the profile enriched
func (a *DBAdapter) PersistEnriched(ctx context.Context, publicID string, profile, raw json.RawMessage) error {
	return a.db.SaveEnrichedProfile(ctx, publicID, profile, raw)
}

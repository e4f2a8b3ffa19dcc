package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

const profileColumns = `public_identifier, state, profile, data, cloud_synced, created_at, updated_at`

// GetProfile retrieves a profile by public identifier
func (db *DB) GetProfile(ctx context.Context, publicID string) (*Profile, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE public_identifier = ?`, publicID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get profile %s", publicID)
	}
	return p, nil
}

// SetProfileState upserts the profile's state and bumps updated_at
func (db *DB) SetProfileState(ctx context.Context, publicID, state string) error {
	now := db.now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (public_identifier, state, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (public_identifier) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, publicID, state, now, now)
	if err != nil {
		return errors.Wrapf(err, "set state of %s to %s", publicID, state)
	}
	return nil
}

// SaveEnrichedProfile stores the enrichment payload and marks the profile
// enriched. A re-enriched profile must be synced again.
func (db *DB) SaveEnrichedProfile(ctx context.Context, publicID string, profile, data json.RawMessage) error {
	now := db.now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (public_identifier, state, profile, data, cloud_synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (public_identifier) DO UPDATE SET
			state = excluded.state,
			profile = excluded.profile,
			data = excluded.data,
			cloud_synced = 0,
			updated_at = excluded.updated_at
	`, publicID, StateEnriched, nullJSON(profile), nullJSON(data), now, now)
	if err != nil {
		return errors.Wrapf(err, "save enriched profile %s", publicID)
	}
	return nil
}

// AddProfileURLs inserts new profiles in the discovered state. Existing
// profiles are left untouched. Returns the number of rows inserted.
func (db *DB) AddProfileURLs(ctx context.Context, publicIDs []string) (int, error) {
	if len(publicIDs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := db.WithTransaction(ctx, func(tx *Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO profiles (public_identifier, state, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (public_identifier) DO NOTHING
		`)
		if err != nil {
			return errors.Wrap(err, "prepare insert")
		}
		defer stmt.Close()

		now := db.now()
		for _, id := range publicIDs {
			res, err := stmt.ExecContext(ctx, id, StateDiscovered, now, now)
			if err != nil {
				return errors.Wrapf(err, "insert %s", id)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.Wrap(err, "rows affected")
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "add profile urls")
	}
	return inserted, nil
}

// GetUpdatedAt returns the last update time for each known identifier.
// Unknown identifiers are absent from the result.
func (db *DB) GetUpdatedAt(ctx context.Context, publicIDs []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(publicIDs))
	if len(publicIDs) == 0 {
		return result, nil
	}

	stmt, err := db.PrepareContext(ctx, `SELECT updated_at FROM profiles WHERE public_identifier = ?`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare updated_at lookup")
	}
	defer stmt.Close()

	for _, id := range publicIDs {
		var updated time.Time
		err := stmt.QueryRowContext(ctx, id).Scan(&updated)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "updated_at of %s", id)
		}
		result[id] = updated
	}
	return result, nil
}

// CountPendingDiscovered counts profiles still waiting for enrichment
func (db *DB) CountPendingDiscovered(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE state = ?`, StateDiscovered).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count discovered profiles")
	}
	return count, nil
}

// NextURLsToEnrich returns up to limit discovered profiles, oldest update first
func (db *DB) NextURLsToEnrich(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT public_identifier FROM profiles
		WHERE state = ?
		ORDER BY updated_at ASC, public_identifier ASC
		LIMIT ?
	`, StateDiscovered, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query next profiles")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan public identifier")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate next profiles")
}

// CountByState returns the number of profiles in each state
func (db *DB) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT state, COUNT(*) FROM profiles GROUP BY state`)
	if err != nil {
		return nil, errors.Wrap(err, "count by state")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, errors.Wrap(err, "scan state count")
		}
		counts[state] = n
	}
	return counts, errors.Wrap(rows.Err(), "iterate state counts")
}

// ListUnsynced returns enriched profiles not yet exported, oldest update
// first. A limit of zero or less returns all of them.
func (db *DB) ListUnsynced(ctx context.Context, limit int) ([]*Profile, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE profile IS NOT NULL AND cloud_synced = 0
		ORDER BY updated_at ASC, public_identifier ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query unsynced profiles")
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, errors.Wrap(rows.Err(), "iterate unsynced profiles")
}

// MarkSynced flags a profile as exported and bumps updated_at
func (db *DB) MarkSynced(ctx context.Context, publicID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE profiles SET cloud_synced = 1, updated_at = ? WHERE public_identifier = ?`,
		db.now(), publicID)
	if err != nil {
		return errors.Wrapf(err, "mark %s synced", publicID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var profile, data sql.NullString
	err := row.Scan(&p.PublicIdentifier, &p.State, &profile, &data,
		&p.CloudSynced, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if profile.Valid {
		p.Profile = json.RawMessage(profile.String)
	}
	if data.Valid {
		p.Data = json.RawMessage(data.String)
	}
	return &p, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

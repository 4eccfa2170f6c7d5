package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tracker/internal/game/encounter"
	"github.com/cory-johannsen/tracker/internal/game/savedencounter"
)

// ErrSavedEncounterNotFound is returned when a saved encounter lookup yields no results.
var ErrSavedEncounterNotFound = savedencounter.ErrNotFound

// SavedEncounterRepository stores encounter snapshots as JSONB. It implements
// savedencounter.Store.
type SavedEncounterRepository struct {
	db *pgxpool.Pool
}

var _ savedencounter.Store = (*SavedEncounterRepository)(nil)

// NewSavedEncounterRepository creates a repository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSavedEncounterRepository(db *pgxpool.Pool) *SavedEncounterRepository {
	return &SavedEncounterRepository{db: db}
}

// Save implements savedencounter.Store, replacing any entry with the same name.
func (r *SavedEncounterRepository) Save(ctx context.Context, name string, state encounter.State) error {
	if err := savedencounter.ValidateName(name); err != nil {
		return err
	}
	state.Name = name
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding encounter state: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO saved_encounters (name, state, saved_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state, saved_at = EXCLUDED.saved_at`,
		name, raw,
	)
	if err != nil {
		return fmt.Errorf("saving encounter: %w", err)
	}
	return nil
}

// Get implements savedencounter.Store.
//
// Postcondition: Returns the entry or an error wrapping ErrSavedEncounterNotFound.
func (r *SavedEncounterRepository) Get(ctx context.Context, name string) (*savedencounter.Entry, error) {
	e, err := scanSavedEncounter(r.db.QueryRow(ctx,
		`SELECT name, state, saved_at FROM saved_encounters WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", name, ErrSavedEncounterNotFound)
		}
		return nil, fmt.Errorf("querying saved encounter: %w", err)
	}
	return e, nil
}

// List implements savedencounter.Store.
func (r *SavedEncounterRepository) List(ctx context.Context) ([]savedencounter.Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT name, state, saved_at FROM saved_encounters ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing saved encounters: %w", err)
	}
	defer rows.Close()

	entries := make([]savedencounter.Entry, 0)
	for rows.Next() {
		e, err := scanSavedEncounter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning saved encounter row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanSavedEncounter(row rowScanner) (*savedencounter.Entry, error) {
	var (
		e   savedencounter.Entry
		raw []byte
	)
	if err := row.Scan(&e.Name, &raw, &e.SavedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &e.State); err != nil {
		return nil, fmt.Errorf("decoding saved encounter %q: %w", e.Name, err)
	}
	return &e, nil
}

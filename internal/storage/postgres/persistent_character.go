package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tracker/internal/game/persistent"
)

// PersistentCharacterRepository stores persistent characters. It implements
// persistent.Store.
type PersistentCharacterRepository struct {
	db *pgxpool.Pool
}

var _ persistent.Store = (*PersistentCharacterRepository)(nil)

// NewPersistentCharacterRepository creates a repository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPersistentCharacterRepository(db *pgxpool.Pool) *PersistentCharacterRepository {
	return &PersistentCharacterRepository{db: db}
}

const persistentCharacterColumns = `id, version, name, path, current_hp, notes, stat_block, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersistentCharacter(row rowScanner) (*persistent.Character, error) {
	var (
		c  persistent.Character
		sb []byte
	)
	if err := row.Scan(&c.ID, &c.Version, &c.Name, &c.Path, &c.CurrentHP, &c.Notes, &sb, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sb, &c.StatBlock); err != nil {
		return nil, fmt.Errorf("decoding stat block of %q: %w", c.ID, err)
	}
	return &c, nil
}

// Get implements persistent.Store.
//
// Postcondition: Returns the character or an error wrapping persistent.ErrNotFound.
func (r *PersistentCharacterRepository) Get(ctx context.Context, id string) (*persistent.Character, error) {
	c, err := scanPersistentCharacter(r.db.QueryRow(ctx,
		`SELECT `+persistentCharacterColumns+` FROM persistent_characters WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", persistent.ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying persistent character: %w", err)
	}
	return c, nil
}

// List implements persistent.Store.
func (r *PersistentCharacterRepository) List(ctx context.Context) ([]*persistent.Character, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+persistentCharacterColumns+` FROM persistent_characters ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing persistent characters: %w", err)
	}
	defer rows.Close()

	chars := make([]*persistent.Character, 0)
	for rows.Next() {
		c, err := scanPersistentCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning persistent character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// AddNewPersistentCharacter implements persistent.Store.
//
// Postcondition: c.ID and c.UpdatedAt are set on success; a taken ID returns
// an error wrapping persistent.ErrExists.
func (r *PersistentCharacterRepository) AddNewPersistentCharacter(ctx context.Context, c *persistent.Character) error {
	if c == nil {
		return fmt.Errorf("AddNewPersistentCharacter: character must not be nil")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Version == "" {
		c.Version = persistent.CurrentVersion
	}
	sb, err := json.Marshal(c.StatBlock)
	if err != nil {
		return fmt.Errorf("encoding stat block: %w", err)
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO persistent_characters (id, version, name, path, current_hp, notes, stat_block)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING updated_at`,
		c.ID, c.Version, c.Name, c.Path, c.CurrentHP, c.Notes, sb,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %q", persistent.ErrExists, c.ID)
		}
		return fmt.Errorf("inserting persistent character: %w", err)
	}
	return nil
}

// UpdatePersistentCharacter implements persistent.Updater. The row is locked
// for the read-modify-write so concurrent HP updates do not interleave.
//
// Postcondition: Returns an error wrapping persistent.ErrNotFound when id is unknown.
func (r *PersistentCharacterRepository) UpdatePersistentCharacter(ctx context.Context, id string, u persistent.Update) error {
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		c, err := scanPersistentCharacter(tx.QueryRow(ctx,
			`SELECT `+persistentCharacterColumns+` FROM persistent_characters WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %q", persistent.ErrNotFound, id)
			}
			return fmt.Errorf("locking persistent character: %w", err)
		}
		u.Apply(c, time.Now().UTC())

		sb, err := json.Marshal(c.StatBlock)
		if err != nil {
			return fmt.Errorf("encoding stat block: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE persistent_characters
			SET name = $2, current_hp = $3, notes = $4, stat_block = $5, updated_at = $6
			WHERE id = $1`,
			c.ID, c.Name, c.CurrentHP, c.Notes, sb, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("updating persistent character: %w", err)
		}
		return nil
	})
}

// Delete implements persistent.Store.
func (r *PersistentCharacterRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM persistent_characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting persistent character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", persistent.ErrNotFound, id)
	}
	return nil
}

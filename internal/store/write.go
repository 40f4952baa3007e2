package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/afairgiant/medikeep/internal/record"
)

// DefaultIDField is the record key holding a record's id.
const DefaultIDField = "id"

// ImportOptions controls Import.
type ImportOptions struct {
	// IDField is the top-level key holding each record's id. Empty means
	// DefaultIDField. Records without one get a generated id written to
	// this key.
	IDField string

	// NewID generates ids for records that have none. Nil means UUIDv7.
	NewID func() string

	// Replace deletes the collection's existing records first.
	Replace bool
}

// ImportResult counts what Import did with each input record.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// NewRecordID returns a time-ordered UUIDv7 string.
func NewRecordID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Import writes records into collection in one transaction.
//
// Records are keyed by id. An input record whose content fingerprint
// already exists in the collection is skipped, so importing the same file
// twice is a no-op even for records without ids. A record whose id exists
// with different content replaces the stored body and keeps its position.
// New records are appended after the current last record.
//
// Input records are never modified; generated ids are set on a copy.
func (s *Store) Import(ctx context.Context, collection string, records []record.Record, opts ImportOptions) (ImportResult, error) {
	var result ImportResult
	if strings.TrimSpace(collection) == "" {
		return result, errors.New("import: collection name is required")
	}
	idField := opts.IDField
	if idField == "" {
		idField = DefaultIDField
	}
	newID := opts.NewID
	if newID == nil {
		newID = NewRecordID
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if opts.Replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
				return fmt.Errorf("import: clear collection: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collections (name, id_field) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET id_field = excluded.id_field
		`, collection, idField); err != nil {
			return fmt.Errorf("import: register collection: %w", err)
		}

		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM records WHERE collection = ?`, collection,
		).Scan(&seq); err != nil {
			return fmt.Errorf("import: read last seq: %w", err)
		}

		for i, r := range records {
			outcome, err := importOne(ctx, tx, collection, idField, r, newID, seq+1)
			if err != nil {
				return fmt.Errorf("import: record %d: %w", i, err)
			}
			switch outcome {
			case inserted:
				result.Inserted++
				seq++
			case updated:
				result.Updated++
			case skipped:
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

type importOutcome int

const (
	inserted importOutcome = iota
	updated
	skipped
)

func importOne(ctx context.Context, tx *sql.Tx, collection, idField string, r record.Record, newID func() string, nextSeq int64) (importOutcome, error) {
	hash, err := record.Fingerprint(r)
	if err != nil {
		return 0, err
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE collection = ? AND content_hash = ? LIMIT 1`,
		collection, hash,
	).Scan(&exists)
	if err == nil {
		return skipped, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check fingerprint: %w", err)
	}

	id, ok := record.String(r[idField])
	if !ok || id == "" {
		id = newID()
		r = maps.Clone(r)
		if r == nil {
			r = record.Record{}
		}
		r[idField] = id
	}

	body, err := marshalBody(r)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE records SET content_hash = ?, body = ?
		WHERE collection = ? AND id = ?
	`, hash, body, collection, id)
	if err != nil {
		return 0, fmt.Errorf("update record %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return updated, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO records (collection, id, seq, content_hash, body)
		VALUES (?, ?, ?, ?, ?)
	`, collection, id, nextSeq, hash, body); err != nil {
		return 0, fmt.Errorf("insert record %q: %w", id, err)
	}
	return inserted, nil
}

// DeleteCollection removes a collection and its records. Returns the number
// of records removed.
func (s *Store) DeleteCollection(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection)
		if err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		n, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, collection); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		return nil
	})
	return n, err
}

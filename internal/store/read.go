package store

import (
	"context"
	"fmt"

	"github.com/afairgiant/medikeep/internal/record"
)

// Collection summarizes one imported collection.
type Collection struct {
	Name    string `json:"name"`
	IDField string `json:"id_field"`
	Count   int    `json:"count"`
}

// Load returns every record of collection in import order.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for an unknown or empty collection.
func (s *Store) Load(ctx context.Context, collection string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM records
		WHERE collection = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r, err := unmarshalBody(body)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Collections lists every collection with its record count, by name.
func (s *Store) Collections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.id_field, COUNT(r.id)
		FROM collections c
		LEFT JOIN records r ON r.collection = c.name
		GROUP BY c.name, c.id_field
		ORDER BY c.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	collections := []Collection{}
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.IDField, &c.Count); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

// Snapshot loads a collection together with the fingerprint of its
// ordered contents. Equal fingerprints mean identical record lists.
func (s *Store) Snapshot(ctx context.Context, collection string) ([]record.Record, string, error) {
	records, err := s.Load(ctx, collection)
	if err != nil {
		return nil, "", err
	}
	fp, err := record.ViewFingerprint(records)
	if err != nil {
		return nil, "", err
	}
	return records, fp, nil
}

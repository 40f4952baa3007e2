package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/afairgiant/medikeep/internal/record"
)

// marshalBody converts a record to canonical JSON TEXT for storage.
// Canonical form makes stored bodies byte-identical for equal content.
func marshalBody(r record.Record) (string, error) {
	data, err := record.MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses a stored body. Numbers decode as float64, matching
// record.DecodeJSON, so records read from a file and from the store compare
// and sort identically.
func unmarshalBody(data string) (record.Record, error) {
	var r record.Record
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	if r == nil {
		r = record.Record{}
	}
	return r, nil
}

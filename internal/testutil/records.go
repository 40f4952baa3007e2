package testutil

import (
	"testing"
	"time"

	"github.com/afairgiant/medikeep/internal/record"
)

// IDs returns the value of field for each record, rendered as a string.
// Records without the field contribute "".
func IDs(records []record.Record, field string) []string {
	if field == "" {
		field = "id"
	}
	out := make([]string, len(records))
	for i, r := range records {
		v, _ := r.Get(field)
		out[i], _ = record.String(v)
	}
	return out
}

// MustTime parses an RFC 3339 timestamp or fails the test.
func MustTime(t testing.TB, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

// Records builds records from plain maps. Each map is shallow-copied so tests
// can reuse literals.
func Records(maps ...map[string]any) []record.Record {
	out := make([]record.Record, len(maps))
	for i, m := range maps {
		r := make(record.Record, len(m))
		for k, v := range m {
			r[k] = v
		}
		out[i] = r
	}
	return out
}

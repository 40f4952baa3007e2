package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/afairgiant/medikeep/internal/record"
)

func TestIDs(t *testing.T) {
	records := []record.Record{
		{"id": "a"},
		{"id": 7},
		{"name": "no id"},
		{"meta": map[string]any{"key": "k1"}},
	}

	assert.Equal(t, []string{"a", "7", "", ""}, IDs(records, ""))
	assert.Equal(t, []string{"", "", "", "k1"}, IDs(records, "meta.key"))
	assert.Empty(t, IDs(nil, "id"))
}

func TestMustTime(t *testing.T) {
	got := MustTime(t, "2024-03-09T12:00:00Z")
	assert.Equal(t, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), got)
}

func TestRecords_CopiesInput(t *testing.T) {
	src := map[string]any{"id": "a"}
	out := Records(src)

	out[0]["id"] = "b"

	assert.Equal(t, "a", src["id"])
	assert.Len(t, out, 1)
}

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestF_TopLevelField(t *testing.T) {
	r := Record{"medication_name": "Amoxicillin"}

	v, ok := F("medication_name").Get(r)
	require.True(t, ok)
	assert.Equal(t, "Amoxicillin", v)
}

func TestF_NestedPath(t *testing.T) {
	r := Record{
		"prescriber": map[string]any{
			"name": "Dr. Chen",
			"practice": Record{
				"city": "Portland",
			},
		},
	}

	v, ok := F("prescriber.name").Get(r)
	require.True(t, ok)
	assert.Equal(t, "Dr. Chen", v)

	v, ok = F("prescriber.practice.city").Get(r)
	require.True(t, ok)
	assert.Equal(t, "Portland", v)
}

func TestF_ArrayIndex(t *testing.T) {
	r := Record{
		"codes": []any{
			map[string]any{"display": "first"},
			map[string]any{"display": "second"},
		},
	}

	v, ok := F("codes.1.display").Get(r)
	require.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok = F("codes.5.display").Get(r)
	assert.False(t, ok, "out of range index is absent")

	_, ok = F("codes.x.display").Get(r)
	assert.False(t, ok, "non-numeric index is absent")
}

func TestF_AbsentValues(t *testing.T) {
	r := Record{
		"nothing": nil,
		"scalar":  "text",
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing key", "missing"},
		{"nil value", "nothing"},
		{"walk through scalar", "scalar.child"},
		{"missing nested", "missing.child"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := F(tt.path).Get(r)
			assert.False(t, ok)
			assert.Nil(t, v)
		})
	}
}

func TestF_EmptyPathIsZero(t *testing.T) {
	f := F("  ")
	assert.True(t, f.IsZero())

	_, ok := f.Get(Record{"": "x"})
	assert.False(t, ok)
}

func TestField_NilRecord(t *testing.T) {
	_, ok := F("name").Get(nil)
	assert.False(t, ok)
}

func TestFieldFunc(t *testing.T) {
	upper := FieldFunc("initial", func(r Record) (any, bool) {
		name, ok := r["name"].(string)
		if !ok || name == "" {
			return nil, false
		}
		return name[:1], true
	})

	assert.Equal(t, "initial", upper.Name())
	assert.False(t, upper.IsZero())

	v, ok := upper.Get(Record{"name": "Lisinopril"})
	require.True(t, ok)
	assert.Equal(t, "L", v)

	_, ok = upper.Get(Record{})
	assert.False(t, ok)

	assert.True(t, FieldFunc("nil", nil).IsZero())
}

func TestFields_SkipsEmpty(t *testing.T) {
	fields := Fields("name", "", "notes.text")
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Name())
	assert.Equal(t, "notes.text", fields[1].Name())
}

func TestRecordGet(t *testing.T) {
	r := Record{"a": map[string]any{"b": 3}}
	v, ok := r.Get("a.b")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

package record

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"integral float", float64(3), "3"},
		{"fraction", 0.5, "0.5"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", Record{}, "{}"},
		{"nested", Record{"a": []any{1, "x", nil}}, `{"a":[1,"x",null]}`},
		{"string map", map[string]string{"status": "all", "search": ""}, `{"search":"","status":"all"}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"time", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), `"2024-03-01T00:00:00Z"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	result, err := MarshalCanonical(Record{"zebra": 1, "alpha": 2, "beta": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FF61
	// in UTF-16 even though its UTF-8 bytes sort after.
	result, err := MarshalCanonical(map[string]any{"\uFF61": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFF61\":1}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// Literal backslash followed by "u2028" text stays escaped.
	result, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(math.Inf(1))
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)

	_, err = MarshalCanonical(Record{"bad": struct{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	a, err := Fingerprint(Record{"id": "1", "name": "x"})
	require.NoError(t, err)
	b, err := Fingerprint(Record{"name": "x", "id": "1"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Fingerprint(Record{"name": "y", "id": "1"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestViewFingerprint_OrderSensitive(t *testing.T) {
	r1 := Record{"id": "1"}
	r2 := Record{"id": "2"}

	a, err := ViewFingerprint([]Record{r1, r2})
	require.NoError(t, err)
	b, err := ViewFingerprint([]Record{r2, r1})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecodeJSON(t *testing.T) {
	records, err := DecodeJSON(bytes.NewBufferString(`[{"id":"a","dose":5},{"id":"b","tags":["x"]}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0]["id"])
	assert.Equal(t, float64(5), records[0]["dose"])
	assert.Equal(t, []any{"x"}, records[1]["tags"])
}

func TestDecodeJSON_NotArray(t *testing.T) {
	_, err := DecodeJSON(bytes.NewBufferString(`{"id":"a"}`))
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	input := `
- id: a
  status: active
  prescriber:
    name: Dr. Chen
- id: b
  status: stopped
`
	records, err := DecodeYAML(bytes.NewBufferString(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	v, ok := F("prescriber.name").Get(records[0])
	require.True(t, ok)
	assert.Equal(t, "Dr. Chen", v)
}

func TestDecodeYAML_Empty(t *testing.T) {
	records, err := DecodeYAML(bytes.NewBufferString(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "meds.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"a"}]`), 0644))
	records, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	yamlPath := filepath.Join(dir, "meds.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- id: a\n- id: b\n"), 0644))
	records, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	csvPath := filepath.Join(dir, "meds.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id\na\n"), 0644))
	_, err = Load(csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported records file extension")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValidSpecs(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), specsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 1 view(s)")
	assert.Contains(t, out, "medications: 2 filter key(s), 2 sort option(s), default medication_name asc")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), specsDir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Views, 1)

	v := resp.Data.Views[0]
	assert.Equal(t, "medications", v.Name)
	assert.Equal(t, "Medication list", v.Description)
	assert.Equal(t, []OptionSummary{
		{Value: "all", Label: "All"},
		{Value: "active", Label: "active"},
		{Value: "stopped", Label: "stopped"},
	}, v.Filters["status"])

	var ranges []string
	for _, o := range v.Filters["dateRange"] {
		ranges = append(ranges, o.Value)
	}
	assert.Equal(t, []string{"all", "current", "past"}, ranges)

	assert.Equal(t, []OptionSummary{
		{Value: "medication_name", Label: "Name"},
		{Value: "start_date", Label: "Start Date", Order: "desc"},
	}, v.SortOptions)
	assert.Equal(t, "medication_name", v.DefaultSort.SortBy)
	assert.Equal(t, "asc", string(v.DefaultSort.SortOrder))
}

func TestCompileCustomFilters(t *testing.T) {
	specsDir := writeSpecs(t, `package specs

view: allergies: {
	filter: {
		search: ["allergen"]
		custom: {
			reaction: {matches: "reaction"}
			severe: {equals: {field: "severity", value: "severe"}}
		}
	}
}
`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), specsDir)
	require.NoError(t, err, out)

	var resp struct {
		Data CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Views, 1)
	assert.Equal(t, []string{"reaction", "severe"}, resp.Data.Views[0].CustomFilters)
	assert.Empty(t, resp.Data.Views[0].Filters)
}

func TestCompileOutputFile(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)
	outPath := filepath.Join(t.TempDir(), "catalog.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), specsDir, "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote view catalog to "+outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var catalog CompilationResult
	require.NoError(t, json.Unmarshal(data, &catalog))
	require.Len(t, catalog.Views, 1)
	assert.Equal(t, "medications", catalog.Views[0].Name)
}

func TestCompileOutputFileUnwritable(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)

	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), specsDir, "-o", "/nonexistent/dir/catalog.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeWriteFailed)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileStructuralError(t *testing.T) {
	specsDir := writeSpecs(t, `package specs

view: labs: {
	sort: {bogus: true}
}
`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), specsDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, ErrCodeSortField)
}

func TestCompileValidationErrorJSON(t *testing.T) {
	specsDir := writeSpecs(t, badSortTypeSpec)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), specsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E210", resp.Error.Code)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"filter", ErrCodeFilterField},
		{"filter.custom.allergen", ErrCodeFilterField},
		{"sort.options[0]", ErrCodeSortField},
		{"view.bogus", ErrCodeViewField},
		{"timezone", ErrCodeViewField},
		{"something", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afairgiant/medikeep/internal/compiler"
)

const badSortTypeSpec = `package specs

view: labs: {
	filter: search: ["test_name"]
	sort: {
		default: {by: "value"}
		types: {value: "weird"}
	}
}
`

func TestValidateValidSpecs(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All views valid (1)")
	assert.NotContains(t, out, "warning")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), specsDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"medications"}, resp.Data.Views)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateSyntaxError(t *testing.T) {
	specsDir := writeSpecs(t, "package specs\n\nview: {\n")

	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E004")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateNoViews(t *testing.T) {
	specsDir := writeSpecs(t, "package specs\n\nother: 1\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E008")
}

func TestValidateInvalidSpec(t *testing.T) {
	specsDir := writeSpecs(t, badSortTypeSpec)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E210")
	assert.Contains(t, out, "labs.sort.types.value")
}

func TestValidateInvalidSpecJSON(t *testing.T) {
	specsDir := writeSpecs(t, badSortTypeSpec)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), specsDir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownSortType, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
}

func TestValidateCompileError(t *testing.T) {
	specsDir := writeSpecs(t, `package specs

view: labs: {
	bogus: 1
}
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeViewField)
	assert.Contains(t, out, "unknown field")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	specsDir := writeSpecs(t, `package specs

view: a: {
	filter: search: ["name"]
	sort: types: {x: "weird"}
}
view: b: {
	filter: search: ["name"]
	sort: default: {by: "name", order: "sideways"}
}
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, out, compiler.ErrUnknownSortType)
	assert.Contains(t, out, compiler.ErrInvalidDirection)
}

func TestValidateWarnings(t *testing.T) {
	specsDir := writeSpecs(t, `package specs

view: notes: {
	sort: default: {by: "created_at", order: "desc"}
}
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.NoError(t, err, "warnings never fail validation")
	assert.Contains(t, out, "✓ All views valid (1)")
	assert.Contains(t, out, "warning: notes: filter.search")
}

func TestValidateVerbose(t *testing.T) {
	specsDir := writeSpecs(t, medicationsSpec)

	cmd := NewValidateCommand(&RootOptions{Format: "json", Verbose: true})
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{specsDir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "Validating view: medications")
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp), "verbose output must not corrupt JSON")
}

func TestValidateSpecsDir(t *testing.T) {
	errs, err := ValidateSpecsDir(writeSpecs(t, medicationsSpec), nil)
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = ValidateSpecsDir(writeSpecs(t, badSortTypeSpec), nil)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, compiler.ErrUnknownSortType, errs[0].Code)

	_, err = ValidateSpecsDir("/nonexistent/directory/path", nil)
	require.Error(t, err)
}

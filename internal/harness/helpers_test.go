package harness

import (
	"os"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/require"

	"github.com/afairgiant/medikeep/internal/compiler"
)

// compileViews builds every view in src against reg.
func compileViews(t *testing.T, src string, reg *compiler.Registry) map[string]*compiler.View {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())

	defs, errs := compiler.CompileViews(v)
	require.Empty(t, errs)
	views, errs := compiler.BuildAll(defs, reg)
	require.Empty(t, errs)
	return views
}

// testViews loads testdata/views.cue.
func testViews(t *testing.T) map[string]*compiler.View {
	t.Helper()
	src, err := os.ReadFile("testdata/views.cue")
	require.NoError(t, err)
	return compileViews(t, string(src), compiler.NewRegistry())
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

// medicationRecords is a small inline record set for programmatic scenarios.
func medicationRecords() []map[string]any {
	return []map[string]any{
		{"id": "m1", "medication_name": "Lisinopril", "status": "active"},
		{"id": "m2", "medication_name": "Metformin", "status": "active"},
		{"id": "m3", "medication_name": "Amoxicillin", "status": "stopped"},
	}
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const medicationsSpec = `package specs

view: medications: {
	description: "Medication list"
	filter: {
		search: ["medication_name"]
		status: {
			field: "status"
			options: ["active", "stopped"]
		}
		dateRange: {
			start:   "start_date"
			end:     "end_date"
			options: ["current", "past"]
		}
	}
	sort: {
		default: {by: "medication_name", order: "asc"}
		options: [
			{value: "medication_name", label: "Name"},
			{value: "start_date", label: "Start Date", order: "desc"},
		]
		types: {
			medication_name: "string"
			start_date:      "date"
		}
	}
}
`

const medicationsYAML = `- id: m1
  medication_name: Metformin
  status: active
  start_date: "2024-01-10"
- id: m2
  medication_name: amoxicillin
  status: stopped
  start_date: "2023-05-01"
  end_date: "2023-05-10"
- id: m3
  medication_name: Lisinopril
  status: active
  start_date: "2024-03-01"
`

// writeFile writes content to dir/name, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeSpecs creates a specs directory holding one CUE file.
func writeSpecs(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "views.cue", src)
	return dir
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordLines returns the lines of view text output that hold records.
func recordLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "{") {
			lines = append(lines, line)
		}
	}
	return lines
}

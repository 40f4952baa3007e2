package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Collection string
	IDField    string
	Replace    bool
}

// ImportSummary is the JSON payload of the import command.
type ImportSummary struct {
	Collection string `json:"collection"`
	File       string `json:"file"`
	store.ImportResult
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import records into a database collection",
		Long: `Import a JSON or YAML array of records into a collection of a
SQLite database, creating the database if needed.

Records are matched by id. Records without an id get a generated one.
Importing the same file twice changes nothing.

Examples:
  medikeep import --db records.db --collection medications meds.yaml
  medikeep import --db records.db --collection labs --id-field lab_id labs.json
  medikeep import --db records.db --collection medications --replace meds.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection name (required)")
	_ = cmd.MarkFlagRequired("collection")
	cmd.Flags().StringVar(&opts.IDField, "id-field", store.DefaultIDField, "record key holding the id")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "delete the collection's existing records first")

	return cmd
}

func runImport(opts *ImportOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	log := opts.logger()

	if opts.DB == "" {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "--db is required", nil)
	}

	records, err := record.Load(file)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRecords, err.Error(), nil)
	}
	formatter.VerboseLog("Read %d record(s) from %s", len(records), file)

	st, err := store.Open(opts.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := st.Import(ctx, opts.Collection, records, store.ImportOptions{
		IDField: opts.IDField,
		Replace: opts.Replace,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	log.Info().
		Str("collection", opts.Collection).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("records imported")

	summary := ImportSummary{Collection: opts.Collection, File: file, ImportResult: result}
	return formatter.Emit(summary, func(w io.Writer) error {
		fmt.Fprintf(w, "✓ Imported %d record(s) into %s (inserted %d, updated %d, skipped %d)\n",
			len(records), opts.Collection, result.Inserted, result.Updated, result.Skipped)
		return nil
	})
}

// checkFileExists reports a missing path as an error rather than letting
// SQLite create it.
func checkFileExists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("database not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error accessing database: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("not a database file: %s", path)
	}
	return nil
}

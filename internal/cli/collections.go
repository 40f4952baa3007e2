package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/afairgiant/medikeep/internal/store"
)

// CollectionsOptions holds flags for the collections command.
type CollectionsOptions struct {
	*RootOptions
	Delete string // collection to delete
}

// CollectionsResult is the JSON payload of the collections command.
type CollectionsResult struct {
	Collections []store.Collection `json:"collections"`
	Deleted     string             `json:"deleted,omitempty"`
	Removed     int64              `json:"removed,omitempty"`
}

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections in a database",
		Long: `List the record collections stored in a database with their id
field and record count.

Examples:
  medikeep collections --db records.db
  medikeep collections --db records.db --delete labs
  medikeep collections --db records.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollections(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete a collection and its records")

	return cmd
}

func runCollections(opts *CollectionsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.DB == "" {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "--db is required", nil)
	}
	st, err := openExistingStore(opts.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result CollectionsResult
	if opts.Delete != "" {
		n, err := st.DeleteCollection(ctx, opts.Delete)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		result.Deleted = opts.Delete
		result.Removed = n
		log := opts.logger()
		log.Info().Str("collection", opts.Delete).Int64("removed", n).Msg("collection deleted")
	}

	result.Collections, err = st.Collections(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if result.Collections == nil {
		result.Collections = []store.Collection{}
	}

	return formatter.Emit(result, func(w io.Writer) error {
		if result.Deleted != "" {
			fmt.Fprintf(w, "✓ Deleted %s (%d record(s))\n", result.Deleted, result.Removed)
		}
		if len(result.Collections) == 0 {
			fmt.Fprintln(w, "No collections.")
			return nil
		}
		for _, c := range result.Collections {
			fmt.Fprintf(w, "%s\t%d record(s)\tid: %s\n", c.Name, c.Count, c.IDField)
		}
		return nil
	})
}

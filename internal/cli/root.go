package cli

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afairgiant/medikeep/internal/compiler"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogLevel   string
	ConfigFile string

	// Shared by subcommands; resolved through LoadSettings before RunE.
	DB     string
	Now    string
	Locale string

	// Registry resolves the named predicates, comparators and search
	// functions that view specs reference. Nil means an empty registry.
	Registry *compiler.Registry

	// Logger is set by the root command. Nil means no logging.
	Logger *zerolog.Logger
}

func (o *RootOptions) registry() *compiler.Registry {
	if o.Registry == nil {
		return compiler.NewRegistry()
	}
	return o.Registry
}

func (o *RootOptions) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the medikeep CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so
// embedding programs can supply a Registry.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medikeep",
		Short: "Declarative filtering and sorting for medical record lists",
		Long: `medikeep filters and sorts medical record collections using
view specs written in CUE.

Settings can also come from MEDIKEEP_* environment variables or a
config file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applySettings(opts, cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))

	return cmd
}

// applySettings layers flags over environment and config file and builds
// the logger.
func applySettings(opts *RootOptions, cmd *cobra.Command) error {
	settings, err := LoadSettings(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	if !isValidFormat(settings.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", settings.Format, ValidFormats))
	}
	opts.Format = settings.Format
	opts.LogLevel = settings.LogLevel
	opts.DB = settings.DB
	opts.Now = settings.Now
	opts.Locale = settings.Locale

	logger, err := NewLogger(cmd.ErrOrStderr(), opts.Format, opts.LogLevel, opts.Verbose)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	logger = logger.With().Str("command", cmd.Name()).Logger()
	opts.Logger = &logger
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

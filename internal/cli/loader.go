package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/afairgiant/medikeep/internal/compiler"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading view specs from a directory.
type LoadResult struct {
	Defs      []*compiler.ViewDef
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads and compiles the CUE view specs in dir.
// If mode is LoadModeFailFast, returns on first compile error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil result means nothing could be loaded at all.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	defs, compileErrs := compiler.CompileViews(value)
	result.Defs = defs

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Defs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoViews, Message: "no views found in specs"})
	}
	return result, errs
}

// LoadViews loads the specs in dir and builds every view against reg.
// Any load, compile or validation error fails the whole load.
func LoadViews(dir string, reg *compiler.Registry) (map[string]*compiler.View, error) {
	result, errs := LoadSpecs(dir, LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	views, errs := compiler.BuildAll(result.Defs, reg)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return views, nil
}

// loadExitCode classifies a LoadViews error: specs that could not be read
// at all are a command error, specs that were read but are invalid are a
// failure.
func loadExitCode(err error) int {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		switch loadErr.Code {
		case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles, ErrCodeLoadFailed:
			return ExitCommandError
		}
	}
	return ExitFailure
}

// loadErrorCode returns the code of the first LoadError in err, or the
// code of the first validation error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code
	}
	return ErrCodeGeneric
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
// Semantic validation codes (E2xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoViews     = "E008" // Specs define no views

	// Structural errors found while compiling a view
	ErrCodeViewField   = "E101" // Unknown or mistyped top-level view field
	ErrCodeFilterField = "E102" // Malformed filter section
	ErrCodeSortField   = "E103" // Malformed sort section

	// Runtime errors
	ErrCodeRecords = "E301" // Records could not be read
	ErrCodeStore   = "E302" // Database error
	ErrCodeView    = "E303" // Unknown view or bad view arguments
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "filter" || strings.HasPrefix(field, "filter."):
		return ErrCodeFilterField
	case field == "sort" || strings.HasPrefix(field, "sort."):
		return ErrCodeSortField
	case field == "view" || strings.HasPrefix(field, "view.") ||
		field == "description" || field == "timezone":
		return ErrCodeViewField
	default:
		return ErrCodeGeneric
	}
}

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

	"github.com/roach88/relstore/internal/compiler"
	"github.com/roach88/relstore/internal/model"
)

// LoadMode controls how errors are handled during model loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the models compiled from a directory.
type LoadResult struct {
	Specs     []compiler.ModelSpec
	CUEValue  cue.Value
	FileCount int
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModels loads the CUE package in dir and compiles every model under
// its top-level "model" struct.
func LoadModels(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("models directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing models directory: %v", err)}}
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

	root := ctx.BuildInstance(inst)
	if err := root.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  root,
		FileCount: len(cueFiles),
	}

	models := root.LookupPath(cue.ParsePath("model"))
	if !models.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no models found"}}
	}
	iter, err := models.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating models: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		spec, err := compiler.CompileModel(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "model."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Specs = append(result.Specs, *spec)
	}

	if len(result.Specs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no models found"})
	}
	return result, errs
}

// BuildRegistry loads dir and builds a validated registry for connection.
func BuildRegistry(dir, connection string) (*model.Registry, error) {
	result, errs := LoadModels(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return compiler.Build(result.Specs, connection)
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
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants shared by every command. Model validation codes
// (E101 and up) come from the compiler.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadInput    = "E008" // Unreadable data, where or flag value
	ErrCodeStore       = "E009" // Database open, read or write failed
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "primaryKey":
		return compiler.ErrEmptyPrimaryKey
	case strings.HasSuffix(field, ".fields"):
		return compiler.ErrNoFields
	case strings.HasSuffix(field, ".type"):
		return compiler.ErrUnknownFieldType
	default:
		return ErrCodeGeneric
	}
}

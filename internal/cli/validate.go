package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relstore/internal/compiler"
)

// ValidationResult holds validation results. Cycles are informational and
// never make a model set invalid.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.CycleInfo       `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <models-dir>",
		Short: "Validate model definitions",
		Long: `Validate CUE model definitions without printing the schema.

Checks CUE syntax, field types, required relation keys, primary keys and
that every relation target is defined. All errors are reported, not just
the first one. Relation cycles are listed as information.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, modelsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadModels(modelsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, modelsDir)

	validationErrors := loadErrorsToValidation(loadErrors)
	for _, spec := range loadResult.Specs {
		formatter.VerboseLog("Validating model: %s", spec.Entity)
	}
	validationErrors = append(validationErrors, compiler.Validate(loadResult.Specs)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	reg, err := compiler.Build(loadResult.Specs, opts.Connection)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}
	return outputValidateSuccess(formatter, len(loadResult.Specs), compiler.AnalyzeCycles(reg))
}

func loadErrorsToValidation(errs []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range errs {
		code, message := parseCompileError(err)
		ve := compiler.ValidationError{Field: "load", Message: message, Code: code}
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			ve.Line = loadErr.Pos.Line()
		}
		out = append(out, ve)
	}
	return out
}

func outputValidateSuccess(formatter *OutputFormatter, models int, cycles []compiler.CycleInfo) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Cycles: cycles})
	}

	fmt.Fprintf(formatter.Writer, "✓ All models valid (%d model(s))\n", models)
	for _, c := range cycles {
		fmt.Fprintf(formatter.Writer, "  info: %s\n", c.Message)
	}
	return nil
}

// outputValidationErrors outputs validation errors and returns exit code 1.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateModelsDir validates every model in a directory without output.
func ValidateModelsDir(modelsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadModels(modelsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	errs := loadErrorsToValidation(loadErrors)
	return append(errs, compiler.Validate(loadResult.Specs)...), nil
}

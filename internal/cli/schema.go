package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relstore/internal/compiler"
	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/value"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Output string // output file path
}

// SchemaResult describes the compiled models.
type SchemaResult struct {
	Models []SchemaModel        `json:"models"`
	Cycles []compiler.CycleInfo `json:"cycles,omitempty"`
}

// SchemaModel describes one model.
type SchemaModel struct {
	Entity     string        `json:"entity"`
	PrimaryKey []string      `json:"primaryKey"`
	Fields     []SchemaField `json:"fields"`
}

// SchemaField describes one field. Targets lists the entities a relation
// refers to, pivots and through models included.
type SchemaField struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Targets []string        `json:"targets,omitempty"`
	Default json.RawMessage `json:"default,omitempty"` // canonical JSON
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <models-dir>",
		Short: "Compile CUE models and print the schema",
		Long: `Compile the CUE model definitions in a directory, build the model
registry and print every model with its fields, relation targets and
relation cycles.

Example:
  relstore schema ./models
  relstore schema ./models --format json -o schema.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runSchema(opts *SchemaOptions, modelsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadModels(modelsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, modelsDir)
	for _, spec := range loadResult.Specs {
		formatter.VerboseLog("Compiling model: %s", spec.Entity)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	reg, err := compiler.Build(loadResult.Specs, opts.Connection)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}

	result := describeSchema(loadResult.Specs, reg)

	if opts.Output != "" {
		if err := writeSchemaFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), err)
		}
	}

	return outputSchema(formatter, result, opts.Output)
}

// describeSchema pairs the compiled specs with the relation targets the
// registry resolved.
func describeSchema(specs []compiler.ModelSpec, reg *model.Registry) *SchemaResult {
	result := &SchemaResult{
		Models: make([]SchemaModel, 0, len(specs)),
		Cycles: compiler.AnalyzeCycles(reg),
	}

	for _, spec := range specs {
		m, err := reg.Model(spec.Entity)
		if err != nil {
			continue
		}
		sm := SchemaModel{
			Entity:     spec.Entity,
			PrimaryKey: m.PrimaryKey(),
			Fields:     make([]SchemaField, 0, len(spec.Fields)),
		}
		for _, f := range spec.Fields {
			field := SchemaField{Name: f.Name, Type: f.Type}
			if f.Default != nil {
				if def, err := value.MarshalCanonical(f.Default); err == nil {
					field.Default = def
				}
			}
			if rel, ok := m.Relation(f.Name); ok {
				field.Targets = model.Targets(rel)
			}
			sm.Fields = append(sm.Fields, field)
		}
		result.Models = append(result.Models, sm)
	}
	return result
}

func outputSchema(formatter *OutputFormatter, result *SchemaResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d model(s)\n\n", len(result.Models))

	for _, m := range result.Models {
		fmt.Fprintf(w, "%s (%s)\n", m.Entity, strings.Join(m.PrimaryKey, ", "))
		for _, f := range m.Fields {
			switch {
			case len(f.Targets) > 0:
				fmt.Fprintf(w, "  %s: %s → %s\n", f.Name, f.Type, strings.Join(f.Targets, ", "))
			case f.Default != nil:
				fmt.Fprintf(w, "  %s: %s = %s\n", f.Name, f.Type, f.Default)
			default:
				fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Type)
			}
		}
		fmt.Fprintln(w)
	}

	if len(result.Cycles) > 0 {
		fmt.Fprintln(w, "Cycles:")
		for _, c := range result.Cycles {
			fmt.Fprintf(w, "  %s\n", c.Message)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote schema to %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors outputs every compile error and returns exit code 2.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

func writeSchemaFile(result *SchemaResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

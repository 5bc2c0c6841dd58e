package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/relstore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	Connection string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the relstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "relstore",
		Short: "relstore - normalized records with relations",
		Long: `Define models and their relations in CUE, normalize nested data into
flat keyed tables, persist them in SQLite and query them back with
relations resolved.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "relstore.db", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Connection, "connection", store.DefaultConnection, "connection namespace for tables")

	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Logger builds the command logger writing to w: a development logger at
// debug level with --verbose, a production JSON logger at warn level
// otherwise.
func (o *RootOptions) Logger(w io.Writer) *zap.Logger {
	if o.Verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel), zap.Development())
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.WarnLevel))
}

// formatter returns the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

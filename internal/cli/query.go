package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/relstore/internal/query"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where   []string // field=value, ANDed
	With    []string // relation paths to eager load
	OrderBy []string // field or -field
	Limit   int
	Offset  int
	First   bool
	Key     string // table key for Find
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <models-dir> <entity>",
		Short: "Query records with relations",
		Long: `Query the records of an entity stored in the database, optionally
filtered, ordered, paginated and with relations eager loaded.

Example:
  relstore query ./models users --db blog.db --with posts.comments
  relstore query ./models posts --where user_id=1 --order-by -votes --limit 5`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter field=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.With, "with", nil, "relations to load, dotted for nesting (repeatable)")
	cmd.Flags().StringSliceVar(&opts.OrderBy, "order-by", nil, "sort field, prefix with - for descending (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = no limit)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&opts.First, "first", false, "return only the first record, or null")
	cmd.Flags().StringVar(&opts.Key, "key", "", "return the record with this table key, or null")

	return cmd
}

func runQuery(opts *QueryOptions, modelsDir, entity string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	reg, err := BuildRegistry(modelsDir, opts.Connection)
	if err != nil {
		code, message := parseCompileError(err)
		return formatter.Fail(ExitCommandError, code, message, err)
	}
	if _, err := reg.Model(entity); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error(), err)
	}

	where, err := parseWhere(opts.Where)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error(), err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening database: %v", err), err)
	}
	defer st.Close()

	q := query.New(reg, st, reg.Connection(), entity, query.WithLogger(logger))
	for _, field := range sortedFields(where) {
		q.Where(field, where[field])
	}
	for _, field := range opts.OrderBy {
		if rest, ok := strings.CutPrefix(field, "-"); ok {
			q.OrderBy(rest, queryir.Desc)
		} else {
			q.OrderBy(field, queryir.Asc)
		}
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q.Offset(opts.Offset)
	}
	if len(opts.With) > 0 {
		q.With(opts.With...)
	}

	logger.Debug("query",
		zap.String("entity", entity),
		zap.Strings("with", opts.With),
		zap.String("database", opts.Database),
	)

	ctx := cmd.Context()
	if opts.First || opts.Key != "" {
		var rec value.Object
		if opts.Key != "" {
			rec, err = q.Find(ctx, opts.Key)
		} else {
			rec, err = q.First(ctx)
		}
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, err.Error(), err)
		}
		if rec == nil {
			return formatter.Success(value.Null{})
		}
		return formatter.Success(rec)
	}

	rows, err := q.Get(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, err.Error(), err)
	}
	out := make(value.Array, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return formatter.Success(out)
}

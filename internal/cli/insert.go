package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/relstore/internal/action"
	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Op    string   // action operation
	Data  string   // data file; stdin when empty
	Key   string   // where: table key
	Where []string // where: field=value, ANDed
}

// InsertResult reports the records an operation wrote or removed.
type InsertResult struct {
	Op       string              `json:"op"`
	Entity   string              `json:"entity"`
	Seq      int64               `json:"seq"`
	Count    int                 `json:"count"`
	Entities map[string][]string `json:"entities"` // entity → keys
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <models-dir> <entity>",
		Short: "Write records to the database",
		Long: `Dispatch a mutation against the database. Nested data is normalized
into every related table in one operation.

Operations:
  create          replace every table the data touches
  insert          add records, replacing those with the same key (default)
  update          merge fields into existing records
  insertOrUpdate  merge into existing records and add new ones
  delete          remove records selected by --key or --where

Exit codes:
  0 - Operation applied
  1 - Operation rejected (invalid payload, unknown model)
  2 - Command error (invalid paths, database errors)

Example:
  relstore insert ./models users --db blog.db --data users.json
  relstore insert ./models posts --op update --where user_id=1 --data '-' < patch.json
  relstore insert ./models posts --op delete --key 10`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Op, "op", string(action.OpInsert), "operation: create|insert|update|insertOrUpdate|delete")
	cmd.Flags().StringVar(&opts.Data, "data", "", "data file (default stdin)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "select the record with this table key (update, delete)")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "select records with field=value (update, delete; repeatable)")

	return cmd
}

func runInsert(opts *InsertOptions, modelsDir, entity string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	op, err := action.ParseOp(opts.Op)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error(), err)
	}
	if opts.Key != "" && len(opts.Where) > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "--key and --where are mutually exclusive", nil)
	}

	reg, err := BuildRegistry(modelsDir, opts.Connection)
	if err != nil {
		code, message := parseCompileError(err)
		return formatter.Fail(ExitCommandError, code, message, err)
	}

	payload := action.Payload{}
	switch {
	case opts.Key != "":
		payload.Where = opts.Key
	case len(opts.Where) > 0:
		where, err := parseWhere(opts.Where)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error(), err)
		}
		payload.Where = wherePredicate(where)
	}
	if op != action.OpDelete {
		if payload.Data, err = readData(opts.Data, cmd.InOrStdin()); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error(), err)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening database: %v", err), err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d := action.New(reg, st, action.WithLogger(logger))
	go func() {
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()
	defer d.Stop()

	task := d.Dispatch(entity, op, payload)
	res, err := task.Wait(ctx)
	if err != nil {
		var ae *action.Error
		if errors.As(err, &ae) {
			code := ExitFailure
			if ae.Code == action.CodeStoreFailure {
				code = ExitCommandError
			}
			return formatter.Fail(code, string(ae.Code), ae.Error(), err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}

	result := InsertResult{
		Op:       string(op),
		Entity:   entity,
		Seq:      task.Seq,
		Count:    res.Count(),
		Entities: resultKeys(res),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s %s: %d record(s)\n", op, entity, result.Count)
	names := make([]string, 0, len(result.Entities))
	for name := range result.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		keys := make(value.Array, len(result.Entities[name]))
		for i, k := range result.Entities[name] {
			keys[i] = value.String(k)
		}
		rendered, _ := value.MarshalCanonical(keys)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", name, rendered)
	}
	return nil
}

func resultKeys(res action.Result) map[string][]string {
	out := make(map[string][]string, len(res.Entities))
	for entity, recs := range res.Entities {
		keys := make([]string, 0, len(recs))
		for _, rec := range recs {
			if id, ok := rec[model.MetaID].(value.String); ok {
				keys = append(keys, string(id))
			}
		}
		out[entity] = keys
	}
	return out
}

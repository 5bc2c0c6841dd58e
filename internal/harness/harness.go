package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/relstore/internal/action"
	"github.com/roach88/relstore/internal/compiler"
	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/normalize"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/testutil"
	"github.com/roach88/relstore/internal/value"
)

// Harness is the scenario execution engine. It runs one scenario against
// a fresh store with a deterministic clock and key generator.
type Harness struct {
	dispatcher *action.Dispatcher
	logger     *zap.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger for the run and its dispatcher.
// Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's CUE models into a registry
//  2. Open a fresh in-memory SQLite store
//  3. Dispatch every step in order, checking step expectations
//  4. Evaluate assertions and snapshot the final tables
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := LoadModels(scenario.Models, scenario.Connection)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.KeyPrefix
	if prefix == "" {
		prefix = "key"
	}
	h := &Harness{
		dispatcher: action.New(reg, st,
			action.WithClock(testutil.NewDeterministicClock()),
			action.WithKeyGenerator(normalize.NewSequenceKeys(prefix)),
			action.WithLogger(o.logger),
		),
		logger: o.logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.dispatcher.Run(ctx)
	defer h.dispatcher.Stop()

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{
		Registry: reg,
		Store:    st,
		Ctx:      ctx,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	state, err := store.Snapshot(ctx, st, reg.Connection())
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	result.State = state

	return result, nil
}

// LoadModels compiles CUE model files into one registry.
func LoadModels(paths []string, connection string) (*model.Registry, error) {
	if connection == "" {
		connection = store.DefaultConnection
	}

	var specs []compiler.ModelSpec
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model file: %w", err)
		}
		compiled, err := compiler.CompileSource(path, string(src))
		if err != nil {
			return nil, err
		}
		specs = append(specs, compiled...)
	}

	return compiler.Build(specs, connection)
}

// executeSteps dispatches every step and records it in the trace. A step
// that fails without an expected error fails the result but does not
// stop the run.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		op, err := action.ParseOp(step.Op)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		where, err := whereArg(step.Where)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		task := h.dispatcher.Dispatch(step.Entity, op, action.Payload{Data: step.Data, Where: where})
		res, taskErr := task.Wait(ctx)

		event := TraceEvent{Seq: task.Seq, Op: step.Op, Entity: step.Entity}
		var ae *action.Error
		switch {
		case taskErr == nil:
			event.Keys = writtenKeys(res)
		case errors.As(taskErr, &ae):
			event.Error = string(ae.Code)
		default:
			return fmt.Errorf("step %d: %w", i, taskErr)
		}
		result.AddTrace(event)

		for _, msg := range checkStep(i, step, res, event) {
			result.AddError(msg)
		}

		h.logger.Debug("step completed",
			zap.Int("step", i),
			zap.Int64("seq", task.Seq),
			zap.String("op", step.Op),
			zap.String("entity", step.Entity),
			zap.String("error", event.Error),
		)
	}
	return nil
}

// checkStep compares a step outcome with its expect clause.
func checkStep(i int, step Step, res action.Result, event TraceEvent) []string {
	var errs []string
	wantErr := ""
	if step.Expect != nil {
		wantErr = step.Expect.Error
	}

	if event.Error != wantErr {
		errs = append(errs, (&AssertionError{
			Type:     "step",
			Expected: fmt.Sprintf("step %d (%s %s) error %q", i, step.Op, step.Entity, wantErr),
			Actual:   fmt.Sprintf("error %q", event.Error),
		}).Error())
		return errs
	}

	if step.Expect != nil && step.Expect.Count != nil && res.Count() != *step.Expect.Count {
		errs = append(errs, (&AssertionError{
			Type:     "step",
			Expected: fmt.Sprintf("step %d (%s %s) to touch %d record(s)", i, step.Op, step.Entity, *step.Expect.Count),
			Actual:   fmt.Sprintf("%d record(s)", res.Count()),
		}).Error())
	}
	return errs
}

// whereArg converts a YAML where into a dispatcher Where: maps become an
// equality predicate over their fields, scalars stay keys.
func whereArg(where any) (any, error) {
	fields, ok := where.(map[string]any)
	if !ok {
		return where, nil
	}
	pred, err := equalities(fields)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return func(value.Object) bool { return true }, nil
	}
	return pred, nil
}

// equalities builds an AND of field equalities, in sorted field order.
func equalities(fields map[string]any) (queryir.Predicate, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	preds := make([]queryir.Predicate, 0, len(names))
	for _, name := range names {
		v, err := value.FromGo(fields[name])
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", name, err)
		}
		preds = append(preds, queryir.Eq(name, v))
	}
	return queryir.All(preds...), nil
}

func writtenKeys(res action.Result) map[string][]string {
	if res.Count() == 0 {
		return nil
	}
	keys := make(map[string][]string, len(res.Entities))
	for entity, recs := range res.Entities {
		for _, rec := range recs {
			if id, ok := rec[model.MetaID].(value.String); ok {
				keys[entity] = append(keys[entity], string(id))
			}
		}
	}
	return keys
}

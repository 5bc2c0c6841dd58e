package action

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/normalize"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// Op names a mutation.
type Op string

const (
	// OpCreate replaces every table the payload touches with its records.
	OpCreate Op = "create"
	// OpInsert adds records, replacing those with the same key.
	OpInsert Op = "insert"
	// OpUpdate merges fields into existing records.
	OpUpdate Op = "update"
	// OpInsertOrUpdate merges into existing records and adds new ones.
	OpInsertOrUpdate Op = "insertOrUpdate"
	// OpDelete removes records.
	OpDelete Op = "delete"
)

// Ops lists the supported operations.
var Ops = []Op{OpCreate, OpInsert, OpUpdate, OpInsertOrUpdate, OpDelete}

// ParseOp maps an operation name to its Op.
func ParseOp(name string) (Op, error) {
	op := Op(name)
	if !slices.Contains(Ops, op) {
		return "", &Error{Code: CodeUnknownOperation, Message: fmt.Sprintf("unknown operation %q", name)}
	}
	return op, nil
}

// Payload is the argument of an operation.
//
// Data is nested record data: an object or an array of objects, as a
// value.Value or a Go value convertible with value.FromGo. Where selects
// records for update and delete: a primary key value, a
// func(value.Object) bool, or a queryir.Predicate.
type Payload struct {
	Data  any
	Where any
}

// Result lists, per entity, the records an operation wrote or removed, in
// table order.
type Result struct {
	Entities map[string][]value.Object
}

// Records returns the records of one entity.
func (r Result) Records(entity string) []value.Object {
	return r.Entities[entity]
}

// Count returns the number of records across entities.
func (r Result) Count() int {
	n := 0
	for _, recs := range r.Entities {
		n += len(recs)
	}
	return n
}

// Task is a dispatched operation.
type Task struct {
	Seq     int64
	Entity  string
	Op      Op
	Payload Payload

	done   chan struct{}
	result Result
	err    error
}

func (t *Task) finish(res Result, err error) {
	t.result, t.err = res, err
	close(t.done)
}

// Done is closed once the task has run.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task has run or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Dispatcher runs operations against a store, one at a time.
//
// Thread-safety model:
//   - Dispatch: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Dispatcher struct {
	reg        *model.Registry
	st         store.Store
	connection string
	clock      Sequencer
	keys       normalize.KeyGenerator
	logger     *zap.Logger
	queue      *taskQueue
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithClock sets the task sequencer. Default: NewClock().
func WithClock(c Sequencer) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithKeyGenerator sets the generator for records without a primary key.
// Default: normalize.UUIDKeys.
func WithKeyGenerator(g normalize.KeyGenerator) Option {
	return func(d *Dispatcher) {
		d.keys = g
	}
}

// New creates a Dispatcher writing to the registry's connection in st.
func New(reg *model.Registry, st store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:        reg,
		st:         st,
		connection: reg.Connection(),
		clock:      NewClock(),
		keys:       normalize.UUIDKeys{},
		logger:     zap.NewNop(),
		queue:      newTaskQueue(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues an operation. A task dispatched after Stop fails with
// CodeStopped.
func (d *Dispatcher) Dispatch(entity string, op Op, p Payload) *Task {
	t := &Task{
		Seq:     d.clock.Next(),
		Entity:  entity,
		Op:      op,
		Payload: p,
		done:    make(chan struct{}),
	}
	if !d.queue.Enqueue(t) {
		t.finish(Result{}, taskError(t, CodeStopped, nil, "dispatcher stopped"))
	}
	return t
}

// Do dispatches an operation and waits for its result. Run must be active.
func (d *Dispatcher) Do(ctx context.Context, entity string, op Op, p Payload) (Result, error) {
	return d.Dispatch(entity, op, p).Wait(ctx)
}

// Run executes queued tasks until ctx is done or Stop is called. Tasks
// still queued at that point fail with CodeStopped.
//
// A failed task does not stop the loop: the error goes to the task's
// waiter and the log.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("dispatcher starting", zap.String("connection", d.connection))

	for {
		if t, ok := d.queue.TryDequeue(); ok {
			d.process(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Debug("dispatcher stopping", zap.Error(ctx.Err()))
			d.abort(d.queue.Close())
			return ctx.Err()

		case <-d.queue.Wait():
			if d.queue.Len() == 0 && d.queue.Closed() {
				d.logger.Debug("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it notices.
func (d *Dispatcher) Stop() {
	d.abort(d.queue.Close())
}

func (d *Dispatcher) abort(pending []*Task) {
	for _, t := range pending {
		t.finish(Result{}, taskError(t, CodeStopped, nil, "dispatcher stopped before task ran"))
	}
}

// process runs one task. Called only from Run.
func (d *Dispatcher) process(ctx context.Context, t *Task) {
	res, err := d.execute(ctx, t)
	if err != nil {
		d.logger.Error("task failed",
			zap.Int64("seq", t.Seq),
			zap.String("entity", t.Entity),
			zap.String("op", string(t.Op)),
			zap.Error(err),
		)
	} else {
		d.logger.Info("task completed",
			zap.Int64("seq", t.Seq),
			zap.String("entity", t.Entity),
			zap.String("op", string(t.Op)),
			zap.Int("records", res.Count()),
		)
	}
	t.finish(res, err)
}

func (d *Dispatcher) execute(ctx context.Context, t *Task) (Result, error) {
	m, err := d.reg.Model(t.Entity)
	if err != nil {
		return Result{}, taskError(t, CodeUnknownModel, err, "cannot resolve entity")
	}

	switch t.Op {
	case OpCreate, OpInsert, OpInsertOrUpdate:
		return d.persist(ctx, t, m)
	case OpUpdate:
		return d.update(ctx, t, m)
	case OpDelete:
		return d.delete(ctx, t, m)
	default:
		return Result{}, taskError(t, CodeUnknownOperation, nil, "unknown operation %q", t.Op)
	}
}

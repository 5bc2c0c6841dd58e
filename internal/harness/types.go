package harness

import (
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// TraceEvent records one dispatched step.
type TraceEvent struct {
	Seq    int64               `json:"seq"`
	Op     string              `json:"op"`
	Entity string              `json:"entity"`
	Keys   map[string][]string `json:"keys,omitempty"`  // entity → written keys
	Error  string              `json:"error,omitempty"` // action error code
}

// toValue renders e for canonical dumps.
func (e TraceEvent) toValue() value.Object {
	obj := value.Object{
		"seq":    value.Int(e.Seq),
		"op":     value.String(e.Op),
		"entity": value.String(e.Entity),
	}
	if len(e.Keys) > 0 {
		keys := value.Object{}
		for entity, ks := range e.Keys {
			arr := make(value.Array, len(ks))
			for i, k := range ks {
				arr[i] = value.String(k)
			}
			keys[entity] = arr
		}
		obj["keys"] = keys
	}
	if e.Error != "" {
		obj["error"] = value.String(e.Error)
	}
	return obj
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the dispatched steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final content of every table.
	State store.Tables `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  store.Tables{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a dispatched step to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

package action

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/query"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/testutil"
	"github.com/roach88/relstore/internal/value"
)

// startDispatcher runs a dispatcher over the seeded blog until the test
// ends.
func startDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *store.Memory) {
	t.Helper()
	reg := testutil.BlogRegistry(t)
	st := testutil.SeededMemory(t)
	d := New(reg, st, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return d, st
}

func do(t *testing.T, d *Dispatcher, entity string, op Op, p Payload) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := d.Do(ctx, entity, op, p)
	require.NoError(t, err)
	return res
}

func table(t *testing.T, st store.Store, entity string) store.Table {
	t.Helper()
	tbl, err := st.GetTable(context.Background(), store.DefaultConnection, entity)
	require.NoError(t, err)
	return tbl
}

func TestInsert_NestedWithIncrements(t *testing.T) {
	d, st := startDispatcher(t)

	res := do(t, d, "users", OpInsert, Payload{Data: map[string]any{
		"name":  "dan",
		"posts": []any{map[string]any{"title": "hello"}},
	}})

	assert.Equal(t, 2, res.Count())

	users := table(t, st, "users")
	require.Contains(t, users, "4")
	dan := users["4"]
	assert.Equal(t, value.String("dan"), dan["name"])
	assert.Equal(t, value.Bool(true), dan["active"], "hydrated default")
	assert.Equal(t, value.Array{value.Int(13)}, dan["posts"])
	assert.Equal(t, value.Null{}, dan["profile"])
	assert.Len(t, users, 4)

	post := table(t, st, "posts")["13"]
	require.NotNil(t, post)
	assert.Equal(t, value.Int(4), post["user_id"])
	assert.Equal(t, value.Int(0), post["votes"])
}

func TestInsert_ReplacesSameKey(t *testing.T) {
	d, st := startDispatcher(t)

	do(t, d, "users", OpInsert, Payload{Data: map[string]any{"id": 2, "name": "bob2"}})

	bob := table(t, st, "users")["2"]
	assert.Equal(t, value.String("bob2"), bob["name"])
	assert.Equal(t, value.Bool(true), bob["active"], "insert hydrates, it does not merge")
}

func TestInsert_Pivots(t *testing.T) {
	d, st := startDispatcher(t)

	do(t, d, "users", OpInsert, Payload{Data: map[string]any{
		"id":    3,
		"roles": []any{map[string]any{"id": 1, "name": "admin"}},
	}})

	pivots := table(t, st, "role_user")
	require.Contains(t, pivots, "3_1")
	assert.Equal(t, value.Int(3), pivots["3_1"]["user_id"])
	assert.Len(t, pivots, 4)
}

func TestInsert_GeneratedKeys(t *testing.T) {
	d, st := startDispatcher(t, WithKeyGenerator(testutil.NewFixedKeys("role-a", "role-b")))

	res := do(t, d, "roles", OpInsert, Payload{Data: []any{
		map[string]any{"name": "editor"},
		map[string]any{"name": "viewer"},
	}})
	assert.Equal(t, 2, res.Count())

	roles := table(t, st, "roles")
	require.Contains(t, roles, "role-a")
	require.Contains(t, roles, "role-b")
	assert.Equal(t, value.String("editor"), roles["role-a"]["name"])
	assert.Equal(t, value.String("role-b"), roles["role-b"][model.MetaID])
}

func TestInsert_KeylessParentLoadsChildren(t *testing.T) {
	d, st := startDispatcher(t)
	reg := testutil.BlogRegistry(t)

	do(t, d, "videos", OpInsert, Payload{Data: map[string]any{
		"url":      "x.mp4",
		"comments": []any{map[string]any{"body": "a"}, map[string]any{"body": "b"}},
	}})

	rows, err := query.New(reg, st, store.DefaultConnection, "videos").
		Where("url", "x.mp4").
		With("comments").
		Get(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, value.Null{}, rows[0]["id"])
	assert.Len(t, rows[0]["comments"], 2)
}

func TestCreate_ReplacesTables(t *testing.T) {
	d, st := startDispatcher(t)

	res := do(t, d, "users", OpCreate, Payload{Data: []any{
		map[string]any{"name": "x"},
		map[string]any{"name": "y"},
	}})

	users := table(t, st, "users")
	assert.Equal(t, []string{"1", "2"}, users.Keys(), "create restarts increments")
	assert.Equal(t, value.String("x"), users["1"]["name"])
	assert.Len(t, res.Records("users"), 2)
	assert.Len(t, table(t, st, "posts"), 3, "untouched tables are kept")
}

func TestUpdate(t *testing.T) {
	t.Run("by key", func(t *testing.T) {
		d, st := startDispatcher(t)

		res := do(t, d, "users", OpUpdate, Payload{
			Where: 2,
			Data:  map[string]any{"name": "bobby", "posts": []any{99}, "junk": 1},
		})

		require.Len(t, res.Records("users"), 1)
		bob := table(t, st, "users")["2"]
		assert.Equal(t, value.String("bobby"), bob["name"])
		assert.Equal(t, value.Bool(false), bob["active"], "other fields kept")
		assert.NotContains(t, bob, "junk")
		assert.NotContains(t, bob, "posts", "relations are not updated by where")
	})

	t.Run("by function", func(t *testing.T) {
		d, st := startDispatcher(t)

		inactive := func(r value.Object) bool { return r["active"] == value.Bool(false) }
		res := do(t, d, "users", OpUpdate, Payload{Where: inactive, Data: map[string]any{"active": true}})

		assert.Len(t, res.Records("users"), 1)
		for _, u := range table(t, st, "users") {
			assert.Equal(t, value.Bool(true), u["active"])
		}
	})

	t.Run("by keys in data", func(t *testing.T) {
		d, st := startDispatcher(t)

		res := do(t, d, "users", OpUpdate, Payload{Data: []any{
			map[string]any{"id": 1, "name": "ann2"},
			map[string]any{"id": 99, "name": "ghost"},
		}})

		assert.Len(t, res.Records("users"), 1)
		users := table(t, st, "users")
		assert.Equal(t, value.String("ann2"), users["1"]["name"])
		assert.NotContains(t, users, "99")
	})

	t.Run("no match writes nothing", func(t *testing.T) {
		d, _ := startDispatcher(t)
		res := do(t, d, "users", OpUpdate, Payload{Where: 42, Data: map[string]any{"name": "x"}})
		assert.Zero(t, res.Count())
	})
}

func TestInsertOrUpdate(t *testing.T) {
	d, st := startDispatcher(t)

	do(t, d, "users", OpInsertOrUpdate, Payload{Data: []any{
		map[string]any{"id": 2, "name": "bobby"},
		map[string]any{"name": "eve"},
	}})

	users := table(t, st, "users")
	assert.Equal(t, value.String("bobby"), users["2"]["name"])
	assert.Equal(t, value.Bool(false), users["2"]["active"], "existing record merged")
	require.Contains(t, users, "4")
	assert.Equal(t, value.Bool(true), users["4"]["active"], "new record hydrated")
}

func TestDelete(t *testing.T) {
	d, st := startDispatcher(t)

	res := do(t, d, "posts", OpDelete, Payload{Where: queryir.Eq("user_id", value.Int(1))})
	assert.Len(t, res.Records("posts"), 2)
	assert.Equal(t, []string{"12"}, table(t, st, "posts").Keys())

	do(t, d, "users", OpDelete, Payload{Where: "3"})
	assert.NotContains(t, table(t, st, "users"), "3")
}

func TestDispatch_Errors(t *testing.T) {
	d, _ := startDispatcher(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		entity string
		op     Op
		p      Payload
		code   Code
	}{
		{"unknown model", "ghosts", OpInsert, Payload{Data: map[string]any{}}, CodeUnknownModel},
		{"scalar data", "users", OpInsert, Payload{Data: 5}, CodeInvalidPayload},
		{"missing data", "users", OpCreate, Payload{}, CodeInvalidPayload},
		{"unknown op", "users", Op("upsert"), Payload{Data: map[string]any{}}, CodeUnknownOperation},
		{"delete without where", "users", OpDelete, Payload{}, CodeInvalidPayload},
		{"object where", "users", OpDelete, Payload{Where: map[string]any{"id": 1}}, CodeInvalidPayload},
		{"where update with array", "users", OpUpdate, Payload{Where: 1, Data: []any{}}, CodeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Do(ctx, tt.entity, tt.op, tt.p)
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.code), "got %v", err)
		})
	}

	_, err := d.Do(ctx, "ghosts", OpInsert, Payload{Data: map[string]any{}})
	assert.ErrorIs(t, err, model.ErrUnknownModel)
}

func TestDispatch_Serialized(t *testing.T) {
	d, st := startDispatcher(t)
	ctx := context.Background()

	const n = 30
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Do(ctx, "posts", OpInsert, Payload{Data: map[string]any{"title": "p"}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, table(t, st, "posts"), 3+n, "every insert got its own increment")
}

func TestDispatch_Sequence(t *testing.T) {
	d, _ := startDispatcher(t, WithClock(testutil.NewDeterministicClock()))

	a := d.Dispatch("users", OpUpdate, Payload{Where: 1, Data: map[string]any{"name": "a"}})
	b := d.Dispatch("users", OpUpdate, Payload{Where: 1, Data: map[string]any{"name": "b"}})
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)

	_, err := b.Wait(context.Background())
	require.NoError(t, err)
	select {
	case <-a.Done():
	default:
		t.Fatal("tasks run in dispatch order")
	}
}

func TestDispatch_AfterStop(t *testing.T) {
	reg := testutil.BlogRegistry(t)
	d := New(reg, store.NewMemory())
	d.Stop()

	_, err := d.Dispatch("users", OpInsert, Payload{Data: map[string]any{}}).Wait(context.Background())
	assert.True(t, IsCode(err, CodeStopped))
	assert.NoError(t, d.Run(context.Background()), "run returns once the queue is closed")
}

func TestRun_CancelFailsPending(t *testing.T) {
	reg := testutil.BlogRegistry(t)
	d := New(reg, store.NewMemory())

	task := d.Dispatch("users", OpInsert, Payload{Data: map[string]any{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The queued task may run before the loop sees the cancellation; either
	// way the waiter is released.
	_ = d.Run(ctx)
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task never finished")
	}
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("insertOrUpdate")
	require.NoError(t, err)
	assert.Equal(t, OpInsertOrUpdate, op)

	_, err = ParseOp("upsert")
	assert.True(t, IsCode(err, CodeUnknownOperation))
}

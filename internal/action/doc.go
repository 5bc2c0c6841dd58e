// Package action serializes store mutations through a single-writer loop.
//
// Callers Dispatch an operation (create, insert, update, insertOrUpdate,
// delete) from any goroutine and Wait on the returned Task. Run executes
// tasks one at a time in FIFO order: each task reads the tables it needs,
// normalizes its payload and writes complete tables back, so no two
// mutations interleave.
//
//	d := action.New(reg, st, action.WithLogger(logger))
//	go d.Run(ctx)
//	res, err := d.Dispatch("users", action.OpInsert, action.Payload{Data: data}).Wait(ctx)
package action

// Package task is the queue's engine room: admission, dispatch, execution
// supervision, auto-chaining, stale-task reaping, and startup recovery.
//
// One dispatcher loop makes all dequeue decisions, preserving admission
// order; execution itself runs on arbitrarily many supervisor goroutines,
// each offloading its collaborator call to a further goroutine so the
// coordination layer never blocks on domain work. The durable store is
// the source of truth; the in-memory result cache is a disposable mirror
// rebuilt on startup.
package task

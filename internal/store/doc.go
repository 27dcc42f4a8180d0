// Package store defines the durable persistence interface for task state
// and provides its implementations: a Redis-backed store used in
// production and an in-memory store used by tests and local runs.
package store

// Package domain contains the core entities of the task queue: task
// types, the request/result pair every task is tracked by, the status
// state machine, and derived queue statistics. It is independent of any
// storage or delivery mechanism.
package domain

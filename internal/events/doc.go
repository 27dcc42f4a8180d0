// Package events defines the lifecycle events the queue pushes to
// observers and the Broadcaster that fans them out.
//
// Observers are opaque message sinks registered by the transport layer on
// connect and removed on disconnect. Delivery is best-effort: one sink's
// failure never affects other sinks or task execution.
package events

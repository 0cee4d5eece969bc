// Package sinks implements concrete progress consumers: Prometheus counters,
// the Postgres mirror, Pub/Sub notices and structured logging. Each sink
// satisfies the progress.Sink interface and is safe for repeated
// Consume/Close cycles.
package sinks

// Package progress owns the run state of a vanity check run. The Reporter
// folds completed check records into counters, renders status lines, and
// publishes snapshots. A non-blocking Hub batches progress events and fans
// them out to pluggable sinks such as Prometheus, structured logs, a
// relational store or a message topic.
package progress

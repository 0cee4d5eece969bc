// Package vanity defines the shared domain types for vanity URL checks:
// candidates, verdicts, check records and the error taxonomy used across the
// source, prober, scheduler and sink stages.
package vanity

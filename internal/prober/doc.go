// Package prober decides whether a single vanity URL is available.
//
// A Prober issues one GET per attempt against the profile lookup endpoint,
// classifies the response, and retries transient failures (429, 5xx and
// network errors) with capped exponential backoff. Waits go through a
// Pauser so tests can observe them without sleeping.
package prober

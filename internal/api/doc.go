// Package api hosts the optional status server for a running check. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live run snapshot.
//   - GET /v1/runs/{run_id} for runs mirrored into Postgres.
package api

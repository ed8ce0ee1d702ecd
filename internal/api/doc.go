// Package api hosts the read-only operational HTTP surface:
//   - GET /healthz and /readyz for probes. Readiness follows the pool health
//     score while the pool is enabled.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/pool/health, /v1/pool/stats and /v1/providers for operators.
package api

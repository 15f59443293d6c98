// Package api hosts the HTTP trigger server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/monitor to run the configured monitor synchronously, optionally
//     overriding the URL list with {"urls": [...]}.
package api

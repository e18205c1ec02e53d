// Package api hosts the HTTP trigger for operator access. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to start a crawl in the background.
//   - GET /v1/crawls/latest for the most recent crawl report.
package api

// Package api hosts the HTTP server, middleware, and handlers of the capture
// gateway. Notable routes:
//   - GET /capture validates the query, forwards it to the renderer, and
//     streams the image back with cache headers.
//   - GET /healthz / readyz for Cloud Run and Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - / redirects to the marketing site.
package api

// Package main hosts the screenshot capture gateway entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes GET /capture plus health and metrics endpoints. Query (or JSON/form body)
//     parameters are normalized and validated by internal/capture before any network call is made.
//   - Forwarding: internal/upstream.Client POSTs the validated parameters as JSON to <endpoint>/capture with the
//     configured bearer token. The renderer's body is streamed to the caller in 32 KiB chunks, never buffered.
//   - Errors: validation failures answer 400, renderer failures keep the renderer's status and message, anything
//     else answers a generic 500 while the detail goes to the log. Every error body is {"error": "..."}.
//   - Configuration & plumbing: Viper populates config from env/files (godotenv loads an optional .env first); zap
//     provides structured logging with optional lumberjack rotation; Prometheus metrics are exported via the metrics
//     middleware and /metrics handler. The service keeps no state across requests, suitable for Cloud Run scale-out.
//
// Quick checklist:
//   - Configure env vars: CLOUD_RUN_ENDPOINT, CLOUD_RUN_AUTH_TOKEN, PIXASHOT_CACHE_MAX_AGE, PIXASHOT_CACHE_SWR, PORT,
//     or their GATEWAY_* equivalents (GATEWAY_UPSTREAM_ENDPOINT, GATEWAY_SERVER_CAPTURE_TIMEOUT_SECONDS, ...).
//   - Run locally: go run ./cmd/gateway -config config.yaml (or rely solely on env overrides).
package main

// Package api serves the edge device's local admin HTTP endpoints.
//
// Routes:
//   - GET /api/v1/health  200 while the coordinator link is open, 503 otherwise
//   - GET /api/v1/status  link and relay statistics as JSON
//   - GET /metrics        Prometheus exposition
//
// The server is started with Start and shuts down gracefully when its
// context is cancelled or Close is called.
package api

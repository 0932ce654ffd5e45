// Package httpserver serves the decision ledger API.
//
// Requests to /health and /api/* pass through the request guard (rate limit,
// payload ceiling, JSON content type, input trimming) before reaching Handler.
// Operational endpoints (/livez, /readyz, /drain, /undrain and optionally
// /debug/pprof) are not rate limited. Failures are reported with the apierr
// envelope, including 404 for unknown routes.
package httpserver

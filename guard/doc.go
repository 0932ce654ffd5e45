// Package guard holds the request admission layer: per-client sliding-window
// rate limiting (in memory or on Redis), payload size and content-type checks,
// top-level input sanitization and security response headers.
package guard

// Package middleware provides the HTTP middleware chain of the gallery
// server.
//
// It includes:
//   - Request ids (X-Request-ID)
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics
//   - Response compression (gzip)
package middleware

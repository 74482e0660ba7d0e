// Package middleware provides the HTTP middleware of the job board API.
//
//   - RequestID, Logger, Recovery, CORS, Compress: applied to every route
//   - Auth: runs the access gate and stores the Principal in the context
//   - RateLimit: per user (or per IP before auth) limits, in memory or Redis
//   - Idempotency: replays POST responses for a repeated Idempotency-Key
//
// Handlers read the caller with GetPrincipal(r.Context()) or GetUserID.
package middleware

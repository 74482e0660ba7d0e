// Package handler provides the HTTP endpoints of the job board API.
//
// Each handler struct wraps one service behind a small interface so tests
// can substitute func-field mocks. NewRouter registers every route on a
// net/http ServeMux and applies the middleware chains.
//
// # Response Format
//
// Successful responses use a uniform envelope:
//
//	{"success": true, "statusCode": 200, "message": "...", "data": ...}
//
// Job listings add pageNumber, pageSize, totalCount and totalPages next to
// data. Failures use model.APIError, produced from service errors by
// MapServiceError; unexpected errors never leak their detail.
//
// # Authentication
//
// Every /jobs, /subscriptions and /auth/{me,logout} route runs behind the
// Auth middleware, which places a service.Principal on the request context.
// Register, login and health are public.
package handler

// Package model defines domain entities and data structures for the job board API.
//
// # Domain Entities
//
//   - Job: a posting with an external link, owned by the user who posted it
//   - User: an account that can post jobs and subscribe to notifications
//   - UserSubscription: opt-in for new-job emails
//   - InvalidToken: a revoked bearer token (stored as a hash)
//
// Entities carry gorm tags for the relational backend and snake_case json
// tags, which double as field names in store criteria and in SurrealDB.
// API responses use the camelCase *View types instead.
//
// # Error Types
//
// Every failure is rendered as the uniform envelope defined in errors.go:
//
//	{"success": false, "statusCode": 404, "message": "job not found"}
package model

// Package repository defines the generic data-access contract of the job
// board and the backend-neutral filter language it is queried with.
//
// # Backends
//
//   - gormstore: SQLite or PostgreSQL through GORM
//   - surreal: SurrealDB through surrealdb.go
//
// Both implement Repository[T] for every entity in package model, so the
// service layer never knows which one it is talking to.
//
// # Criteria
//
// Filters are plain values built with Eq, NotEq, ContainsFold, Less, And
// and Or. Each backend compiles them into its own query language with
// bound parameters. Field names are checked with ValidField before they
// reach a query:
//
//	where := repository.Or(
//	    repository.ContainsFold(model.JobFieldTitle, keyword),
//	    repository.ContainsFold(model.JobFieldDescription, keyword),
//	)
//	jobs, err := repo.GetPaged(ctx, repository.PageQuery{Page: 1, Size: 10, Where: where})
//
// # Errors
//
// Backends translate their failures to ErrNotFound, ErrDuplicate and
// ErrInvalidQuery; anything else is returned unchanged. Package repotest
// holds the behavioural suite both backends run.
package repository

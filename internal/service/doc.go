// Package service implements the business logic of the job board.
//
// Every request passes the AccessGate before any domain logic runs. The
// gate strips the bearer prefix, rejects revoked tokens and requires a
// verified subject; handlers pass the resulting Principal to the services.
//
// # Service Pattern
//
//   - Constructor function (NewXxxService) accepts its collaborators, usually
//     through a config struct
//   - Storage is reached through the generic repository.Repository[T]
//   - Errors are sentinel errors from errors.go, matched with errors.Is
//   - Context is passed through for cancellation and request-scoped values
//
// # Example Usage
//
//	jobs := NewJobService(JobServiceConfig{
//	    JobRepo:          gormstore.New[model.Job](db),
//	    SubscriptionRepo: gormstore.New[model.UserSubscription](db),
//	    LinkChecker:      linksafety.SyntacticChecker{},
//	    Queue:            dispatcher,
//	})
//	job, err := jobs.CreateJob(ctx, principal.UserID, model.JobRequest{
//	    Title:        "Go developer",
//	    Description:  "Backend work",
//	    ExternalLink: "https://example.com/apply",
//	})
package service

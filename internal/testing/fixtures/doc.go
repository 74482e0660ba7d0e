// Package fixtures provides test data factories for the job board stores.
//
// A Factory writes through the generic repositories, so the same fixtures
// seed SQLite, PostgreSQL and SurrealDB alike.
//
// # Factory Pattern
//
// Create a factory over one backend's stores:
//
//	f := fixtures.New(fixtures.Stores{Users: users, Jobs: jobs, Subs: subs})
//
// # Creating Test Data
//
//	poster := f.CreateUser(t)
//	job := f.CreateJob(t, poster)
//	f.Subscribe(t, poster, true)
//
// # Customization
//
// Use option functions for customization:
//
//	user := f.CreateUser(t, fixtures.WithEmail("custom@example.com"))
//	job := f.CreateJob(t, poster, fixtures.WithTitle("Senior Go Engineer"))
//
// # Ordering
//
// Each entity created by one factory is stamped one second after the
// previous one, so newest-first assertions are deterministic.
package fixtures

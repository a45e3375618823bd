// Package models defines domain entities and persistence interfaces for the learning-progress tracker.
//
// The package contains two categories of types:
//
// 1. Descriptors: Lightweight values supplied by external collaborators
//   - [Video] : One entry of a linked playlist, as reported by the playlist source
//
// 2. Persistent Entities: Database-backed models
//   - [User] : The authenticated learner and their [Ledger] (streaks and completion counter)
//   - [VideoProgress] : Watch state of one video for one user
//   - [OutboxEvent] : Durable intent to apply a ledger change after a completion was recorded
//
// Values that may be absent ([User.PlaylistID], [Ledger.LastActiveAt], lookups that find nothing)
// are carried as [Optional] so callers handle the empty branch explicitly.
//
// All persistent entities implement the Model interface providing IDs, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models

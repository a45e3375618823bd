// Package tasks orchestrates the learning-progress operations on top of the repositories.
//
// # Core Operations
//
//  1. [CompletionGateway.CompleteVideo] : mark a video complete or incomplete
//     - Authorizes the caller against the target user
//     - Reads the prior flag and writes the new one in one transaction
//     - Enqueues a ledger event only when the flag actually changes
//
//  2. [InactivityGateway.CheckInactivityDecay] : passive streak decay
//     - Resets a streak whose last completion is more than one calendar day old
//     - Never touches the completed-video counter or the best streak
//
//  3. [LedgerProjector.Apply] : apply one ledger event
//     - Counter moves by a commutative increment
//     - Streak fields are recomputed from the event's own timestamp
//     - The event is marked processed in the same transaction, so redelivery is a no-op
//
//  4. [OutboxWorker.Run] : at-least-once delivery of pending ledger events
//     - Rate limited, with exponential backoff on failure
//     - Events that cannot succeed are parked as dead and can be requeued
//
//  5. [PlaylistService] and [DashboardService] : linking playlists, saving positions, and the dashboard summary
//
// # Progress Reporting
//
// The worker reports on an optional channel of [WorkerUpdate] values.
// Sends use select with default so a slow reader never blocks the worker.
//
// # Concurrency
//
// Every write runs in a transaction that SQLite begins IMMEDIATE, which serializes writers.
// The completion read-then-flip and the streak read-modify-write are therefore never interleaved.
package tasks

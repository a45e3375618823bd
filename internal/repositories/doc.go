// Package repositories implements SQLite persistence for learners, their video progress,
// playlist snapshots and the ledger outbox.
//
// Every repository is constructed over a [DBTX], so the same code runs on the pool or inside
// a transaction opened by [WithTx]. Transactions begin IMMEDIATE, which serializes writers:
// a read followed by a write in one transaction cannot interleave with another writer.
//
// Key Implementations:
//   - [UserRepository] : learners and their ledger (streaks, completion total, last activity)
//   - [ProgressRepository] : per-video completion flag and watch position, unique per (video, user)
//   - [PlaylistRepository] : ordered snapshot of the linked playlist's videos
//   - [OutboxRepository] : durable ledger events with retry scheduling and dead-lettering
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, event #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

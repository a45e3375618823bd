// Package ui holds the terminal styling shared by the CLI and a bubbletea monitor for the ledger worker.
//
// [Model] follows bubbletea's Init/Update/View pattern. It runs the outbox worker in a command,
// reads [tasks.WorkerUpdate] values from the worker's progress channel and lists the most recent
// events with running counters. Messages use the [Msg] union type.
//
// Keys: j/k scroll, r requeues dead events, q quits and cancels the worker.
//
// [Title], [OK], [Err], [Warn] and [Help] render one line in the shared lipgloss palette.
package ui

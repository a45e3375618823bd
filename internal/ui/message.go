package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytlearn/internal/tasks"
)

// MsgKind enumerates all message types of the worker monitor.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgWorkerUpdate MsgKind = iota
	MsgWorkerStopped
	MsgRequeued
)

// workerUpdateMsg is the constructor for [MsgWorkerUpdate]
func workerUpdateMsg(update tasks.WorkerUpdate) Msg {
	return Msg{kind: MsgWorkerUpdate, data: update}
}

// workerStoppedMsg is the constructor for [MsgWorkerStopped]
func workerStoppedMsg(err error) Msg {
	return Msg{kind: MsgWorkerStopped, data: err}
}

// requeuedMsg is the constructor for [MsgRequeued]
func requeuedMsg(n int64, err error) Msg {
	return Msg{
		kind: MsgRequeued,
		data: struct {
			n   int64
			err error
		}{n, err},
	}
}

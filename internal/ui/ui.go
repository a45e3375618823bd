package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytlearn/internal/tasks"
)

const maxEvents = 200

// MonitorOpts connects the monitor to a running outbox worker.
type MonitorOpts struct {
	Updates <-chan tasks.WorkerUpdate                // the channel passed to the worker as [tasks.WorkerOpts.Updates]
	Run     func(ctx context.Context) error          // runs the worker until ctx is cancelled
	Requeue func(ctx context.Context) (int64, error) // revives dead events
}

// Model is the worker monitor state.
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    MonitorOpts
	events  list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	counts  map[tasks.Phase]int
	notice  string
	stopped bool
	err     error
}

// NewModel creates the monitor. Quitting cancels the worker's context.
func NewModel(ctx context.Context, opts MonitorOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)

	events := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	events.Title = "Ledger events"
	events.SetShowHelp(false)
	events.SetFilteringEnabled(false)

	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		events:  events,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    newKeyMap(),
		counts:  make(map[tasks.Phase]int),
	}
}

// Init starts the worker and begins listening for its updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runWorker(), m.waitForUpdate())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.events.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.requeue):
			return m, m.requeue()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handle(msg)
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

func (m *Model) handle(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgWorkerUpdate:
		update := msg.data.(tasks.WorkerUpdate)
		m.counts[update.Phase]++
		if update.Phase == tasks.Idle {
			return m, m.waitForUpdate()
		}

		cmd := m.events.InsertItem(0, eventItem{update: update})
		if n := len(m.events.Items()); n > maxEvents {
			m.events.RemoveItem(n - 1)
		}
		return m, tea.Batch(cmd, m.waitForUpdate())

	case MsgWorkerStopped:
		m.stopped = true
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		}
		return m, tea.Quit

	case MsgRequeued:
		result := msg.data.(struct {
			n   int64
			err error
		})
		if result.err != nil {
			m.notice = Err(fmt.Sprintf("requeue failed: %v", result.err))
		} else {
			m.notice = OK(fmt.Sprintf("requeued %d dead events", result.n))
		}
		return m, nil
	}
	return m, nil
}

// View renders the counters, the recent events and the key help.
func (m *Model) View() string {
	if m.err != nil {
		return Err(fmt.Sprintf("Error: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(Title("ytlearn worker"))
	b.WriteString("\n")

	status := m.spinner.View() + " running"
	if m.stopped {
		status = "stopped"
	}
	fmt.Fprintf(&b, "%s  applied %d • skipped %d • retried %d • dead %d\n",
		status, m.counts[tasks.Applied], m.counts[tasks.Skipped], m.counts[tasks.Failed], m.counts[tasks.Dead])

	if m.notice != "" {
		b.WriteString(m.notice + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.events.View())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// Err returns the error the worker stopped with, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) runWorker() tea.Cmd {
	return func() tea.Msg {
		if m.opts.Run == nil {
			return nil
		}
		return workerStoppedMsg(m.opts.Run(m.ctx))
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		if m.opts.Updates == nil {
			return nil
		}
		select {
		case update, ok := <-m.opts.Updates:
			if !ok {
				return nil
			}
			return workerUpdateMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) requeue() tea.Cmd {
	return func() tea.Msg {
		if m.opts.Requeue == nil {
			return nil
		}
		return requeuedMsg(m.opts.Requeue(m.ctx))
	}
}

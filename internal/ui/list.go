package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytlearn/internal/tasks"
)

var _ list.Item = eventItem{}

// eventItem wraps [tasks.WorkerUpdate] to implement [list.Item].
type eventItem struct {
	update tasks.WorkerUpdate
}

func (i eventItem) FilterValue() string { return i.update.Message }
func (i eventItem) Title() string       { return i.update.Message }
func (i eventItem) Description() string {
	if i.update.Event == nil {
		return i.update.Phase.String()
	}
	desc := fmt.Sprintf("%s • user %s", i.update.Phase, i.update.Event.UserID)
	if i.update.Event.Attempts > 0 {
		desc = fmt.Sprintf("%s • attempt %d", desc, i.update.Event.Attempts+1)
	}
	return desc
}

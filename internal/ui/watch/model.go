// Package watch is a terminal observer of a running engine. It renders the
// mirrored state of the realtime stream: the session list on the left and
// the selected session's scores, pages and recent events on the right.
package watch

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	activity "tabtrail/internal/modules/activity/domain"
	realtime "tabtrail/internal/modules/realtime/domain"
)

// StateMsg carries a private copy of the mirrored state after one frame.
type StateMsg struct {
	State  *activity.State
	Seq    uint64
	Type   string
	Reason string
}

// ClosedMsg reports the end of the stream; Err is nil on a clean close.
type ClosedMsg struct {
	Err error
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Follow key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "newer")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "older")),
		Follow: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow active")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Follow, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Follow},
		{k.Help, k.Quit},
	}
}

// Model follows the selected session by id so that new sessions arriving at
// the top of the list do not move the selection.
type Model struct {
	address string
	keys    keyMap
	help    help.Model
	now     func() time.Time

	state      *activity.State
	seq        uint64
	frames     int
	snapshots  int
	lastReason string
	closed     bool
	err        error

	selectedID string
	follow     bool
	showHelp   bool
	width      int
	height     int
}

func NewModel(address string) Model {
	return Model{
		address: address,
		keys:    defaultKeys(),
		help:    help.New(),
		now:     time.Now,
		follow:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case StateMsg:
		m.state = msg.State
		m.seq = msg.Seq
		m.frames++
		if msg.Type == realtime.MessageSnapshot {
			m.snapshots++
		}
		m.lastReason = msg.Reason
		m.reselect()

	case ClosedMsg:
		m.closed = true
		m.err = msg.Err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		case key.Matches(msg, m.keys.Follow):
			m.follow = true
			m.reselect()
		}
	}
	return m, nil
}

// sessions lists the visible sessions newest first.
func (m Model) sessions() []*activity.Session {
	if m.state == nil {
		return nil
	}
	ordered := m.state.OrderedSessions()
	out := make([]*activity.Session, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		if !ordered[i].Deleted {
			out = append(out, ordered[i])
		}
	}
	return out
}

func (m *Model) reselect() {
	list := m.sessions()
	if len(list) == 0 {
		m.selectedID = ""
		return
	}
	if m.follow {
		if active := m.state.ActiveSession(); active != nil {
			m.selectedID = active.ID
			return
		}
		m.selectedID = list[0].ID
		return
	}
	for _, s := range list {
		if s.ID == m.selectedID {
			return
		}
	}
	m.selectedID = list[0].ID
}

func (m *Model) move(delta int) {
	list := m.sessions()
	if len(list) == 0 {
		return
	}
	idx := 0
	for i, s := range list {
		if s.ID == m.selectedID {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(list) {
		idx = len(list) - 1
	}
	m.selectedID = list[idx].ID
	m.follow = false
}

func (m Model) selected() *activity.Session {
	if m.state == nil {
		return nil
	}
	return m.state.Sessions[m.selectedID]
}

// Package tui provides a full-screen browser for saved chats.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/ollachat/internal/transcript"
)

// viewState tracks which screen the browser shows.
type viewState int

const (
	viewList viewState = iota
	viewTranscript
)

const (
	headerHeight = 2
	footerHeight = 2
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("34"))
	imageStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Source is the read side of the transcript store.
type Source interface {
	List() ([]string, error)
	Meta(name string) (transcript.Meta, error)
	Load(name string) (transcript.Transcript, error)
}

// chatItem is one saved chat in the list.
type chatItem struct {
	name string
	meta transcript.Meta
	err  error
}

func (i chatItem) Title() string       { return i.name }
func (i chatItem) FilterValue() string { return i.name }

func (i chatItem) Description() string {
	if i.err != nil {
		return "unreadable: " + i.err.Error()
	}
	desc := fmt.Sprintf("%s · %d messages · %s", i.meta.Model, i.meta.MessageCount, i.meta.SavedAt.Local().Format("2006-01-02 15:04"))
	if i.meta.Preview != "" {
		desc += " · " + i.meta.Preview
	}
	return desc
}

type model struct {
	source   Source
	state    viewState
	list     list.Model
	viewport viewport.Model
	current  string
	width    int
	height   int
}

func initialModel(source Source) (*model, error) {
	names, err := source.List()
	if err != nil {
		return nil, err
	}
	items := make([]list.Item, len(names))
	for i, name := range names {
		meta, metaErr := source.Meta(name)
		items[i] = chatItem{name: name, meta: meta, err: metaErr}
	}
	chats := list.New(items, list.NewDefaultDelegate(), 80, 20)
	chats.Title = "Saved Chats"
	chats.SetStatusBarItemName("chat", "chats")

	return &model{
		source:   source,
		state:    viewList,
		list:     chats,
		viewport: viewport.New(80, 20),
	}, nil
}

// Init satisfies the tea.Model interface.
func (m *model) Init() tea.Cmd {
	return nil
}

// Update routes key presses to the active screen.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		if m.state == viewTranscript {
			m.open(m.current)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case viewList:
		if km, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
			switch km.String() {
			case "q":
				return m, tea.Quit
			case "enter":
				if item, ok := m.list.SelectedItem().(chatItem); ok {
					m.open(item.name)
				}
				return m, nil
			}
		}
		m.list, cmd = m.list.Update(msg)
	case viewTranscript:
		if km, ok := msg.(tea.KeyMsg); ok {
			switch km.String() {
			case "q":
				return m, tea.Quit
			case "esc", "backspace":
				m.state = viewList
				m.current = ""
				return m, nil
			}
		}
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *model) open(name string) {
	m.current = name
	m.state = viewTranscript
	t, err := m.source.Load(name)
	if err != nil {
		m.viewport.SetContent(errorStyle.Render(err.Error()))
	} else {
		m.viewport.SetContent(renderTranscript(t, m.viewport.Width))
	}
	m.viewport.GotoTop()
}

// View renders the active screen.
func (m *model) View() string {
	if m.state == viewList {
		return m.list.View()
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.current))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%3.f%% · ↑/↓ scroll · esc back · q quit", m.viewport.ScrollPercent()*100)))
	return b.String()
}

func renderTranscript(t transcript.Transcript, width int) string {
	if len(t) == 0 {
		return helpStyle.Render("This chat has no messages.")
	}
	body := lipgloss.NewStyle().Width(max(width-2, 10)).PaddingLeft(2)
	var b strings.Builder
	for _, msg := range t {
		label := userStyle
		if msg.Role == transcript.RoleAssistant {
			label = assistantStyle
		}
		b.WriteString(label.Render(msg.Role + ":"))
		b.WriteString("\n")
		b.WriteString(body.Render(msg.Content))
		b.WriteString("\n")
		for _, img := range msg.Images {
			b.WriteString(imageStyle.Render("  [image] " + img))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Run opens the browser on the alternate screen and blocks until it quits.
func Run(source Source) error {
	m, err := initialModel(source)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

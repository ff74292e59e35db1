package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/ollachat/internal/transcript"
)

type fakeSource struct {
	chats   map[string]transcript.Transcript
	corrupt map[string]bool
	listErr error
}

func (f *fakeSource) List() ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.chats))
	for _, name := range []string{"alpha", "beta", "broken"} {
		if _, ok := f.chats[name]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *fakeSource) Meta(name string) (transcript.Meta, error) {
	if f.corrupt[name] {
		return transcript.Meta{}, transcript.ErrCorrupt
	}
	meta := transcript.Meta{Name: name, Model: "llama3", SavedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC), MessageCount: len(f.chats[name])}
	if chat := f.chats[name]; len(chat) > 0 {
		meta.Preview = chat[0].Content
	}
	return meta, nil
}

func (f *fakeSource) Load(name string) (transcript.Transcript, error) {
	if f.corrupt[name] {
		return nil, transcript.ErrCorrupt
	}
	return f.chats[name], nil
}

func newSource() *fakeSource {
	return &fakeSource{
		chats: map[string]transcript.Transcript{
			"alpha": {
				{Role: "user", Content: "what is a goroutine"},
				{Role: "assistant", Content: "a lightweight thread"},
			},
			"beta":   {{Role: "user", Content: "describe", Images: []string{"/tmp/cat.png"}}},
			"broken": nil,
		},
		corrupt: map[string]bool{"broken": true},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// TestUpdate walks the browser through opening a chat, going back and quitting.
func TestUpdate(t *testing.T) {
	m, err := initialModel(newSource())
	if err != nil {
		t.Fatalf("initialModel error: %v", err)
	}
	if m.state != viewList {
		t.Fatalf("expected list view, got %v", m.state)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(*model)
	if m.width != 100 || m.height != 40 {
		t.Fatalf("expected 100x40, got %dx%d", m.width, m.height)
	}

	next, _ = m.Update(key("enter"))
	m = next.(*model)
	if m.state != viewTranscript || m.current != "alpha" {
		t.Fatalf("expected alpha open, got state=%v current=%q", m.state, m.current)
	}

	next, _ = m.Update(key("esc"))
	m = next.(*model)
	if m.state != viewList || m.current != "" {
		t.Fatalf("expected list view after esc, got %v", m.state)
	}

	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Fatal("expected quit command for q")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatal("expected quit command for ctrl+c")
	}
}

// TestView checks what each screen renders.
func TestView(t *testing.T) {
	m, err := initialModel(newSource())
	if err != nil {
		t.Fatalf("initialModel error: %v", err)
	}
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	view := m.View()
	for _, want := range []string{"Saved Chats", "alpha", "beta", "unreadable", "2 messages · ", "· what is a goroutine"} {
		if !strings.Contains(view, want) {
			t.Fatalf("list view missing %q:\n%s", want, view)
		}
	}

	m.open("alpha")
	view = m.View()
	for _, want := range []string{"alpha", "what is a goroutine", "a lightweight thread", "esc back"} {
		if !strings.Contains(view, want) {
			t.Fatalf("transcript view missing %q:\n%s", want, view)
		}
	}

	m.open("beta")
	if view = m.View(); !strings.Contains(view, "[image] /tmp/cat.png") {
		t.Fatalf("expected image line:\n%s", view)
	}

	m.open("broken")
	if view = m.View(); !strings.Contains(view, transcript.ErrCorrupt.Error()) {
		t.Fatalf("expected corrupt error in preview:\n%s", view)
	}
}

func TestInitialModelListError(t *testing.T) {
	src := newSource()
	src.listErr = errors.New("permission denied")
	if _, err := initialModel(src); err == nil {
		t.Fatal("expected list error")
	}
}

func TestChatItemDescription(t *testing.T) {
	item := chatItem{name: "n", meta: transcript.Meta{Model: "m", MessageCount: 1, Preview: "hello there"}}
	if got := item.Description(); !strings.HasSuffix(got, " · hello there") {
		t.Fatalf("unexpected description %q", got)
	}
	item.meta.Preview = ""
	if got := item.Description(); strings.Contains(got, "hello") || strings.HasSuffix(got, "· ") {
		t.Fatalf("unexpected description without preview %q", got)
	}
}

func TestRenderEmptyTranscript(t *testing.T) {
	if got := renderTranscript(transcript.Transcript{}, 80); !strings.Contains(got, "no messages") {
		t.Fatalf("unexpected render %q", got)
	}
}

// Package ui renders ollachat's interactive surface: status lines, panels,
// tables, streamed text and prompts.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/mwiater/ollachat/internal/command"
	"github.com/mwiater/ollachat/internal/transcript"
)

const markdownWidth = 100

// Console writes everything the user sees during a session.
type Console struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	markdown *glamour.TermRenderer

	info    *color.Color
	success *color.Color
	warn    *color.Color
	failure *color.Color
	label   *color.Color
}

// NewConsole returns a Console writing to out. Colors and Markdown rendering
// are only enabled when out is a terminal.
func NewConsole(out io.Writer) *Console {
	c := &Console{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		info:     color.New(color.FgCyan, color.Bold),
		success:  color.New(color.FgGreen, color.Bold),
		warn:     color.New(color.FgYellow, color.Bold),
		failure:  color.New(color.FgRed, color.Bold),
		label:    color.New(color.Bold),
	}
	if IsTerminal(out) {
		for _, col := range []*color.Color{c.info, c.success, c.warn, c.failure, c.label} {
			col.EnableColor()
		}
		if r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(markdownWidth)); err == nil {
			c.markdown = r
		}
	} else {
		for _, col := range []*color.Color{c.info, c.success, c.warn, c.failure, c.label} {
			col.DisableColor()
		}
	}
	return c
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer { return c.out }

// Info prints a highlighted informational line.
func (c *Console) Info(format string, args ...any) {
	c.info.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Success prints a confirmation line.
func (c *Console) Success(format string, args ...any) {
	c.success.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (c *Console) Warn(format string, args ...any) {
	c.warn.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	c.failure.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Plain prints an unstyled line.
func (c *Console) Plain(format string, args ...any) {
	fmt.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// AssistantLabel starts a streamed assistant reply.
func (c *Console) AssistantLabel() {
	c.info.Fprint(c.out, "assistant: ")
}

// Fragment writes one streamed piece of text as is.
func (c *Console) Fragment(text string) {
	fmt.Fprint(c.out, text)
}

// EndStream terminates the line a streamed reply was written on.
func (c *Console) EndStream() {
	fmt.Fprintln(c.out)
}

func (c *Console) panel(title, body string, border lipgloss.Color) string {
	box := c.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 2)
	heading := c.renderer.NewStyle().Bold(true).Foreground(border).Render(title)
	return box.Render(heading + "\n\n" + body)
}

// Welcome prints the startup banner.
func (c *Console) Welcome(version string) {
	body := strings.Join([]string{
		"A simple but useful command line interface for Ollama",
		"to chat with local models in the terminal.",
		"",
		"Version " + version,
	}, "\n")
	fmt.Fprintln(c.out, c.panel("ollachat", body, lipgloss.Color("12")))
}

// Help prints the command grammar.
func (c *Console) Help(specs []command.Spec) {
	width := 0
	for _, spec := range specs {
		width = max(width, len(spec.Usage))
	}
	usage := c.renderer.NewStyle().Foreground(lipgloss.Color("86")).Width(width + 2)
	lines := make([]string, 0, len(specs))
	for _, spec := range specs {
		lines = append(lines, usage.Render(spec.Usage)+spec.Summary)
	}
	fmt.Fprintln(c.out, c.panel("Commands", strings.Join(lines, "\n"), lipgloss.Color("12")))
}

// Chats prints the saved chat names as a table.
func (c *Console) Chats(names []string) {
	if len(names) == 0 {
		c.Warn("No chats yet")
		return
	}
	fmt.Fprintln(c.out, c.table("Saved Chats", "Chat Name", names))
}

// Models prints the installed model names as a table.
func (c *Console) Models(names []string) {
	if len(names) == 0 {
		c.Warn("No models installed")
		return
	}
	fmt.Fprintln(c.out, c.table("Installed Models", "Model", names))
}

func (c *Console) table(title, header string, rows []string) string {
	cell := c.renderer.NewStyle().Foreground(lipgloss.Color("86")).Padding(0, 1)
	head := c.renderer.NewStyle().Bold(true).Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.renderer.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(header).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return cell
		})
	for _, r := range rows {
		t.Row(r)
	}
	titleLine := c.renderer.NewStyle().Italic(true).Render(title)
	return titleLine + "\n" + t.Render()
}

// Transcript replays a conversation, rendering assistant turns as Markdown
// when attached to a terminal.
func (c *Console) Transcript(t transcript.Transcript) {
	for _, msg := range t {
		content := msg.Content
		if msg.Role == transcript.RoleAssistant && c.markdown != nil {
			if rendered, err := c.markdown.Render(content); err == nil {
				content = strings.TrimSpace(rendered)
			}
		}
		c.label.Fprint(c.out, msg.Role+":")
		fmt.Fprintf(c.out, " %s\n", content)
		for _, img := range msg.Images {
			fmt.Fprintf(c.out, "  [image] %s\n", img)
		}
		fmt.Fprintln(c.out)
	}
}

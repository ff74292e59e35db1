package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// Prompter reads one line of input after showing label.
// It returns io.EOF when the input is closed or the user aborts.
type Prompter interface {
	Prompt(label string) (string, error)
}

// Confirm asks a yes/no question; only "y" (any case) counts as yes.
func Confirm(p Prompter, question string) (bool, error) {
	answer, err := p.Prompt(question + " [y/n] > ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}

// LinePrompter reads newline-terminated input from any reader.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter returns a Prompter for non-interactive input such as pipes.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt writes label and returns the next line without its terminator.
func (p *LinePrompter) Prompt(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// LinerPrompter offers line editing and persistent history on a terminal.
type LinerPrompter struct {
	state       *liner.State
	historyFile string
}

// NewLinerPrompter starts line editing and loads history from historyFile.
func NewLinerPrompter(historyFile string) *LinerPrompter {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	p := &LinerPrompter{state: state, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = state.ReadHistory(f)
		_ = f.Close()
	}
	return p
}

// Prompt reads a line; Ctrl+C and Ctrl+D both end input with io.EOF.
func (p *LinerPrompter) Prompt(label string) (string, error) {
	line, err := p.state.Prompt(label)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		p.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves history and restores the terminal.
func (p *LinerPrompter) Close() error {
	if p.historyFile != "" {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = p.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return p.state.Close()
}

// NewPrompter picks line editing when stdin is a terminal and a plain line
// reader otherwise. The returned func releases the terminal.
func NewPrompter(historyFile string, in *os.File, out io.Writer) (Prompter, func()) {
	if IsTerminal(in) {
		p := NewLinerPrompter(historyFile)
		return p, func() { _ = p.Close() }
	}
	return NewLinePrompter(in, out), func() {}
}

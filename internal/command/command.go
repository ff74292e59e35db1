// Package command parses a line of user input into a slash command or a
// plain chat message.
package command

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnrecognized is reported for slash-prefixed input that names no command.
var ErrUnrecognized = errors.New("command not found")

// Kind identifies what a line of input asks for.
type Kind int

const (
	Empty Kind = iota
	Chat
	Unrecognized
	Help
	Save
	Load
	List
	Delete
	New
	ChangeModel
	File
	Write
	Image
	Voice
	Exit
)

var kindNames = map[Kind]string{
	Empty:        "empty",
	Chat:         "chat",
	Unrecognized: "unrecognized",
	Help:         "help",
	Save:         "save",
	Load:         "load",
	List:         "list",
	Delete:       "delete",
	New:          "new",
	ChangeModel:  "changemodel",
	File:         "file",
	Write:        "write",
	Image:        "image",
	Voice:        "voice",
	Exit:         "exit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is one parsed line. Arg is the trimmed remainder after the command
// word, or the whole line for Chat.
type Command struct {
	Kind Kind
	Arg  string
	Raw  string
}

// Spec describes one entry of the command grammar.
type Spec struct {
	Name    string
	Kind    Kind
	Usage   string
	Summary string
}

// grammar is ordered as shown in the help panel.
var grammar = []Spec{
	{Name: "/save", Kind: Save, Usage: "/save <chat name>", Summary: "save the chat and keep saving it after every answer"},
	{Name: "/load", Kind: Load, Usage: "/load <chat name>", Summary: "load a saved chat"},
	{Name: "/list", Kind: List, Usage: "/list", Summary: "list saved chats"},
	{Name: "/new", Kind: New, Usage: "/new", Summary: "start a new chat"},
	{Name: "/delete", Kind: Delete, Usage: "/delete <chat name>", Summary: "delete a saved chat"},
	{Name: "/file", Kind: File, Usage: "/file <path>", Summary: "ask about the contents of a text file"},
	{Name: "/image", Kind: Image, Usage: "/image <path>", Summary: "ask about an image (multimodal models)"},
	{Name: "/write", Kind: Write, Usage: "/write <path>", Summary: "write the last answer to a file (.txt if no extension)"},
	{Name: "/voice", Kind: Voice, Usage: "/voice", Summary: "speak your prompt instead of typing it"},
	{Name: "/changemodel", Kind: ChangeModel, Usage: "/changemodel <model>", Summary: "switch to another installed model"},
	{Name: "/?", Kind: Help, Usage: "/?", Summary: "show this help"},
	{Name: "/exit", Kind: Exit, Usage: "/exit", Summary: "quit"},
}

var lookup = func() map[string]Kind {
	m := make(map[string]Kind, len(grammar))
	for _, spec := range grammar {
		m[spec.Name] = spec.Kind
	}
	return m
}()

// Grammar returns the grammar in display order.
func Grammar() []Spec {
	out := make([]Spec, len(grammar))
	copy(out, grammar)
	return out
}

// Parse classifies one line of input. Argument validation is left to the
// handler of each kind.
func Parse(line string) Command {
	input := strings.TrimSpace(line)
	cmd := Command{Raw: input}
	if input == "" {
		cmd.Kind = Empty
		return cmd
	}
	if !strings.HasPrefix(input, "/") {
		cmd.Kind = Chat
		cmd.Arg = input
		return cmd
	}

	word, rest := input, ""
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		word, rest = input[:i], input[i:]
	}
	kind, ok := lookup[strings.ToLower(word)]
	if !ok {
		cmd.Kind = Unrecognized
		cmd.Arg = word
		return cmd
	}
	cmd.Kind = kind
	cmd.Arg = strings.TrimSpace(rest)
	return cmd
}

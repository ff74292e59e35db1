// Package models resolves which installed model a session talks to.
package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/ui"
)

var (
	// ErrBackendUnavailable is returned when the model server cannot be queried.
	ErrBackendUnavailable = errors.New("could not list models")
	// ErrNoModels is returned when the server has no model installed.
	ErrNoModels = errors.New("no models available, please install one")
	// ErrUnknownModel is returned for a name that is not installed.
	ErrUnknownModel = errors.New("model does not exist")
)

// Lister enumerates installed models.
type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Registry caches the installed model list and owns the persisted default.
type Registry struct {
	lister      Lister
	defaultPath string
	available   []string
}

// NewRegistry returns a Registry; call Load before resolving models.
func NewRegistry(lister Lister, defaultPath string) *Registry {
	return &Registry{lister: lister, defaultPath: defaultPath}
}

// Load fetches the installed models. Both errors it returns are fatal at startup.
func (r *Registry) Load(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	if len(r.available) == 0 {
		return ErrNoModels
	}
	return nil
}

// Refresh re-queries the server, keeping the cached list on failure.
func (r *Registry) Refresh(ctx context.Context) error {
	names, err := r.lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	r.available = names
	return nil
}

// Available returns the cached model names.
func (r *Registry) Available() []string {
	return slices.Clone(r.available)
}

// Contains reports whether name is installed.
func (r *Registry) Contains(name string) bool {
	return name != "" && slices.Contains(r.available, name)
}

// HasDefaultFile reports whether a default model was ever persisted,
// whether or not it is still installed.
func (r *Registry) HasDefaultFile() bool {
	_, err := os.Stat(r.defaultPath)
	return err == nil
}

// ReadDefault returns the persisted default model if it is still installed.
// A missing file or a stale name yields "" and no error.
func (r *Registry) ReadDefault() (string, error) {
	data, err := os.ReadFile(r.defaultPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if !r.Contains(name) {
		logging.LogEvent("default model %q is not installed; ignoring", name)
		return "", nil
	}
	return name, nil
}

// WriteDefault persists name as the default model.
func (r *Registry) WriteDefault(name string) error {
	if err := os.MkdirAll(filepath.Dir(r.defaultPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.defaultPath, []byte(name), 0o644)
}

// ResolveStartupModel picks the session model: the CLI argument if given
// (an unknown one is an error), else the persisted default if still
// installed, else whatever the user picks interactively.
func (r *Registry) ResolveStartupModel(cliArg string, p ui.Prompter, c *ui.Console) (string, error) {
	if name := strings.TrimSpace(cliArg); name != "" {
		if !r.Contains(name) {
			return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
		}
		return name, nil
	}

	name, err := r.ReadDefault()
	if err != nil {
		c.Error("Error reading default model: %v", err)
	}
	if name != "" {
		return name, nil
	}
	return r.choose(p, c)
}

func (r *Registry) choose(p ui.Prompter, c *ui.Console) (string, error) {
	offerDefault := !r.HasDefaultFile()
	for {
		c.Plain("Choose one of the following models:\n\n%s", strings.Join(r.available, "\n"))
		input, err := p.Prompt("> ")
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(input)
		if !r.Contains(name) {
			c.Error("Error: Model does not exist\n")
			continue
		}
		if offerDefault {
			r.offerDefault(name, p, c)
		}
		return name, nil
	}
}

func (r *Registry) offerDefault(name string, p ui.Prompter, c *ui.Console) {
	ok, err := ui.Confirm(p, fmt.Sprintf("Do you want to set %s as default?", name))
	if err != nil || !ok {
		return
	}
	if err := r.WriteDefault(name); err != nil {
		c.Error("Error setting default model: %v", err)
		return
	}
	logging.LogEvent("default model set to %q", name)
	c.Success("%s is now your default model", name)
}

// ChangeModel validates a requested switch against a fresh model list,
// falling back to the cached list when the server cannot be reached.
func (r *Registry) ChangeModel(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := r.Refresh(ctx); err != nil {
		logging.LogEvent("model refresh failed, using cached list: %v", err)
	}
	if !r.Contains(name) {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return name, nil
}

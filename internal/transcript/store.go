package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mwiater/ollachat/internal/util"
)

const (
	fileExt       = ".json"
	formatVersion = 1
)

var (
	// ErrNotFound is returned when no transcript is stored under a name.
	ErrNotFound = errors.New("chat not found")
	// ErrCorrupt is returned when a stored transcript cannot be decoded.
	ErrCorrupt = errors.New("corrupt chat file")
	// ErrPersistence wraps I/O failures while writing or removing a transcript.
	ErrPersistence = errors.New("could not persist chat")
	// ErrInvalidName is returned for names that cannot be used as a file name.
	ErrInvalidName = errors.New("invalid chat name")
)

// file is the on-disk document for one transcript.
type file struct {
	Version  int        `json:"version"`
	Model    string     `json:"model,omitempty"`
	SavedAt  time.Time  `json:"saved_at"`
	Messages Transcript `json:"messages"`
}

// Meta summarises a stored transcript without exposing its messages.
type Meta struct {
	Name         string
	Model        string
	SavedAt      time.Time
	MessageCount int
	// Preview is the opening user message flattened to one short line.
	Preview string
}

const previewRunes = 60

// Store keeps one JSON file per named transcript in a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// ValidateName rejects names that are empty or would escape the store directory.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case trimmed == "." || trimmed == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(trimmed, `/\`) || strings.ContainsRune(trimmed, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, strings.TrimSpace(name)+fileExt)
}

// Save overwrites the file for name with the full transcript.
func (s *Store) Save(name string, t Transcript, model string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if t == nil {
		t = Transcript{}
	}
	doc := file{
		Version:  formatVersion,
		Model:    model,
		SavedAt:  time.Now().UTC(),
		Messages: t,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := util.AtomicWriteFile(s.path(name), data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Load reads the transcript stored under name.
func (s *Store) Load(name string) (Transcript, error) {
	doc, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if doc.Messages == nil {
		return Transcript{}, nil
	}
	return doc.Messages, nil
}

// Meta returns summary information about the transcript stored under name.
func (s *Store) Meta(name string) (Meta, error) {
	doc, err := s.read(name)
	if err != nil {
		return Meta{}, err
	}
	return Meta{
		Name:         name,
		Model:        doc.Model,
		SavedAt:      doc.SavedAt,
		MessageCount: len(doc.Messages),
		Preview:      preview(doc.Messages),
	}, nil
}

func preview(t Transcript) string {
	for _, msg := range t {
		if msg.Role == RoleUser {
			return util.Snippet(msg.Content, previewRunes)
		}
	}
	return ""
}

// Exists reports whether a transcript is stored under name.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(s.path(name))
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) read(name string) (file, error) {
	if err := ValidateName(name); err != nil {
		return file{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return file{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return file{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := validate(data); err != nil {
		return file{}, fmt.Errorf("%w %q: %v", ErrCorrupt, name, err)
	}
	var doc file
	if err := json.Unmarshal(data, &doc); err != nil {
		return file{}, fmt.Errorf("%w %q: %v", ErrCorrupt, name, err)
	}
	return doc, nil
}

// List returns the stored transcript names in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the transcript stored under name.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

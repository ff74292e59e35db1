// Package speech turns one spoken utterance into text by recording a short
// clip and sending it to a whisper.cpp-compatible transcription server.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/mwiater/ollachat/internal/appconfig"
	"github.com/mwiater/ollachat/internal/logging"
)

var (
	// ErrUnknownSpeech is returned when a clip contained no recognizable words.
	ErrUnknownSpeech = errors.New("could not understand audio")
	// ErrRequestFailed is returned when the transcription server could not be used.
	ErrRequestFailed = errors.New("could not request results")
	// ErrStopped is returned by callers when the stop phrase was spoken.
	ErrStopped = errors.New("voice input stopped")
)

// Listener produces one spoken utterance as text.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Recorder captures audio into a WAV file at path.
type Recorder interface {
	Record(ctx context.Context, path string) error
}

// CommandRecorder runs an external capture program. {file} and {seconds} in
// Command are replaced before it is split on whitespace.
type CommandRecorder struct {
	Command string
	Seconds int
}

// Record runs the capture command and waits for it to finish.
func (r CommandRecorder) Record(ctx context.Context, path string) error {
	line := strings.NewReplacer("{file}", path, "{seconds}", strconv.Itoa(r.Seconds)).Replace(r.Command)
	args := strings.Fields(line)
	if len(args) == 0 {
		return errors.New("speech: empty record command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("speech: %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// WhisperListener records a clip and posts it to Endpoint.
type WhisperListener struct {
	Recorder Recorder
	Endpoint string
	Language string
	Client   *http.Client
	TempDir  string
}

// NewWhisperListener builds a listener from the speech configuration.
func NewWhisperListener(cfg appconfig.Speech) *WhisperListener {
	return &WhisperListener{
		Recorder: CommandRecorder{Command: cfg.RecordCommand, Seconds: cfg.ClipSeconds},
		Endpoint: cfg.Endpoint,
		Language: cfg.Language,
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Listen records one clip and returns its transcription.
func (l *WhisperListener) Listen(ctx context.Context) (string, error) {
	dir := l.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "ollachat-"+uuid.NewString()+".wav")
	defer os.Remove(path)

	if err := l.Recorder.Record(ctx, path); err != nil {
		return "", err
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("speech: read recording: %w", err)
	}
	return l.transcribe(ctx, filepath.Base(path), audio)
}

func (l *WhisperListener) transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	_ = form.WriteField("response_format", "json")
	if l.Language != "" {
		_ = form.WriteField("language", l.Language)
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	logging.LogRequest("CLI->STT", l.Endpoint, "", map[string]any{"file": filename, "bytes": len(audio)})

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	logging.LogRequest("STT->CLI", l.Endpoint, "", raw)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Status, strings.TrimSpace(string(raw)))
	}

	var result inferenceResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, result.Error)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" || isNonSpeech(text) {
		return "", ErrUnknownSpeech
	}
	return text, nil
}

// isNonSpeech matches the markers whisper emits for silence or noise, e.g. "[BLANK_AUDIO]".
func isNonSpeech(text string) bool {
	return (strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")) ||
		(strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")"))
}

// IsStopPhrase reports whether text contains phrase, ignoring case.
func IsStopPhrase(text, phrase string) bool {
	if strings.TrimSpace(phrase) == "" {
		return false
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(text), fold.String(phrase))
}

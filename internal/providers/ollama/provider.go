// Package ollama provides a ChatProvider backed by Ollama-compatible HTTP endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mwiater/ollachat/internal/appconfig"
	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/providers"
)

// ErrUnreachable marks transport failures, as opposed to errors reported by
// a server that answered.
var ErrUnreachable = errors.New("ollama: server unreachable")

// Provider implements the providers.ChatProvider interface using Ollama HTTP APIs.
type Provider struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// New constructs a Provider for the configured host and request timeout.
func New(cfg *appconfig.Config) *Provider {
	timeout := cfg.RequestTimeout()
	return &Provider{
		baseURL: strings.TrimRight(cfg.Host, "/"),
		client: &http.Client{
			Transport: newTransport(timeout),
		},
		timeout: timeout,
	}
}

// newTransport bounds connecting and waiting for response headers by
// timeout. A streamed body may take longer than that.
func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     false,
	}
}

// tagsResponse defines the structure of the response from the /api/tags endpoint.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// chatMessage is the wire form of providers.ChatMessage.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// streamChunk defines the structure of a single chunk in a streaming response.
type streamChunk struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
	Error     string `json:"error,omitempty"`
}

// ListModels returns the models installed on the host.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := p.baseURL + "/api/tags"
	logging.LogRequest("CLI->LLM", p.baseURL, "", map[string]string{"method": http.MethodGet, "url": endpoint})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnreachable, p.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest("LLM->CLI", p.baseURL, "", body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: /api/tags returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("ollama: parse /api/tags: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Stream issues a streaming chat request and yields each content fragment.
func (p *Provider) Stream(ctx context.Context, req providers.StreamRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		messages, err := encodeMessages(req.History)
		if err != nil {
			yield("", err)
			return
		}
		body, err := json.Marshal(chatRequest{Model: req.Model, Messages: messages, Stream: true})
		if err != nil {
			yield("", err)
			return
		}
		logging.LogRequest("CLI->LLM", p.baseURL, req.Model, summarizeRequest(req))

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			yield("", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			yield("", fmt.Errorf("%w at %s: %v", ErrUnreachable, p.baseURL, err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			logging.LogRequest("LLM->CLI", p.baseURL, req.Model, raw)
			yield("", fmt.Errorf("ollama: /api/chat returned %s: %s", resp.Status, serverError(raw)))
			return
		}

		decoder := json.NewDecoder(resp.Body)
		for {
			var chunk streamChunk
			if err := decoder.Decode(&chunk); err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				yield("", fmt.Errorf("ollama: read stream: %w", err))
				return
			}
			if data, err := json.Marshal(chunk); err == nil {
				logging.LogRequest("LLM->CLI", p.baseURL, req.Model, data)
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("ollama: %s", chunk.Error))
				return
			}
			if chunk.Message.Content != "" {
				if !yield(chunk.Message.Content, nil) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
	}
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// encodeMessages converts history to the wire form, reading image
// attachments from disk and base64-encoding them. Images of earlier turns
// that no longer exist are left out; only the newest turn must be complete.
func encodeMessages(history []providers.ChatMessage) ([]chatMessage, error) {
	out := make([]chatMessage, 0, len(history))
	for i, msg := range history {
		wire := chatMessage{Role: msg.Role, Content: msg.Content}
		for _, path := range msg.Images {
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && i < len(history)-1 {
					logging.LogEvent("skipping missing image %q from turn %d", path, i+1)
					continue
				}
				return nil, fmt.Errorf("read image %q: %w", path, err)
			}
			wire.Images = append(wire.Images, base64.StdEncoding.EncodeToString(data))
		}
		out = append(out, wire)
	}
	return out, nil
}

// summarizeRequest keeps image payloads out of the log.
func summarizeRequest(req providers.StreamRequest) map[string]any {
	images := 0
	for _, msg := range req.History {
		images += len(msg.Images)
	}
	last := ""
	if n := len(req.History); n > 0 {
		last = req.History[n-1].Content
	}
	return map[string]any{
		"model":    req.Model,
		"messages": len(req.History),
		"images":   images,
		"last":     last,
	}
}

// serverError extracts the "error" field from a JSON error body, falling
// back to the raw text.
func serverError(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

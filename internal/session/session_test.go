package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/ollachat/internal/logging"
	"github.com/mwiater/ollachat/internal/models"
	"github.com/mwiater/ollachat/internal/providers"
	"github.com/mwiater/ollachat/internal/speech"
	"github.com/mwiater/ollachat/internal/transcript"
	"github.com/mwiater/ollachat/internal/ui"
)

type fakeProvider struct {
	models    []string
	fragments []string
	err       error
	requests  []providers.StreamRequest
}

func (f *fakeProvider) ListModels(context.Context) ([]string, error) { return f.models, nil }

func (f *fakeProvider) Stream(_ context.Context, req providers.StreamRequest) iter.Seq2[string, error] {
	f.requests = append(f.requests, req)
	return func(yield func(string, error) bool) {
		for _, fragment := range f.fragments {
			if !yield(fragment, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeProvider) Close() error { return nil }

type fakeListener struct {
	results []listenResult
	calls   int
}

type listenResult struct {
	text string
	err  error
}

func (f *fakeListener) Listen(context.Context) (string, error) {
	r := f.results[f.calls]
	f.calls++
	return r.text, r.err
}

type harness struct {
	session  *Session
	provider *fakeProvider
	store    *transcript.Store
	out      *bytes.Buffer
	dir      string
}

func newHarness(t *testing.T, input ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	provider := &fakeProvider{models: []string{"llama3", "mistral"}, fragments: []string{"hel", "lo"}}
	registry := models.NewRegistry(provider, filepath.Join(dir, "default.txt"))
	require.NoError(t, registry.Load(context.Background()))
	store, err := transcript.NewStore(filepath.Join(dir, "chats"))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	text := strings.Join(input, "\n")
	if text != "" {
		text += "\n"
	}
	s := New("llama3", Deps{
		Provider:   provider,
		Registry:   registry,
		Store:      store,
		Prompter:   ui.NewLinePrompter(strings.NewReader(text), io.Discard),
		Console:    ui.NewConsole(out),
		StopPhrase: "stop voice",
	})
	return &harness{session: s, provider: provider, store: store, out: out, dir: dir}
}

func (h *harness) exec(line string) bool {
	return h.session.Execute(context.Background(), line)
}

func TestChatTurnAppendsExchange(t *testing.T) {
	h := newHarness(t)
	h.exec("hi")

	require.Equal(t, transcript.Transcript{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}, h.session.Transcript)
	assert.Contains(t, h.out.String(), "assistant: hello")
	require.Len(t, h.provider.requests, 1)
	assert.Equal(t, "llama3", h.provider.requests[0].Model)
	assert.Equal(t, []providers.ChatMessage{{Role: "user", Content: "hi"}}, h.provider.requests[0].History)
}

func TestAutoSaveMatchesTranscript(t *testing.T) {
	h := newHarness(t)
	h.exec("/save notes")
	require.Equal(t, "notes", h.session.BoundName)

	h.exec("first")
	h.provider.fragments = []string{"second ", "reply"}
	h.exec("another")

	saved, err := h.store.Load("notes")
	require.NoError(t, err)
	require.Equal(t, h.session.Transcript, saved)
	require.Len(t, saved, 4)
	assert.Equal(t, "second reply", saved[3].Content)
}

func TestUnboundChatIsNotSaved(t *testing.T) {
	h := newHarness(t)
	h.exec("hi")
	names, err := h.store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStreamFailureKeepsOnlyUserTurn(t *testing.T) {
	h := newHarness(t)
	h.exec("/save c")
	h.exec("hi")
	before, err := h.store.Load("c")
	require.NoError(t, err)

	h.provider.fragments = []string{"partial "}
	h.provider.err = errors.New("connection reset")
	h.exec("again")

	last := h.session.Transcript[len(h.session.Transcript)-1]
	assert.Equal(t, transcript.Message{Role: "user", Content: "again"}, last)
	assert.Len(t, h.session.Transcript, 3)

	saved, err := h.store.Load("c")
	require.NoError(t, err)
	assert.Equal(t, before, saved)
	assert.Contains(t, h.out.String(), "error while trying to use model: connection reset")
}

func TestSendTurnWrapsInferenceError(t *testing.T) {
	h := newHarness(t)
	h.provider.fragments = nil
	h.provider.err = errors.New("boom")
	err := h.session.SendTurn(context.Background(), transcript.Message{Role: "user", Content: "x"})
	require.ErrorIs(t, err, ErrInference)
}

func TestSaveAndDeleteRequireName(t *testing.T) {
	h := newHarness(t)
	h.exec("/save")
	h.exec("/delete   ")
	assert.Equal(t, 2, strings.Count(h.out.String(), "missing argument"))
	assert.Empty(t, h.session.BoundName)
	names, err := h.store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadMissingLeavesTranscript(t *testing.T) {
	h := newHarness(t)
	h.exec("hi")
	want := h.session.Transcript.Clone()

	h.exec("/load nope")
	assert.Equal(t, want, h.session.Transcript)
	assert.Empty(t, h.session.BoundName)
	assert.Contains(t, h.out.String(), "Chat not found")
}

func TestLoadCorruptLeavesTranscript(t *testing.T) {
	h := newHarness(t)
	h.exec("hi")
	want := h.session.Transcript.Clone()
	require.NoError(t, os.WriteFile(filepath.Join(h.store.Dir(), "broken.json"), []byte("{nope"), 0o600))

	h.exec("/load broken")
	assert.Equal(t, want, h.session.Transcript)
	assert.Contains(t, h.out.String(), "Error loading chat")
}

func TestLoadBindsAndReplays(t *testing.T) {
	h := newHarness(t)
	stored := transcript.Transcript{
		{Role: "user", Content: "what is go"},
		{Role: "assistant", Content: "a language"},
	}
	require.NoError(t, h.store.Save("golang", stored, "llama3"))

	h.exec("/load golang")
	assert.Equal(t, stored, h.session.Transcript)
	assert.Equal(t, "golang", h.session.BoundName)
	assert.Contains(t, h.out.String(), "what is go")

	h.exec("more")
	saved, err := h.store.Load("golang")
	require.NoError(t, err)
	assert.Len(t, saved, 4)
}

func TestDeleteBoundNameUnbinds(t *testing.T) {
	h := newHarness(t)
	h.exec("/save keep")
	h.exec("/save drop")
	h.exec("/delete keep")
	assert.Equal(t, "drop", h.session.BoundName)

	h.exec("/delete drop")
	assert.Empty(t, h.session.BoundName)
	assert.False(t, h.store.Exists("drop"))

	h.exec("/delete drop")
	assert.Contains(t, h.out.String(), "Chat not found")
}

func TestListChats(t *testing.T) {
	h := newHarness(t)
	h.exec("/list")
	assert.Contains(t, h.out.String(), "No chats yet")

	h.exec("/save alpha")
	h.out.Reset()
	h.exec("/list")
	assert.Contains(t, h.out.String(), "alpha")
}

func TestNewAlwaysClearsAndUnbinds(t *testing.T) {
	cases := []struct {
		name  string
		input []string
		bound bool
		saved string
	}{
		{name: "bound", bound: true},
		{name: "unbound decline", input: []string{"n"}},
		{name: "unbound accept", input: []string{"y", "kept"}, saved: "kept"},
		{name: "unbound eof"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.input...)
			if tc.bound {
				h.exec("/save current")
			}
			h.exec("hi")

			h.exec("/new")
			assert.Empty(t, h.session.Transcript)
			assert.NotNil(t, h.session.Transcript)
			assert.Empty(t, h.session.BoundName)
			if tc.saved != "" {
				loaded, err := h.store.Load(tc.saved)
				require.NoError(t, err)
				assert.Len(t, loaded, 2)
			}
		})
	}
}

func TestNewWithEmptyTranscriptDoesNotPrompt(t *testing.T) {
	h := newHarness(t, "hello")
	h.exec("/new")
	line, err := h.session.deps.Prompter.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
}

func TestWriteScenario(t *testing.T) {
	h := newHarness(t)
	target := filepath.Join(h.dir, "out")
	h.session.Transcript = transcript.Transcript{{Role: "user", Content: "hi"}}

	h.exec("/write " + target)
	assert.Contains(t, h.out.String(), ErrNoAssistantTurn.Error())
	_, err := os.Stat(target + ".txt")
	assert.ErrorIs(t, err, os.ErrNotExist)

	h.provider.fragments = []string{"hello"}
	require.NoError(t, h.session.SendTurn(context.Background(), transcript.Message{Role: "user", Content: "again"}))
	h.exec("/write " + target)
	data, err := os.ReadFile(target + ".txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	h.exec("/write " + filepath.Join(h.dir, "answer.md"))
	data, err = os.ReadFile(filepath.Join(h.dir, "answer.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	_, err = os.Stat(filepath.Join(h.dir, "answer.md.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChangeModel(t *testing.T) {
	h := newHarness(t)
	h.exec("/changemodel mistral")
	assert.Equal(t, "mistral", h.session.Model)

	h.exec("/changemodel gpt")
	assert.Equal(t, "mistral", h.session.Model)
	assert.Contains(t, h.out.String(), "Model is not installed")

	h.out.Reset()
	h.exec("/changemodel")
	assert.Contains(t, h.out.String(), "llama3")
	assert.Equal(t, "mistral", h.session.Model)

	h.exec("hi")
	assert.Equal(t, "mistral", h.provider.requests[0].Model)
}

func TestFileComposesMessage(t *testing.T) {
	h := newHarness(t, "summarize it")
	path := filepath.Join(h.dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\n\"quoted\""), 0o600))

	h.exec("/file " + path)
	require.Len(t, h.session.Transcript, 2)
	content := h.session.Transcript[0].Content
	assert.Contains(t, content, `"notes.txt"`)
	assert.Contains(t, content, `"summarize it"`)
	assert.True(t, strings.HasSuffix(content, "line one\n\"quoted\""))
	assert.Equal(t, "hello", h.session.Transcript[1].Content)
}

func TestFileRejectsMissingAndBinary(t *testing.T) {
	h := newHarness(t)
	h.exec("/file " + filepath.Join(h.dir, "missing.txt"))
	assert.Contains(t, h.out.String(), "file not found")

	bin := filepath.Join(h.dir, "blob.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0x00}, 0o600))
	h.exec("/file " + bin)
	assert.Contains(t, h.out.String(), ErrNotText.Error())
	assert.Empty(t, h.session.Transcript)
	assert.Empty(t, h.provider.requests)
}

func TestImageAttachesPath(t *testing.T) {
	h := newHarness(t, "what is this")
	img := filepath.Join(h.dir, "cat.png")
	require.NoError(t, os.WriteFile(img, []byte("not really a png"), 0o600))

	h.exec("/image " + img)
	require.Len(t, h.session.Transcript, 2)
	assert.Equal(t, transcript.Message{Role: "user", Content: "what is this", Images: []string{img}}, h.session.Transcript[0])
	assert.Equal(t, []string{img}, h.provider.requests[0].History[0].Images)

	h.out.Reset()
	h.exec("/image " + filepath.Join(h.dir, "dog.png"))
	assert.Contains(t, h.out.String(), "image file not found")
	assert.Len(t, h.session.Transcript, 2)
}

func TestVoice(t *testing.T) {
	t.Run("recognized text becomes a chat turn", func(t *testing.T) {
		h := newHarness(t)
		listener := &fakeListener{results: []listenResult{
			{err: speech.ErrUnknownSpeech},
			{text: "tell me a joke"},
		}}
		h.session.deps.Listener = listener
		h.exec("/voice")
		assert.Contains(t, h.out.String(), "Could not understand audio")
		assert.Contains(t, h.out.String(), "You said: tell me a joke")
		require.Len(t, h.session.Transcript, 2)
		assert.Equal(t, "tell me a joke", h.session.Transcript[0].Content)
	})

	t.Run("stop phrase aborts", func(t *testing.T) {
		h := newHarness(t)
		h.session.deps.Listener = &fakeListener{results: []listenResult{{text: "Stop Voice"}}}
		h.exec("/voice")
		assert.Empty(t, h.session.Transcript)
		assert.Empty(t, h.provider.requests)
	})

	t.Run("gives up after repeated failures", func(t *testing.T) {
		h := newHarness(t)
		failure := errors.Join(speech.ErrRequestFailed, errors.New("down"))
		listener := &fakeListener{results: []listenResult{{err: failure}, {err: failure}, {err: failure}, {text: "unreached"}}}
		h.session.deps.Listener = listener
		h.exec("/voice")
		assert.Equal(t, 3, listener.calls)
		assert.Empty(t, h.session.Transcript)
		assert.Contains(t, h.out.String(), "gave up")
	})

	t.Run("spoken command is dispatched", func(t *testing.T) {
		h := newHarness(t)
		h.session.deps.Listener = &fakeListener{results: []listenResult{{text: "/exit"}}}
		assert.True(t, h.exec("/voice"))
	})
}

func TestRun(t *testing.T) {
	h := newHarness(t, "hi", "/bogus", "", "/exit", "never read")
	require.NoError(t, h.session.Run(context.Background()))
	assert.Len(t, h.session.Transcript, 2)
	assert.Contains(t, h.out.String(), "Command not found: /bogus")

	h = newHarness(t, "/?")
	require.NoError(t, h.session.Run(context.Background()))
	assert.Contains(t, h.out.String(), "/changemodel")
}

func TestSendTurnDoesNotWriteThroughCallerSlice(t *testing.T) {
	h := newHarness(t)
	base := make(transcript.Transcript, 1, 8)
	base[0] = transcript.Message{Role: "user", Content: "earlier"}
	h.session.Transcript = base

	require.NoError(t, h.session.SendTurn(context.Background(), transcript.Message{Role: "user", Content: "now"}))
	assert.Len(t, h.session.Transcript, 3)
	assert.Equal(t, transcript.Message{}, base[:2][1])
}

func TestNewWarnsWhenSavePromptEnds(t *testing.T) {
	for name, input := range map[string][]string{
		"eof at confirm": nil,
		"eof at name":    {"y"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, input...)
			h.exec("hi")
			h.exec("/new")
			assert.Contains(t, h.out.String(), "Chat not saved")
			assert.Empty(t, h.session.Transcript)
			names, err := h.store.List()
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestSaveWarnsBeforeOverwritingAnotherChat(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save("taken", transcript.Transcript{{Role: "user", Content: "old"}}, "llama3"))

	h.exec("/save taken")
	assert.Contains(t, h.out.String(), "Overwriting existing chat 'taken'")

	h.out.Reset()
	h.exec("/save taken")
	assert.NotContains(t, h.out.String(), "Overwriting")
}

func TestLoadWarnsAboutMissingImages(t *testing.T) {
	h := newHarness(t)
	kept := filepath.Join(h.dir, "kept.png")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o600))
	gone := filepath.Join(h.dir, "gone.png")
	require.NoError(t, h.store.Save("pics", transcript.Transcript{
		{Role: "user", Content: "a", Images: []string{kept}},
		{Role: "user", Content: "b", Images: []string{gone}},
	}, "llava"))

	h.exec("/load pics")
	out := h.out.String()
	assert.Contains(t, out, "Attached image "+gone+" no longer exists")
	assert.NotContains(t, out, "Attached image "+kept)
	assert.Len(t, h.session.Transcript, 2)
}

func TestFailedCommandIsLoggedWithInput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.log")
	require.NoError(t, logging.Init(logPath))
	t.Cleanup(func() { _ = logging.Close() })

	h := newHarness(t)
	h.exec("/bogus  with args")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"/bogus  with args"`)
}

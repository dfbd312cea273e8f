package lm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"songd/pkg/types"
)

// fakeBackend is an in-memory backend used for tests.
type fakeBackend struct {
	loadErr     error
	completeErr error
	tokens      []string
	text        string

	loadedDir  string
	loadedPrec string
	gotOffload bool
	closed     bool
}

func (f *fakeBackend) Load(ctx context.Context, modelDir, precision string, offload bool) error {
	f.loadedDir = modelDir
	f.loadedPrec = precision
	f.gotOffload = offload
	return f.loadErr
}

func (f *fakeBackend) Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	for _, t := range f.tokens {
		if err := onToken(t); err != nil {
			return "", err
		}
	}
	return f.text, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func createModelDir(t *testing.T, root, modelID string) string {
	t.Helper()
	dir := filepath.Join(root, modelID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return root
}

func newTestHandler(b Backend, factoryErr error) *Handler {
	h := New(zerolog.Nop())
	h.newBackend = func(name string) (Backend, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return b, nil
	}
	return h
}

func TestInitializeSuccess(t *testing.T) {
	root := createModelDir(t, t.TempDir(), "lyric-lm-0.6b")
	fb := &fakeBackend{}
	h := newTestHandler(fb, nil)

	msg, ok := h.Initialize(context.Background(), root, "lyric-lm-0.6b", BackendVLLM, "auto", true, "bf16")
	if !ok {
		t.Fatalf("expected success, got %q", msg)
	}
	if !h.Ready() {
		t.Fatalf("expected ready")
	}
	if fb.loadedPrec != "bf16" {
		t.Fatalf("precision hint not forwarded: %q", fb.loadedPrec)
	}
	if !fb.gotOffload {
		t.Fatalf("offload flag not forwarded")
	}
	if !strings.Contains(msg, "lyric-lm-0.6b") || !strings.Contains(msg, "vllm") {
		t.Fatalf("message should name model and backend: %q", msg)
	}
}

func TestInitializeMissingModelDir(t *testing.T) {
	h := newTestHandler(&fakeBackend{}, nil)
	msg, ok := h.Initialize(context.Background(), t.TempDir(), "ghost", BackendVLLM, "auto", false, "fp32")
	if ok {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(msg, "ghost") {
		t.Fatalf("message should name the missing dir: %q", msg)
	}
	if h.Ready() {
		t.Fatalf("must not be ready after failure")
	}
}

func TestInitializeUnknownBackend(t *testing.T) {
	root := createModelDir(t, t.TempDir(), "m")
	h := New(zerolog.Nop()) // real factory
	msg, ok := h.Initialize(context.Background(), root, "m", "alt-backend", "auto", false, "fp32")
	if ok {
		t.Fatalf("expected failure for unknown backend")
	}
	if !strings.Contains(msg, "alt-backend") {
		t.Fatalf("message should name the bad backend: %q", msg)
	}
}

func TestInitializeLoadErrorClosesBackend(t *testing.T) {
	root := createModelDir(t, t.TempDir(), "m")
	fb := &fakeBackend{loadErr: errors.New("boom")}
	h := newTestHandler(fb, nil)
	if _, ok := h.Initialize(context.Background(), root, "m", BackendPT, "auto", false, "fp32"); ok {
		t.Fatalf("expected failure")
	}
	if !fb.closed {
		t.Fatalf("backend should be closed after failed load")
	}
}

func TestCompleteBeforeInit(t *testing.T) {
	h := New(zerolog.Nop())
	var buf bytes.Buffer
	err := h.Complete(context.Background(), types.LyricsRequest{Prompt: "p"}, &buf, nil)
	if err == nil || !IsNotInitialized(err) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
}

func TestCompleteStreamsTokensAndFinal(t *testing.T) {
	root := createModelDir(t, t.TempDir(), "m")
	fb := &fakeBackend{tokens: []string{"la", " la"}, text: "la la"}
	h := newTestHandler(fb, nil)
	if _, ok := h.Initialize(context.Background(), root, "m", BackendPT, "auto", false, "fp32"); !ok {
		t.Fatalf("init failed")
	}

	var buf bytes.Buffer
	flushed := 0
	if err := h.Complete(context.Background(), types.LyricsRequest{Prompt: "p"}, &buf, func() { flushed++ }); err != nil {
		t.Fatalf("complete: %v", err)
	}
	lines := 0
	for _, b := range buf.Bytes() {
		if b == '\n' {
			lines++
		}
	}
	// 2 token lines + 1 final
	if lines != 3 {
		t.Fatalf("expected 3 NDJSON lines, got %d:\n%s", lines, buf.String())
	}
	if flushed == 0 {
		t.Fatalf("expected flusher calls")
	}
	if !strings.Contains(buf.String(), `"lyrics":"la la"`) {
		t.Fatalf("final line should carry lyrics: %s", buf.String())
	}
}

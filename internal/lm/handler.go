// Package lm hosts the language-model handler used for lyric generation.
// It depends on the checkpoint directory the music pipeline derives and
// inherits the pipeline's active precision.
package lm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"songd/pkg/types"
)

// State represents lifecycle state of the handler.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
)

// Handler is the secondary model handler. A process-wide singleton shared by
// every session once serving starts.
type Handler struct {
	mu  sync.RWMutex
	log zerolog.Logger

	// newBackend is swappable in tests.
	newBackend func(name string) (Backend, error)

	state       State
	modelID     string
	backendName string
	device      string
	precision   string
	offload     bool
	modelDir    string
	backend     Backend
}

// New constructs an uninitialized Handler.
func New(log zerolog.Logger) *Handler {
	return &Handler{
		log:        log.With().Str("component", "lm").Logger(),
		newBackend: newBackend,
		state:      StateUnloaded,
	}
}

// Initialize brings up the language model from the checkpoint directory the
// pipeline derived. Never returns an error: the outcome is the (message, ok)
// pair, and failure leaves the handler unusable but the process serving.
func (h *Handler) Initialize(ctx context.Context, checkpointDir, modelID, backendName, device string, offload bool, precision string) (string, bool) {
	h.mu.Lock()
	h.state = StateLoading
	h.modelID = modelID
	h.backendName = backendName
	h.device = device
	h.offload = offload
	h.precision = precision
	h.modelDir = filepath.Join(checkpointDir, modelID)
	dir := h.modelDir
	h.mu.Unlock()

	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return h.fail(fmt.Sprintf("language model init failed: model dir %s not found", dir))
	}
	b, err := h.newBackend(backendName)
	if err != nil {
		return h.fail(fmt.Sprintf("language model init failed: %v", err))
	}
	if err := b.Load(ctx, dir, precision, offload); err != nil {
		_ = b.Close()
		return h.fail(fmt.Sprintf("language model init failed: %v", err))
	}

	h.mu.Lock()
	h.backend = b
	h.state = StateReady
	h.mu.Unlock()

	msg := fmt.Sprintf("language model ready: model=%s backend=%s precision=%s offload=%v",
		modelID, backendName, precision, offload)
	h.log.Info().Str("model_dir", dir).Msg(msg)
	return msg, true
}

func (h *Handler) fail(msg string) (string, bool) {
	h.mu.Lock()
	h.state = StateError
	h.mu.Unlock()
	h.log.Warn().Msg(msg)
	return msg, false
}

// Ready reports whether lyric generation is available.
func (h *Handler) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state == StateReady
}

// Complete generates lyrics for the request, streaming NDJSON token lines to
// w followed by a final line with the full text.
func (h *Handler) Complete(ctx context.Context, req types.LyricsRequest, w io.Writer, flusher func()) error {
	h.mu.RLock()
	state := h.state
	b := h.backend
	h.mu.RUnlock()

	if state != StateReady || b == nil {
		return notInitializedError{msg: "language model not initialized"}
	}

	params := Params{MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	onTok := func(tok string) error {
		if _, err := w.Write(tokenLineJSON(tok)); err != nil {
			return err
		}
		if flusher != nil {
			flusher()
		}
		return nil
	}
	text, err := b.Complete(ctx, req.Prompt, params, onTok)
	if err != nil {
		return err
	}

	end := map[string]any{"done": true, "lyrics": text}
	jb, _ := json.Marshal(end)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		return err
	}
	if flusher != nil {
		flusher()
	}
	return nil
}

// Close releases the backend, if any.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.backend != nil {
		err := h.backend.Close()
		h.backend = nil
		return err
	}
	return nil
}

// tokenLineJSON formats a token NDJSON line using json.Marshal for correctness.
func tokenLineJSON(tok string) []byte {
	type tokenMsg struct {
		Token string `json:"token"`
	}
	b, _ := json.Marshal(tokenMsg{Token: tok})
	return append(b, '\n')
}

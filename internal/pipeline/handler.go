// Package pipeline hosts the music generation model handler: checkpoint
// resolution, initialization and streaming generation.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"songd/internal/hw"
)

// State represents lifecycle state of the handler.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
)

// Synthesizer is the audio generation runtime backing the handler. Concrete
// implementations own accelerator access and serialize it internally.
type Synthesizer interface {
	// Load prepares the runtime from a checkpoint directory.
	Load(ctx context.Context, checkpointDir, device, precision string, offload, flashAttn bool) error
	// Synthesize produces audio for a prompt, reporting progress per
	// diffusion step. Must return promptly when the context is canceled.
	Synthesize(ctx context.Context, job Job, onProgress func(step, total int) error) (Result, error)
	// Close releases runtime resources.
	Close() error
}

// Job carries the generation parameters handed to the synthesizer.
type Job struct {
	Prompt          string
	Lyrics          string
	DurationSeconds int
	Steps           int
	Seed            int64
}

// Result summarizes a finished generation.
type Result struct {
	AudioPath       string  `json:"audio_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
}

// Handler is the primary model handler. One instance per process, shared by
// every session; initialization happens once, before serving starts.
type Handler struct {
	mu  sync.RWMutex
	log zerolog.Logger

	root  string
	synth Synthesizer

	state     State
	modelID   string
	device    string
	precision string
	offload   bool
	ckptDir   string
}

// New constructs a Handler rooted at the given checkpoints directory.
func New(checkpointsRoot string, log zerolog.Logger) *Handler {
	return &Handler{
		root:  checkpointsRoot,
		log:   log.With().Str("component", "pipeline").Logger(),
		state: StateUnloaded,
	}
}

// SetSynthesizer installs the generation runtime. Must be called before
// Initialize when real audio output is wanted; without one the handler still
// initializes but Generate reports the runtime as unavailable.
func (h *Handler) SetSynthesizer(s Synthesizer) {
	h.mu.Lock()
	h.synth = s
	h.mu.Unlock()
}

// FlashAttnAvailable reports whether the accelerator supports fused
// attention. Queried by the coordinator before initialization.
func (h *Handler) FlashAttnAvailable() bool {
	return hw.FlashAttnSupported()
}

// Initialize loads the music generation model. It never returns an error:
// the outcome is the (message, ok) pair, and a failed load leaves the
// handler in StateError with generation disabled.
func (h *Handler) Initialize(ctx context.Context, modelID, device string, offload, flashAttn bool) (string, bool) {
	h.mu.Lock()
	h.state = StateLoading
	h.modelID = modelID
	h.offload = offload
	h.device = resolveDevice(device)
	h.precision = precisionFor(h.device)
	h.ckptDir = checkpointDir(h.root, modelID)
	dir := h.ckptDir
	dev := h.device
	prec := h.precision
	synth := h.synth
	h.mu.Unlock()

	if err := verifyCheckpoints(dir); err != nil {
		return h.fail(fmt.Sprintf("music pipeline init failed: %v", err))
	}
	if synth != nil {
		if err := synth.Load(ctx, dir, dev, prec, offload, flashAttn); err != nil {
			return h.fail(fmt.Sprintf("music pipeline init failed: %v", err))
		}
	}

	h.mu.Lock()
	h.state = StateReady
	h.mu.Unlock()

	msg := fmt.Sprintf("music pipeline ready: model=%s device=%s precision=%s offload=%v flash_attn=%v",
		modelID, dev, prec, offload, flashAttn)
	if dev == "cpu" {
		msg = fmt.Sprintf("music pipeline ready: model=%s no accelerator detected, running on cpu precision=%s",
			modelID, prec)
	}
	h.log.Info().Str("checkpoint_dir", dir).Msg(msg)
	return msg, true
}

func (h *Handler) fail(msg string) (string, bool) {
	h.mu.Lock()
	h.state = StateError
	h.mu.Unlock()
	h.log.Warn().Msg(msg)
	return msg, false
}

// CheckpointDir returns the derived checkpoint location. Valid even after a
// failed initialization; downstream components may still find shared assets
// there.
func (h *Handler) CheckpointDir() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ckptDir != "" {
		return h.ckptDir
	}
	return checkpointDir(h.root, h.modelID)
}

// ActivePrecision returns the numeric precision the pipeline runs with.
func (h *Handler) ActivePrecision() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.precision
}

// Close releases the synthesizer, if one was installed.
func (h *Handler) Close() error {
	h.mu.Lock()
	synth := h.synth
	h.synth = nil
	h.state = StateUnloaded
	h.mu.Unlock()
	if synth != nil {
		return synth.Close()
	}
	return nil
}

// Ready reports whether generation is enabled.
func (h *Handler) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state == StateReady
}

func resolveDevice(device string) string {
	if device != "" && device != "auto" {
		return device
	}
	if hw.HasAccelerator() {
		return "cuda"
	}
	return "cpu"
}

// precisionFor picks the working dtype: bf16 on accelerators, fp32 on cpu.
// The language model inherits this choice so tensors cross the interface
// without conversion.
func precisionFor(device string) string {
	if device == "cpu" {
		return "fp32"
	}
	return "bf16"
}

package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"songd/pkg/types"
)

// Generate runs one generation job and streams NDJSON progress lines to w:
// one {"step":n,"total":m} line per reported step and a final line carrying
// the result. Admission control is the caller's concern; the handler only
// refuses work when it is not in a servable state.
func (h *Handler) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flusher func()) error {
	h.mu.RLock()
	state := h.state
	synth := h.synth
	h.mu.RUnlock()

	if state != StateReady {
		return generationDisabledError{msg: "music pipeline not initialized, generation disabled"}
	}
	if synth == nil {
		// No mocked audio in production binaries: refuse instead of pretending.
		return runtimeUnavailableError{msg: "audio synthesis runtime not configured"}
	}

	job := Job{
		Prompt:          strings.TrimSpace(req.Prompt),
		Lyrics:          req.Lyrics,
		DurationSeconds: req.DurationSeconds,
		Steps:           req.Steps,
		Seed:            req.Seed,
	}

	onProgress := func(step, total int) error {
		if _, err := w.Write(progressLineJSON(step, total)); err != nil {
			return err
		}
		if flusher != nil {
			flusher()
		}
		return nil
	}
	res, err := synth.Synthesize(ctx, job, onProgress)
	if err != nil {
		return err
	}

	end := map[string]any{
		"done":             true,
		"audio_path":       res.AudioPath,
		"duration_seconds": res.DurationSeconds,
		"sample_rate":      res.SampleRate,
	}
	jb, _ := json.Marshal(end)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		return err
	}
	if flusher != nil {
		flusher()
	}
	return nil
}

// progressLineJSON formats a progress NDJSON line using json.Marshal for correctness.
func progressLineJSON(step, total int) []byte {
	type progressMsg struct {
		Step  int `json:"step"`
		Total int `json:"total"`
	}
	b, _ := json.Marshal(progressMsg{Step: step, Total: total})
	return append(b, '\n')
}

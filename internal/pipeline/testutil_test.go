package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// createCheckpoint lays out a checkpoint directory with one weight file and
// returns the root directory.
func createCheckpoint(t *testing.T, root, modelID string) string {
	t.Helper()
	dir := filepath.Join(root, modelID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.safetensors"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	return root
}

// fakeSynth is a lightweight in-memory synthesizer used for tests.
type fakeSynth struct {
	loadErr  error
	synthErr error
	steps    int
	result   Result

	loadedDir  string
	loadedDev  string
	loadedPrec string
	gotOffload bool
}

func (f *fakeSynth) Load(ctx context.Context, checkpointDir, device, precision string, offload, flashAttn bool) error {
	f.loadedDir = checkpointDir
	f.loadedDev = device
	f.loadedPrec = precision
	f.gotOffload = offload
	return f.loadErr
}

func (f *fakeSynth) Synthesize(ctx context.Context, job Job, onProgress func(step, total int) error) (Result, error) {
	if f.synthErr != nil {
		return Result{}, f.synthErr
	}
	for i := 1; i <= f.steps; i++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		if err := onProgress(i, f.steps); err != nil {
			return Result{}, err
		}
	}
	return f.result, nil
}

func (f *fakeSynth) Close() error { return nil }

//go:build llama

package lm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// ptBackend runs the language model in-process via llama.cpp. Built only
// with the 'llama' tag so default builds and CI stay CGO-free.
type ptBackend struct {
	model   *llama.LLama
	ctxSize int
	threads int
}

func newPTBackend() Backend {
	return &ptBackend{ctxSize: 2048, threads: 4}
}

func (b *ptBackend) Load(ctx context.Context, modelDir, precision string, offload bool) error {
	path, err := findGGUF(modelDir)
	if err != nil {
		return err
	}
	mo := []llama.ModelOption{
		llama.SetContext(b.ctxSize),
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return err
	}
	b.model = m
	return nil
}

func (b *ptBackend) Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (string, error) {
	if b.model == nil {
		return "", errors.New("llama model not loaded")
	}
	b.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return false
			}
		}
		return true
	})
	po := []llama.PredictOption{
		llama.SetThreads(b.threads),
	}
	if params.MaxTokens > 0 {
		po = append(po, llama.SetTokens(params.MaxTokens))
	}
	if params.Temperature > 0 {
		po = append(po, llama.SetTemperature(float32(params.Temperature)))
	}
	text, err := b.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (b *ptBackend) Close() error {
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	return nil
}

// findGGUF locates a gguf weight file under the model directory.
func findGGUF(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errors.New("no gguf file in " + dir)
}

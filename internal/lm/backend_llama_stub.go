//go:build !llama

package lm

import "context"

// This stub stands in for the in-process llama.cpp backend when the 'llama'
// build tag is not set, keeping default builds and CI CGO-free. Load still
// succeeds so the service comes up; completion requests fail fast instead of
// returning mocked text.

type ptBackend struct{}

func newPTBackend() Backend { return ptBackend{} }

func (ptBackend) Load(ctx context.Context, modelDir, precision string, offload bool) error {
	return nil
}

func (ptBackend) Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return "", backendUnavailableError{msg: "pt backend not built (missing 'llama' build tag)"}
}

func (ptBackend) Close() error { return nil }

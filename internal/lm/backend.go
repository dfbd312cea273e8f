package lm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend abstracts the language-model decoding runtime. Concrete
// implementations serialize their own accelerator access.
type Backend interface {
	// Load prepares the backend from an on-disk model directory. The
	// precision tag must match the pipeline's active precision.
	Load(ctx context.Context, modelDir, precision string, offload bool) error
	// Complete generates a completion, invoking onToken per emitted chunk,
	// and returns the full text.
	Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (string, error)
	// Close releases backend resources.
	Close() error
}

// Params captures generation parameters passed to the backend.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Recognized backend selectors.
const (
	BackendVLLM = "vllm"
	BackendPT   = "pt"
)

// defaultVLLMBaseURL is where a colocated vllm-compatible server listens.
const defaultVLLMBaseURL = "http://127.0.0.1:8000"

// newBackend maps a backend selector to an implementation. Unknown selectors
// are an initialization failure, not a silent fallback.
func newBackend(name string) (Backend, error) {
	switch name {
	case BackendVLLM:
		base := defaultVLLMBaseURL
		if v := os.Getenv("SONGD_VLLM_URL"); v != "" {
			base = v
		}
		return newVLLMBackend(base, 120*time.Second, 5*time.Second), nil
	case BackendPT:
		return newPTBackend(), nil
	default:
		return nil, fmt.Errorf("unknown lm backend %q (expected %q or %q)", name, BackendVLLM, BackendPT)
	}
}

// vllmBackend talks to a vllm-compatible server over its OpenAI-style HTTP
// API. Load is local-only (checkpoint validation happens in the handler);
// the server is contacted lazily on the first completion so a slow engine
// start cannot stall service bring-up.
type vllmBackend struct {
	baseURL        string
	reqTimeout     time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
	model          string
}

func newVLLMBackend(baseURL string, reqTimeout, connectTimeout time.Duration) *vllmBackend {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	// Timeout stays 0 on the client: every request carries a context deadline.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &vllmBackend{
		baseURL:        strings.TrimRight(baseURL, "/"),
		reqTimeout:     reqTimeout,
		connectTimeout: connectTimeout,
		httpClient:     cli,
	}
}

func (b *vllmBackend) Load(ctx context.Context, modelDir, precision string, offload bool) error {
	// The served model name is the directory base; the engine maps it back
	// to the same checkpoint files.
	b.model = filepath.Base(modelDir)
	return nil
}

func (b *vllmBackend) Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (string, error) {
	body := map[string]any{
		"model":  b.model,
		"prompt": prompt,
	}
	if params.MaxTokens > 0 {
		body["max_tokens"] = params.MaxTokens
	}
	if params.Temperature > 0 {
		body["temperature"] = params.Temperature
	}
	jb, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	rctx := ctx
	if b.reqTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, b.reqTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, b.baseURL+"/v1/completions", bytes.NewReader(jb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", backendUnavailableError{msg: fmt.Sprintf("lm server unreachable: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("lm server status %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var out struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode lm response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("lm server returned no choices")
	}
	text := out.Choices[0].Text
	if onToken != nil {
		if err := onToken(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (b *vllmBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

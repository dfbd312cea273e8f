package e2e

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"songd/internal/bootstrap"
	"songd/internal/httpapi"
	"songd/internal/lm"
	"songd/internal/pipeline"
	"songd/internal/policy"
	"songd/pkg/types"
)

const (
	primaryID = "acestep-v15-base"
	lmID      = "lyric-lm-0.6b"
)

// createCheckpointTree lays out a checkpoints root the way a real install
// looks: weight files under <root>/<primary>/, with the lyric model nested
// inside the primary's directory. When withWeights is false the primary dir
// exists but holds no weight files, so pipeline verification fails while the
// lyric model dir is still reachable.
func createCheckpointTree(t *testing.T, withWeights bool) string {
	t.Helper()
	root := t.TempDir()
	primaryDir := filepath.Join(root, primaryID)
	lmDir := filepath.Join(primaryDir, lmID)
	if err := os.MkdirAll(lmDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", lmDir, err)
	}
	if withWeights {
		p := filepath.Join(primaryDir, "model.safetensors")
		if err := os.WriteFile(p, []byte("w"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	if err := os.WriteFile(filepath.Join(lmDir, "config.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write lm config: %v", err)
	}
	return root
}

// stack is everything startServer wires together, for assertions and cleanup.
type stack struct {
	srv     *httptest.Server
	rec     types.ReadinessRecord
	primary *pipeline.Handler
	lm      *lm.Handler
}

// startServer runs the full bring-up sequence against the given checkpoints
// root and serves the result over a test HTTP listener.
func startServer(t *testing.T, root string, synth pipeline.Synthesizer, queueSize int, maxWait time.Duration) *stack {
	t.Helper()
	log := zerolog.Nop()

	profile := types.HardwareProfile{} // no accelerator
	cfg := policy.Derive(profile, types.Overrides{CheckpointsDir: root})

	primary := pipeline.New(cfg.CheckpointsDir, log)
	if synth != nil {
		primary.SetSynthesizer(synth)
	}
	secondary := lm.New(log)

	coord := bootstrap.NewCoordinator(primary, secondary, log)
	outcomes := coord.Run(context.Background(), cfg)
	rec := bootstrap.Aggregate(profile, cfg, outcomes)

	api := httpapi.New(&rec, primary, secondary, httpapi.Options{
		QueueCapacity: queueSize,
		MaxWait:       maxWait,
		Logger:        log,
	})
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = primary.Close()
		_ = secondary.Close()
	})
	return &stack{srv: ts, rec: rec, primary: primary, lm: secondary}
}

// blockingSynth parks inside Synthesize until released, to hold a generation
// slot open during backpressure tests.
type blockingSynth struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingSynth() *blockingSynth {
	return &blockingSynth{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (s *blockingSynth) Load(ctx context.Context, checkpointDir, device, precision string, offload, flashAttn bool) error {
	return nil
}

func (s *blockingSynth) Synthesize(ctx context.Context, job pipeline.Job, onProgress func(step, total int) error) (pipeline.Result, error) {
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}
	return pipeline.Result{AudioPath: "/tmp/out.flac", DurationSeconds: 1, SampleRate: 44100}, nil
}

func (s *blockingSynth) Close() error { return nil }

// Package bootstrap sequences service initialization: it runs the two model
// initializers in dependency order, tolerates partial failure, and folds the
// results into one readiness record for the serving layer.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"songd/pkg/types"
)

// Component names used in outcomes, in initialization order.
const (
	ComponentPipeline = "pipeline"
	ComponentLM       = "lm"
)

// PrimaryInitializer is the music pipeline's initialization contract.
type PrimaryInitializer interface {
	Initialize(ctx context.Context, modelID, device string, offload, flashAttn bool) (string, bool)
	// CheckpointDir must be answerable even after a failed Initialize; the
	// secondary stage consumes it unconditionally.
	CheckpointDir() string
	ActivePrecision() string
	FlashAttnAvailable() bool
}

// SecondaryInitializer is the language model's initialization contract.
type SecondaryInitializer interface {
	Initialize(ctx context.Context, checkpointDir, modelID, backend, device string, offload bool, precision string) (string, bool)
}

// Coordinator drives the two-stage startup sequence. Strictly sequential:
// the secondary stage consumes the checkpoint directory and precision the
// primary stage produces.
type Coordinator struct {
	log       zerolog.Logger
	primary   PrimaryInitializer
	secondary SecondaryInitializer
}

// NewCoordinator wires the coordinator with both initializers.
func NewCoordinator(primary PrimaryInitializer, secondary SecondaryInitializer, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		log:       log.With().Str("component", "bootstrap").Logger(),
		primary:   primary,
		secondary: secondary,
	}
}

// Run executes both stages and returns their outcomes in invocation order.
// No fault escapes: initializer panics are recovered into failed outcomes,
// failures are recorded and the sequence always runs to completion. Stages
// are never retried here; re-running the process is the operator's call.
func (c *Coordinator) Run(ctx context.Context, cfg types.ServiceConfig) []types.InitOutcome {
	outcomes := make([]types.InitOutcome, 0, 2)

	// Stage 1: music pipeline. The capability query comes from the
	// initializer itself, before the stage runs.
	flashAttn := false
	guardQuery(func() {
		flashAttn = c.primary.FlashAttnAvailable()
	})
	primary := c.runStage(ComponentPipeline, func() (string, bool) {
		return c.primary.Initialize(ctx, cfg.PrimaryModel, cfg.Device, cfg.OffloadPrimary, flashAttn)
	})
	outcomes = append(outcomes, primary)
	if !primary.OK {
		c.log.Warn().Str("component", ComponentPipeline).Msg("primary initialization failed, continuing with generation disabled")
	}

	// Dependency edge: the checkpoint directory is read regardless of the
	// primary outcome; partially shared assets may still serve the lm.
	ckptDir := ""
	precision := ""
	guardQuery(func() {
		ckptDir = c.primary.CheckpointDir()
		precision = c.primary.ActivePrecision()
	})

	// Stage 2: language model. Never skipped.
	secondary := c.runStage(ComponentLM, func() (string, bool) {
		return c.secondary.Initialize(ctx, ckptDir, cfg.SecondaryModel, cfg.Backend, cfg.Device, cfg.OffloadSecondary, precision)
	})
	outcomes = append(outcomes, secondary)
	if !secondary.OK {
		c.log.Warn().Str("component", ComponentLM).Msg("secondary initialization failed, lyric support degraded")
	}

	return outcomes
}

// runStage invokes one initializer, converting panics into failed outcomes
// so no fault can abort the sequence.
func (c *Coordinator) runStage(component string, fn func() (string, bool)) (out types.InitOutcome) {
	c.log.Info().Str("component", component).Msg("initialization started")
	start := time.Now()
	out = types.InitOutcome{Component: component}

	defer func() {
		if r := recover(); r != nil {
			out.Message = fmt.Sprintf("%s initializer panicked: %v", component, r)
			out.OK = false
		}
		observeStage(component, out.OK, time.Since(start))
		c.log.Info().
			Str("component", component).
			Bool("ok", out.OK).
			Dur("dur", time.Since(start)).
			Msg(out.Message)
	}()

	out.Message, out.OK = fn()
	return out
}

// guardQuery runs a side query against panics. Results stay at their zero
// values when the query blows up.
func guardQuery(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

package bootstrap

import (
	"strings"

	"songd/pkg/types"
)

// Aggregate folds the probe result, derived configuration and stage outcomes
// into one readiness record. Pure function, no side effects.
//
// GenerationEnabled is taken solely from the primary (first) outcome; a
// failed language model degrades lyric support without disabling generation.
// The transcript is the ordered concatenation of every stage message, no
// deduplication, no truncation.
func Aggregate(profile types.HardwareProfile, cfg types.ServiceConfig, outcomes []types.InitOutcome) types.ReadinessRecord {
	rec := types.ReadinessRecord{
		Hardware: profile,
		Config:   cfg,
		Outcomes: append([]types.InitOutcome(nil), outcomes...),
	}
	if len(outcomes) > 0 {
		rec.GenerationEnabled = outcomes[0].OK
	}
	msgs := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		msgs = append(msgs, o.Message)
	}
	rec.Transcript = strings.Join(msgs, "\n")
	return rec
}

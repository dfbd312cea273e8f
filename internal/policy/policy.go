// Package policy derives the immutable ServiceConfig a process runs with
// from the probed hardware profile and externally supplied overrides.
package policy

import "songd/pkg/types"

// OffloadThresholdGB is the accelerator memory below which model weights are
// offloaded to host memory. Cards at or above the threshold hold everything
// resident.
const OffloadThresholdGB = 16

// Built-in defaults used when neither the profile nor the overrides dictate
// a value.
const (
	DefaultPrimaryModel   = "acestep-v15-base"
	DefaultSecondaryModel = "lyric-lm-0.6b"
	DefaultBackend        = "vllm"
	DefaultDevice         = "auto"
	DefaultCheckpointsDir = "~/checkpoints/acestep"
)

// Derive merges the hardware profile with overrides into a ServiceConfig.
// Pure: identical inputs always yield an identical config.
//
// Offload is enabled only for a present-but-small accelerator
// (0 < mem < threshold). A zero reading means cpu-only execution, which
// needs no offload accommodation.
func Derive(profile types.HardwareProfile, ov types.Overrides) types.ServiceConfig {
	offload := profile.MemoryGB > 0 && profile.MemoryGB < OffloadThresholdGB

	cfg := types.ServiceConfig{
		PrimaryModel:     DefaultPrimaryModel,
		SecondaryModel:   DefaultSecondaryModel,
		Backend:          DefaultBackend,
		Device:           DefaultDevice,
		CheckpointsDir:   DefaultCheckpointsDir,
		OffloadPrimary:   offload,
		OffloadSecondary: offload,
	}

	if ov.PrimaryModel != "" {
		cfg.PrimaryModel = ov.PrimaryModel
	}
	if ov.SecondaryModel != "" {
		cfg.SecondaryModel = ov.SecondaryModel
	}
	if ov.Backend != "" {
		cfg.Backend = ov.Backend
	}
	if ov.CheckpointsDir != "" {
		cfg.CheckpointsDir = ov.CheckpointsDir
	}
	return cfg
}

package policy

import (
	"reflect"
	"testing"

	"songd/pkg/types"
)

func TestDeriveOffloadRule(t *testing.T) {
	cases := []struct {
		memGB   float64
		offload bool
	}{
		{0, false},   // no accelerator: cpu-only, no offload
		{0.5, true},  // tiny card
		{8, true},    // small card
		{15.99, true},
		{16, false}, // at threshold: everything fits
		{24, false},
		{80, false},
	}
	for _, c := range cases {
		cfg := Derive(types.HardwareProfile{MemoryGB: c.memGB}, types.Overrides{})
		if cfg.OffloadPrimary != c.offload || cfg.OffloadSecondary != c.offload {
			t.Fatalf("mem=%v: expected offload=%v, got primary=%v secondary=%v",
				c.memGB, c.offload, cfg.OffloadPrimary, cfg.OffloadSecondary)
		}
	}
}

func TestDeriveDefaults(t *testing.T) {
	cfg := Derive(types.HardwareProfile{MemoryGB: 24}, types.Overrides{})
	if cfg.PrimaryModel != DefaultPrimaryModel {
		t.Fatalf("expected default primary model, got %q", cfg.PrimaryModel)
	}
	if cfg.SecondaryModel != DefaultSecondaryModel {
		t.Fatalf("expected default secondary model, got %q", cfg.SecondaryModel)
	}
	if cfg.Backend != DefaultBackend {
		t.Fatalf("expected default backend, got %q", cfg.Backend)
	}
	if cfg.Device != "auto" {
		t.Fatalf("expected device auto, got %q", cfg.Device)
	}
}

func TestDeriveOverridesWin(t *testing.T) {
	ov := types.Overrides{
		PrimaryModel:   "acestep-v15-turbo",
		SecondaryModel: "lyric-lm-1.7b",
		Backend:        "pt",
		CheckpointsDir: "/data/checkpoints",
	}
	cfg := Derive(types.HardwareProfile{MemoryGB: 8}, ov)
	if cfg.PrimaryModel != ov.PrimaryModel {
		t.Fatalf("primary override ignored: %q", cfg.PrimaryModel)
	}
	if cfg.SecondaryModel != ov.SecondaryModel {
		t.Fatalf("secondary override ignored: %q", cfg.SecondaryModel)
	}
	if cfg.Backend != "pt" {
		t.Fatalf("backend override ignored: %q", cfg.Backend)
	}
	if cfg.CheckpointsDir != "/data/checkpoints" {
		t.Fatalf("checkpoints override ignored: %q", cfg.CheckpointsDir)
	}
	// Offload is always derived, never overridden.
	if !cfg.OffloadPrimary || !cfg.OffloadSecondary {
		t.Fatalf("expected offload derived from 8GB profile")
	}
}

func TestDeriveIsPure(t *testing.T) {
	profile := types.HardwareProfile{MemoryGB: 11.2, DeviceName: "x", HostMemoryGB: 32}
	ov := types.Overrides{Backend: "pt"}
	a := Derive(profile, ov)
	b := Derive(profile, ov)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Derive not deterministic: %+v vs %+v", a, b)
	}
}

package types

// HardwareProfile captures what the probe learned about the host at startup.
// A zero MemoryGB means no usable accelerator was detected; it is a valid
// reading, not a probe failure.
type HardwareProfile struct {
	// Total accelerator memory in gigabytes. 0 when no accelerator is present.
	// example: 24
	MemoryGB float64 `json:"memory_gb" example:"24"`
	// Accelerator device name as reported by the driver, empty when absent.
	// example: NVIDIA GeForce RTX 4090
	DeviceName string `json:"device_name,omitempty" example:"NVIDIA GeForce RTX 4090"`
	// Total host RAM in gigabytes, informational.
	// example: 64
	HostMemoryGB float64 `json:"host_memory_gb,omitempty" example:"64"`
}

// Overrides carries externally supplied configuration values. Empty fields
// mean "use the derived default".
type Overrides struct {
	PrimaryModel   string `json:"primary_model,omitempty" yaml:"primary_model" toml:"primary_model"`
	SecondaryModel string `json:"secondary_model,omitempty" yaml:"secondary_model" toml:"secondary_model"`
	Backend        string `json:"backend,omitempty" yaml:"backend" toml:"backend"`
	CheckpointsDir string `json:"checkpoints_dir,omitempty" yaml:"checkpoints_dir" toml:"checkpoints_dir"`
}

// ServiceConfig is the immutable configuration both model stages run with.
// Derived once from a HardwareProfile plus Overrides; never re-read mid-sequence.
type ServiceConfig struct {
	// Identifier of the music generation model.
	// example: acestep-v15-base
	PrimaryModel string `json:"primary_model" example:"acestep-v15-base"`
	// Identifier of the language model used for lyrics.
	// example: lyric-lm-0.6b
	SecondaryModel string `json:"secondary_model" example:"lyric-lm-0.6b"`
	// Language-model serving backend.
	// example: vllm
	Backend string `json:"backend" example:"vllm"`
	// Target device; "auto" lets the handlers pick.
	// example: auto
	Device string `json:"device" example:"auto"`
	// Root directory holding model checkpoints.
	// example: /home/user/checkpoints/acestep
	CheckpointsDir string `json:"checkpoints_dir" example:"/home/user/checkpoints/acestep"`
	// Whether the music pipeline offloads weights to host memory.
	// example: true
	OffloadPrimary bool `json:"offload_primary" example:"true"`
	// Whether the language model offloads weights to host memory.
	// example: true
	OffloadSecondary bool `json:"offload_secondary" example:"true"`
}

// InitOutcome records one initializer invocation. Produced exactly once per
// stage, in stage order, and never mutated afterwards.
type InitOutcome struct {
	// Component that was initialized.
	// example: pipeline
	Component string `json:"component" example:"pipeline"`
	// Human-readable status line produced by the initializer.
	// example: music pipeline ready: model=acestep-v15-base precision=bf16
	Message string `json:"message" example:"music pipeline ready: model=acestep-v15-base precision=bf16"`
	// Whether the component came up usable.
	// example: true
	OK bool `json:"ok" example:"true"`
}

// ReadinessRecord is the immutable summary of hardware detection,
// configuration and initialization handed to the serving layer.
type ReadinessRecord struct {
	Hardware HardwareProfile `json:"hardware"`
	Config   ServiceConfig   `json:"config"`
	// One outcome per stage, in initialization order (pipeline first).
	Outcomes []InitOutcome `json:"outcomes"`
	// True only when the music pipeline initialized successfully. A failed
	// language model does not clear this flag.
	// example: true
	GenerationEnabled bool `json:"generation_enabled" example:"true"`
	// Ordered concatenation of every stage message.
	Transcript string `json:"transcript"`
}

package hw

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"

	"songd/pkg/types"
)

// probeTimeout bounds every external query so a wedged driver cannot hang
// startup.
const probeTimeout = 5 * time.Second

// Probe inspects the host and returns a HardwareProfile. It is a total
// function: any fault (missing driver, unsupported platform, permission
// error) is logged and degrades to a zero-memory profile rather than being
// returned to the caller.
func Probe(log zerolog.Logger) types.HardwareProfile {
	profile := types.HardwareProfile{}

	memGB, name, err := queryAcceleratorMemory()
	if err != nil {
		log.Warn().Err(err).Msg("accelerator probe failed, assuming cpu-only host")
	} else {
		profile.MemoryGB = memGB
		profile.DeviceName = name
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("host memory probe failed")
	} else {
		profile.HostMemoryGB = float64(vm.Total) / (1024 * 1024 * 1024)
	}

	return profile
}

// queryAcceleratorMemory asks nvidia-smi for the total memory of device 0.
// Returns an error when no accelerator (or no driver) is available.
func queryAcceleratorMemory() (float64, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.total,name", "--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		return 0, "", err
	}
	return parseSMIMemory(string(out))
}

// parseSMIMemory parses nvidia-smi CSV output like "24564, NVIDIA RTX 4090".
// Only the first device line is considered.
func parseSMIMemory(out string) (float64, string, error) {
	line := out
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	parts := strings.SplitN(line, ",", 2)
	mib, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, "", err
	}
	name := ""
	if len(parts) == 2 {
		name = strings.TrimSpace(parts[1])
	}
	return mib / 1024, name, nil
}

// HasAccelerator reports whether a usable accelerator is present.
func HasAccelerator() bool {
	gb, _, err := queryAcceleratorMemory()
	return err == nil && gb > 0
}

// FlashAttnSupported reports whether the accelerator supports fused
// attention kernels (Ampere or newer, compute capability >= 8.0). Best
// effort: any query failure yields false.
func FlashAttnSupported() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=compute_cap", "--format=csv,noheader")
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	cc, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return false
	}
	return cc >= 8.0
}

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// weight file extensions we accept as evidence of a usable checkpoint.
var weightExts = []string{".safetensors", ".bin", ".ckpt", ".pt"}

// checkpointDir derives the on-disk checkpoint location for a model id under
// the given root. Purely computed; does not touch the filesystem. Downstream
// stages need the path even when the checkpoint is missing or broken.
func checkpointDir(root, modelID string) string {
	base, err := expandHome(root)
	if err != nil {
		base = root
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		abs = base
	}
	return filepath.Join(abs, modelID)
}

// verifyCheckpoints checks that dir exists and holds at least one weight
// file, scanning recursively one level into component subdirectories.
func verifyCheckpoints(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("checkpoint path is not a directory: %s", dir)
	}
	if hasWeightFiles(dir) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read checkpoint dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && hasWeightFiles(filepath.Join(dir, e.Name())) {
			return nil
		}
	}
	return fmt.Errorf("no weight files under %s", dir)
}

func hasWeightFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		for _, ext := range weightExts {
			if strings.HasSuffix(name, ext) {
				return true
			}
		}
	}
	return false
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/checkpoints/acestep
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

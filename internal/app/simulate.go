package app

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// Simulate writes non-destructive ".locked" copies of up to count files
// (XOR-mutated to raise their entropy) so the detection loop can be
// exercised end to end without harming real data. When target is empty
// all data directories are affected.
func (a *GuardApp) Simulate(target string, count int) (int, error) {
	dirs := a.cfg.DataDirs
	if target != "" {
		dirs = []string{target}
	}

	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	rand.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	if count < len(files) {
		files = files[:count]
	}

	modified := 0
	for _, p := range files {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		mutated := make([]byte, len(data))
		for i, b := range data {
			mutated[i] = b ^ 0x5A
		}
		if err := os.WriteFile(p+".locked", mutated, 0644); err != nil {
			continue
		}
		modified++
		time.Sleep(10 * time.Millisecond)
	}

	a.logger.Info("simulation complete", "modified", modified)
	return modified, nil
}

package watcher

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// sampleLimit caps how many changed paths are sampled for entropy
	// and extension checks per detection cycle.
	sampleLimit = 20
	// sampleBytes is how much of each sampled file is read.
	sampleBytes = 4096
	// surgeWindow is the trailing window for the surge signal.
	surgeWindow = 60 * time.Second
)

// DetectionResult holds the outcome of one detection cycle. The
// signals are independent; any single one raises an alert.
type DetectionResult struct {
	Surge         bool
	HighEntropy   bool
	SuspiciousExt bool
	CanaryTamper  bool
}

// Alert reports whether any signal fired.
func (r DetectionResult) Alert() bool {
	return r.Surge || r.HighEntropy || r.SuspiciousExt || r.CanaryTamper
}

// Signals names the signals that fired.
func (r DetectionResult) Signals() []string {
	var s []string
	if r.Surge {
		s = append(s, "surge")
	}
	if r.HighEntropy {
		s = append(s, "entropy")
	}
	if r.SuspiciousExt {
		s = append(s, "extension")
	}
	if r.CanaryTamper {
		s = append(s, "canary")
	}
	return s
}

// detect applies the detection heuristics to one batch of changed
// paths.
func (w *Watcher) detect(paths []string) DetectionResult {
	var result DetectionResult
	result.Surge = w.recordAndCheckSurge(len(paths))

	sample := paths
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit]
	}
	for _, p := range sample {
		if w.suspiciousExt(p) {
			result.SuspiciousExt = true
		}
		ent, err := sampleEntropy(p)
		if err != nil {
			// File may have vanished or be unreadable mid-storm; the
			// other signals still apply.
			continue
		}
		if ent >= w.entropyThreshold {
			result.HighEntropy = true
		}
	}

	tampered, err := w.canary.Check()
	if err != nil {
		w.logger.Warn("canary check failed", "error", err)
	}
	result.CanaryTamper = tampered > 0

	return result
}

// recordAndCheckSurge appends n events to the sliding window, prunes
// entries older than the window, and reports whether the count reaches
// the surge threshold.
func (w *Watcher) recordAndCheckSurge(n int) bool {
	now := w.clock.Now()
	for i := 0; i < n; i++ {
		w.window = append(w.window, now)
	}

	cutoff := now.Add(-surgeWindow)
	drop := 0
	for drop < len(w.window) && w.window[drop].Before(cutoff) {
		drop++
	}
	w.window = w.window[drop:]

	return len(w.window) >= w.surgeThreshold
}

func (w *Watcher) suspiciousExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range w.suspiciousExts {
		if ext == s {
			return true
		}
	}
	return false
}

// sampleEntropy reads the head of the file and returns its Shannon
// entropy.
func sampleEntropy(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, sampleBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, err
	}
	return ShannonEntropy(buf[:n]), nil
}

// ShannonEntropy returns the byte-value entropy of data in bits per
// byte: 0 for uniform content, up to 8 for uniformly random bytes. It
// is used as a cheap proxy for encrypted or compressed content.
func ShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

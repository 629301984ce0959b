// Package canary plants and verifies decoy files used as tamper
// tripwires. Canaries carry no backup value; any unexpected change to
// one is treated as a sign of unauthorized bulk file activity.
package canary

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"rxguard-go/internal/guard"
)

const (
	metaFile      = "canaries.json"
	canaryContent = 2048
	nameLetters   = "abcdefghijklmnopqrstuvwxyz"
)

// decoyExtensions are drawn from formats typical of clinical data
// shares, so decoys blend in with the files ransomware targets.
var decoyExtensions = []string{".xlsx", ".pdf", ".dcm", ".docx", ".txt"}

// Canary records one deployed decoy: its path and the content hash
// captured at deployment time.
type Canary struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Manager deploys decoy files into the watched directories and checks
// them for tampering. Each Deploy replaces the tracked set wholesale.
type Manager struct {
	dataDirs []string
	metaDir  string
	logger   guard.Logger
}

// NewManager creates a canary manager that plants decoys in dataDirs
// and keeps its metadata under metaDir.
func NewManager(dataDirs []string, metaDir string, logger guard.Logger) *Manager {
	return &Manager{dataDirs: dataDirs, metaDir: metaDir, logger: logger}
}

func (m *Manager) metaPath() string {
	return filepath.Join(m.metaDir, metaFile)
}

// Deploy creates perDir decoy files in every data directory, each with
// a randomized name, extension, and content, and records the new set.
// The previously tracked set is replaced entirely, not merged.
func (m *Manager) Deploy(perDir int) ([]Canary, error) {
	var canaries []Canary
	for _, dir := range m.dataDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		for i := 0; i < perDir; i++ {
			name, err := randomName()
			if err != nil {
				return nil, err
			}
			path := filepath.Join(dir, name)

			content := make([]byte, canaryContent)
			if _, err := rand.Read(content); err != nil {
				return nil, fmt.Errorf("generating canary content: %w", err)
			}
			if err := os.WriteFile(path, content, 0644); err != nil {
				return nil, fmt.Errorf("writing canary %s: %w", path, err)
			}
			canaries = append(canaries, Canary{
				Path: path,
				Hash: fmt.Sprintf("%016x", xxhash.Sum64(content)),
			})
		}
	}

	if err := m.saveMeta(canaries); err != nil {
		return nil, err
	}
	m.logger.Info("canaries deployed", "count", len(canaries))
	return canaries, nil
}

// Check returns the number of tampered canaries. A canary is tampered
// if it is missing, unreadable, or its current content hash differs
// from the recorded one; any I/O error is conservatively counted as
// tampering.
func (m *Manager) Check() (int, error) {
	canaries, err := m.loadMeta()
	if err != nil {
		return 0, err
	}

	tampered := 0
	for _, c := range canaries {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			tampered++
			continue
		}
		if fmt.Sprintf("%016x", xxhash.Sum64(data)) != c.Hash {
			tampered++
		}
	}
	return tampered, nil
}

func (m *Manager) saveMeta(canaries []Canary) error {
	if err := os.MkdirAll(m.metaDir, 0755); err != nil {
		return fmt.Errorf("creating canary metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(canaries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding canary metadata: %w", err)
	}
	if err := os.WriteFile(m.metaPath(), data, 0644); err != nil {
		return fmt.Errorf("writing canary metadata: %w", err)
	}
	return nil
}

func (m *Manager) loadMeta() ([]Canary, error) {
	data, err := os.ReadFile(m.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading canary metadata: %w", err)
	}
	var canaries []Canary
	if err := json.Unmarshal(data, &canaries); err != nil {
		return nil, fmt.Errorf("decoding canary metadata: %w", err)
	}
	return canaries, nil
}

// randomName builds a decoy file name like "canary-qwhzlmfa.pdf".
func randomName() (string, error) {
	letters := make([]byte, 8)
	for i := range letters {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(nameLetters))))
		if err != nil {
			return "", fmt.Errorf("generating canary name: %w", err)
		}
		letters[i] = nameLetters[n.Int64()]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(decoyExtensions))))
	if err != nil {
		return "", fmt.Errorf("choosing canary extension: %w", err)
	}
	return "canary-" + string(letters) + decoyExtensions[n.Int64()], nil
}

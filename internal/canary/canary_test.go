package canary_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rxguard-go/internal/canary"
	"rxguard-go/internal/guard"
)

func newManager(t *testing.T, dataDirs []string) *canary.Manager {
	t.Helper()
	return canary.NewManager(dataDirs, t.TempDir(), guard.NewNopLogger())
}

func TestDeploy(t *testing.T) {
	t.Run("plants per-dir decoys", func(t *testing.T) {
		dirA := t.TempDir()
		dirB := t.TempDir()
		m := newManager(t, []string{dirA, dirB})

		canaries, err := m.Deploy(3)
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		if len(canaries) != 6 {
			t.Fatalf("deployed %d canaries, want 6", len(canaries))
		}

		for _, c := range canaries {
			info, err := os.Stat(c.Path)
			if err != nil {
				t.Fatalf("canary missing: %v", err)
			}
			if info.Size() == 0 {
				t.Errorf("canary %s is empty", c.Path)
			}
			base := filepath.Base(c.Path)
			if !strings.HasPrefix(base, "canary-") {
				t.Errorf("unexpected canary name %s", base)
			}
		}
	})

	t.Run("redeploy replaces the tracked set", func(t *testing.T) {
		dir := t.TempDir()
		m := newManager(t, []string{dir})

		first, err := m.Deploy(2)
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		// Tamper with a first-generation canary, then redeploy.
		if err := os.WriteFile(first[0].Path, []byte("mutated"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Deploy(2); err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}

		// The tampered decoy is no longer tracked.
		tampered, err := m.Check()
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if tampered != 0 {
			t.Errorf("Check() = %d after redeploy, want 0", tampered)
		}
	})
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, []string{dir})

	canaries, err := m.Deploy(3)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	t.Run("clean after deploy", func(t *testing.T) {
		tampered, err := m.Check()
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if tampered != 0 {
			t.Errorf("Check() = %d, want 0", tampered)
		}
	})

	t.Run("mutated canary counts", func(t *testing.T) {
		if err := os.WriteFile(canaries[0].Path, []byte("ransomware was here"), 0644); err != nil {
			t.Fatal(err)
		}
		tampered, err := m.Check()
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if tampered != 1 {
			t.Errorf("Check() = %d, want 1", tampered)
		}
	})

	t.Run("deleted canary counts", func(t *testing.T) {
		fresh, err := m.Deploy(3)
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		if err := os.Remove(fresh[1].Path); err != nil {
			t.Fatal(err)
		}
		tampered, err := m.Check()
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if tampered != 1 {
			t.Errorf("Check() = %d, want 1", tampered)
		}
	})

	t.Run("no metadata means nothing tampered", func(t *testing.T) {
		empty := newManager(t, []string{t.TempDir()})
		tampered, err := empty.Check()
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if tampered != 0 {
			t.Errorf("Check() = %d, want 0", tampered)
		}
	})
}

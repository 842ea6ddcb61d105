package hostsfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/localai-packaged/orchestrator/pkg/orcherr"
)

func TestReconcileFreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	if err := Reconcile(path, "127.0.0.1"); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(content), "\n")
	if lines[0] != openSentinel {
		t.Fatalf("expected opening sentinel first, got %q", lines[0])
	}
	if got := countHostLines(string(content)); got != len(CanonicalHostnames()) {
		t.Fatalf("expected %d host lines, got %d", len(CanonicalHostnames()), got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	if err := Reconcile(path, "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Reconcile(path, "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("second reconcile changed content:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
	if strings.Count(string(second), openSentinel) != 1 {
		t.Fatal("expected exactly one sentinel block after repeated reconciliation")
	}
}

func TestReconcilePreservesForeignContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	seed := "127.0.0.1\tlocalhost\n::1\tlocalhost\n# operator note\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Reconcile(path, "192.168.1.50"); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content), seed) {
		t.Fatalf("expected foreign lines preserved verbatim at the top:\n%s", content)
	}

	// Reconciling again with a new address replaces only the block.
	if err := Reconcile(path, "10.0.0.5"); err != nil {
		t.Fatal(err)
	}
	content2, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content2), seed) {
		t.Fatalf("foreign content should survive a second reconciliation:\n%s", content2)
	}
	if strings.Contains(string(content2), "192.168.1.50") {
		t.Fatal("stale address should have been excised")
	}
}

func TestReconcileRejectsUnbalancedSentinels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	seed := openSentinel + "\n127.0.0.1\tn8n.lan\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	err := Reconcile(path, "127.0.0.1")
	if err == nil {
		t.Fatal("expected HostsFileError for unbalanced sentinels")
	}
	var hfErr *orcherr.HostsFileError
	if !errors.As(err, &hfErr) || !hfErr.Corrupt {
		t.Fatalf("expected Corrupt HostsFileError, got %v", err)
	}
}

func countHostLines(content string) int {
	inBlock := false
	n := 0
	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case openSentinel:
			inBlock = true
			continue
		case closeSentinel:
			inBlock = false
			continue
		}
		if inBlock && line != "" {
			n++
		}
	}
	return n
}

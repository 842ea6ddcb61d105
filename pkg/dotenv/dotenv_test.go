package dotenv

import (
	"path/filepath"
	"testing"

	"github.com/localai-packaged/orchestrator/pkg/fsutil"
)

const sample = `# local-ai env
POSTGRES_PASSWORD=supersecret
JWT_SECRET=abc123 # rotate quarterly

OPENAI_API_KEY=
`

func TestRoundTripPreservesContent(t *testing.T) {
	cfg, err := Parse("test.env", sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Render(); got != sample {
		t.Fatalf("round trip mismatch:\n--- got ---\n%q\n--- want ---\n%q", got, sample)
	}
}

func TestRoundTripNoTrailingNewline(t *testing.T) {
	text := "A=1\nB=2"
	cfg, err := Parse("test.env", text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Render(); got != text {
		t.Fatalf("round trip mismatch: got %q want %q", got, text)
	}
}

func TestSetOrAppendMutatesInPlace(t *testing.T) {
	cfg, err := Parse("test.env", sample)
	if err != nil {
		t.Fatal(err)
	}
	before := len(cfg.Entries)
	changed := cfg.SetOrAppend("POSTGRES_PASSWORD", "newvalue", "")
	if !changed {
		t.Fatal("expected change")
	}
	if len(cfg.Entries) != before {
		t.Fatalf("expected entry count unchanged, got %d vs %d", len(cfg.Entries), before)
	}
	v, ok := cfg.Get("POSTGRES_PASSWORD")
	if !ok || v != "newvalue" {
		t.Fatalf("expected newvalue, got %q (ok=%v)", v, ok)
	}
	// The comment line before it is untouched.
	if cfg.Entries[0].Kind != KindComment {
		t.Fatalf("expected leading comment preserved, got %v", cfg.Entries[0])
	}
}

func TestSetOrAppendNoopWhenUnchanged(t *testing.T) {
	cfg, err := Parse("test.env", sample)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SetOrAppend("POSTGRES_PASSWORD", "supersecret", "") {
		t.Fatal("expected no-op when value is identical")
	}
}

func TestEnsureDefaultIdempotentInsertion(t *testing.T) {
	cfg, err := Parse("test.env", sample)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.EnsureDefault("POOLER_TENANT_ID", "1000", "") {
		t.Fatal("expected first run to insert the default")
	}
	v, ok := cfg.Get("POOLER_TENANT_ID")
	if !ok || v != "1000" {
		t.Fatalf("expected POOLER_TENANT_ID=1000, got %q (ok=%v)", v, ok)
	}

	// Second run against the now-mutated config is a no-op.
	if cfg.EnsureDefault("POOLER_TENANT_ID", "1000", "") {
		t.Fatal("expected second run to be a no-op")
	}
}

func TestSaveOnlyWritesWhenChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := fsutil.WriteText(path, sample); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save (no-op) failed: %v", err)
	}
	got, err := fsutil.ReadText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != sample {
		t.Fatalf("unexpected mutation on no-op save:\n%q", got)
	}

	cfg.EnsureDefault("POOLER_TENANT_ID", "1000", "")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save (changed) failed: %v", err)
	}
	got, err = fsutil.ReadText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got == sample {
		t.Fatal("expected file to change after EnsureDefault inserted a key")
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse("test.env", "FINE=1\nnot an assignment line\n")
	if err == nil {
		t.Fatal("expected ConfigParseError")
	}
}

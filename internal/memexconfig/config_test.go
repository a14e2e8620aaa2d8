package memexconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathsOverride(t *testing.T) {
	p, err := NewPaths("/tmp/myroot")
	if err != nil {
		t.Fatalf("NewPaths: %v", err)
	}
	if p.Root != "/tmp/myroot" {
		t.Errorf("Root = %q", p.Root)
	}
	if p.Index != filepath.Join("/tmp/myroot", "index") {
		t.Errorf("Index = %q", p.Index)
	}
}

func TestEnsureDirsCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPaths(filepath.Join(dir, "root"))
	if err != nil {
		t.Fatalf("NewPaths: %v", err)
	}
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, d := range []string{p.Index, p.Vectors, p.State} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("expected directory %q to exist", d)
		}
	}
}

func TestLoadMissingConfigReturnsDefaults(t *testing.T) {
	p, _ := NewPaths(t.TempDir())
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.EmbeddingsEnabled() {
		t.Errorf("expected embeddings default true")
	}
	if cfg.ScanCacheTTLSeconds() != 3600 {
		t.Errorf("expected default ttl 3600, got %d", cfg.ScanCacheTTLSeconds())
	}
	if cfg.FusionAlphaOrDefault() != 0.5 {
		t.Errorf("expected default alpha 0.5, got %v", cfg.FusionAlphaOrDefault())
	}
}

func TestLoadParsesTOMLAndIgnoresUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewPaths(dir)
	content := `
embeddings = false
model = "nomic"
scan_cache_ttl = 120
some_unknown_future_field = "ignored"
`
	if err := os.WriteFile(p.ConfigPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbeddingsEnabled() {
		t.Errorf("expected embeddings disabled")
	}
	if cfg.ModelTag() != "nomic" {
		t.Errorf("ModelTag = %q", cfg.ModelTag())
	}
	if cfg.ScanCacheTTLSeconds() != 120 {
		t.Errorf("ScanCacheTTLSeconds = %d", cfg.ScanCacheTTLSeconds())
	}
}

func TestLoadMalformedTOMLIsConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewPaths(dir)
	if err := os.WriteFile(p.ConfigPath(), []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected error for malformed TOML")
	}
}

func TestResumeCmdDefaults(t *testing.T) {
	var cfg UserConfig
	if got := cfg.ResumeCmd(true); got != "claude --resume {session_id}" {
		t.Errorf("claude resume cmd = %q", got)
	}
	if got := cfg.ResumeCmd(false); got != "codex resume {session_id}" {
		t.Errorf("codex resume cmd = %q", got)
	}
}

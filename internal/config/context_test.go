package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewContextDefaults(t *testing.T) {
	ctx := New([]string{"."})
	if ctx.MaxDepth != -1 {
		t.Errorf("MaxDepth = %d, want -1 (unbounded)", ctx.MaxDepth)
	}
	if ctx.OptLevel != 2 {
		t.Errorf("OptLevel = %d, want 2", ctx.OptLevel)
	}
	if ctx.ExitRequested() {
		t.Errorf("new context should not have a pending exit")
	}
}

func TestSetExitFirstWins(t *testing.T) {
	ctx := New(nil)
	ctx.SetExit(3)
	ctx.SetExit(7)
	if ctx.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3 (first call wins)", ctx.ExitCode)
	}
}

func TestSinkDedupesByPath(t *testing.T) {
	dir := t.TempDir()
	ctx := New(nil)
	path := filepath.Join(dir, "out.txt")

	w1, err := ctx.Sink(path)
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	w2, err := ctx.Sink(path)
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	if w1 != w2 {
		t.Errorf("expected the same writer for repeated Sink(%q)", path)
	}
	if err := ctx.CloseSinks(); err != nil {
		t.Errorf("CloseSinks error: %v", err)
	}
}

// TestSinkDedupesAcrossSpellings checks that two spellings of one
// destination share a handle: the second reference must not re-truncate
// what the first is mid-writing.
func TestSinkDedupesAcrossSpellings(t *testing.T) {
	dir := t.TempDir()
	ctx := New(nil)
	path := filepath.Join(dir, "out.txt")
	dotted := filepath.Join(dir, ".", "out.txt")

	w1, err := ctx.Sink(path)
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	w2, err := ctx.Sink(dotted)
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	if w1 != w2 {
		t.Errorf("expected one handle for %q and %q", path, dotted)
	}
	if err := ctx.CloseSinks(); err != nil {
		t.Errorf("CloseSinks error: %v", err)
	}
}

func TestSinkDedupesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	ctx := New(nil)
	target := filepath.Join(dir, "out.txt")
	link := filepath.Join(dir, "alias.txt")

	w1, err := ctx.Sink(target)
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	w2, err := ctx.Sink(link)
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	if w1 != w2 {
		t.Errorf("expected the symlinked sink to reuse the open handle")
	}
	if err := ctx.CloseSinks(); err != nil {
		t.Errorf("CloseSinks error: %v", err)
	}
}

func TestSinkEmptyPathIsStdout(t *testing.T) {
	ctx := New(nil)
	w, err := ctx.Sink("")
	if err != nil {
		t.Fatalf("Sink error: %v", err)
	}
	if w != os.Stdout {
		t.Errorf("expected Sink(\"\") to return os.Stdout")
	}
}

func TestLoadRCMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	rc, err := LoadRC(dir)
	if err != nil {
		t.Fatalf("LoadRC error: %v", err)
	}
	if rc != nil {
		t.Errorf("expected nil RC for missing file, got %+v", rc)
	}
}

func TestLoadRCParsesKnownDirectives(t *testing.T) {
	dir := t.TempDir()
	content := "optimize 3\nignore_races true\nstrategy \"dfs\"\nexclude \"*.tmp\" \"*.log\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".bfindrc.kdl"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rc, err := LoadRC(dir)
	if err != nil {
		t.Fatalf("LoadRC error: %v", err)
	}
	if rc == nil {
		t.Fatalf("expected non-nil RC")
	}
	if rc.OptLevel == nil || *rc.OptLevel != 3 {
		t.Errorf("OptLevel = %v, want 3", rc.OptLevel)
	}
	if rc.Strategy != "dfs" {
		t.Errorf("Strategy = %q, want dfs", rc.Strategy)
	}
	if len(rc.Excludes) != 2 {
		t.Errorf("Excludes = %v, want 2 entries", rc.Excludes)
	}
}

func TestLoadRCParsesPresets(t *testing.T) {
	dir := t.TempDir()
	content := "preset \"recent-logs\" \"-name\" \"*.log\" \"-mtime\" \"-1\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".bfindrc.kdl"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rc, err := LoadRC(dir)
	if err != nil {
		t.Fatalf("LoadRC error: %v", err)
	}
	toks := rc.Presets["recent-logs"]
	if len(toks) != 4 || toks[0] != "-name" || toks[3] != "-1" {
		t.Errorf("Presets[recent-logs] = %v, want the four stored tokens", toks)
	}
}

func TestLoadRCPresetNeedsTokens(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".bfindrc.kdl"), []byte("preset \"empty\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadRC(dir); err == nil {
		t.Errorf("expected an error for a preset with no tokens")
	}
}

func TestLoadEnvPolicyNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	p := LoadEnvPolicy()
	if !p.NoColor {
		t.Errorf("expected NoColor=true when NO_COLOR is set")
	}
}

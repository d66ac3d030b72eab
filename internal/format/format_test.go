package format

import (
	"testing"

	"github.com/standardbeagle/bfind/internal/types"
)

type fakeSrc struct{ info types.StatInfo }

func (f fakeSrc) Stat(types.StatMode) (types.StatInfo, error) { return f.info, nil }

func TestCompileAndRenderLiteralsAndVerbs(t *testing.T) {
	p, err := Compile("%p\\t%f\\n")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	rec := &types.FileRecord{Path: "a/b/c.txt", NameOffset: 4, Depth: 2}
	out, err := p.Render(rec, types.NoFollow)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "a/b/c.txt\tc.txt\n" {
		t.Errorf("Render() = %q", out)
	}
}

// TestRenderRootRelativePath pins %P: the recorded path minus the
// starting point it descended from, and empty for the root itself.
func TestRenderRootRelativePath(t *testing.T) {
	p, err := Compile("%P")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	rec := &types.FileRecord{Path: "./a/b/c.txt", Root: "./a", NameOffset: 6, Depth: 2}
	out, err := p.Render(rec, types.NoFollow)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "b/c.txt" {
		t.Errorf("Render(%%P) = %q, want b/c.txt", out)
	}

	root := &types.FileRecord{Path: "./a", Root: "./a"}
	out, err = p.Render(root, types.NoFollow)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "" {
		t.Errorf("Render(%%P) for the root itself = %q, want empty", out)
	}
}

func TestCompileUnknownVerb(t *testing.T) {
	if _, err := Compile("%Q"); err == nil {
		t.Fatalf("expected error for unknown directive")
	}
}

func TestCompileTimeVerbRequiresAt(t *testing.T) {
	if _, err := Compile("%T"); err == nil {
		t.Fatalf("expected error for %%T without @")
	}
	if _, err := Compile("%T@"); err != nil {
		t.Fatalf("unexpected error for %%T@: %v", err)
	}
}

func TestRenderStatVerbs(t *testing.T) {
	p, err := Compile("%s %m %y")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	rec := &types.FileRecord{
		Path: "x", Type: types.Regular,
		Src: fakeSrc{info: types.StatInfo{Size: 4096, Mode: 0644, Type: types.Regular}},
	}
	out, err := p.Render(rec, types.NoFollow)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "4096 644 f" {
		t.Errorf("Render() = %q", out)
	}
}

func TestCallsStat(t *testing.T) {
	p, _ := Compile("%p\\n")
	if p.CallsStat() {
		t.Errorf("plain %%p program should not call stat")
	}
	p2, _ := Compile("%s\\n")
	if !p2.CallsStat() {
		t.Errorf("%%s program should call stat")
	}
}

func TestLeftJustifiedWidth(t *testing.T) {
	p, err := Compile("%-8u|")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	rec := &types.FileRecord{Path: "x", Src: fakeSrc{info: types.StatInfo{UID: 42}}}
	out, err := p.Render(rec, types.NoFollow)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "42      |" {
		t.Errorf("Render() = %q, want left-justified uid", out)
	}
}

func TestNumericFlagRejectedOnStringVerb(t *testing.T) {
	if _, err := Compile("%0p"); err == nil {
		t.Errorf("expected error: numeric flag on a non-numeric directive")
	}
}

func TestBuiltinLsFormatCompiles(t *testing.T) {
	if _, err := Compile("%M %3n %-8u %-8g %8s %p\n"); err != nil {
		t.Fatalf("the -fls built-in format must compile: %v", err)
	}
}

func TestPaddedWidth(t *testing.T) {
	p, err := Compile("%03d")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	rec := &types.FileRecord{Path: "x", Depth: 7}
	out, err := p.Render(rec, types.NoFollow)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "007" {
		t.Errorf("Render() = %q, want 007", out)
	}
}

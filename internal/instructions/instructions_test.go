package instructions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscover_WalksUpToGitRoot(t *testing.T) {
	outer := t.TempDir()
	root := filepath.Join(outer, "repo")
	write(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main")
	write(t, filepath.Join(root, "AGENTS.md"), "root instructions")

	nested := filepath.Join(root, "services", "api")
	write(t, filepath.Join(nested, "CLAUDE.md"), "api instructions")

	// A file above the git root must not be picked up.
	write(t, filepath.Join(outer, "AGENTS.md"), "outside repo")

	files := Discover(Options{WorkDir: nested}, zap.NewNop())
	if len(files) != 2 {
		t.Fatalf("want 2 files, got %d: %+v", len(files), files)
	}
	if files[0].Content != "api instructions" {
		t.Fatalf("nearest directory should come first, got %q", files[0].Content)
	}
	if files[1].Content != "root instructions" {
		t.Fatalf("git root file missing, got %q", files[1].Content)
	}
}

func TestDiscover_AllSourcesAndDedup(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ".git", "HEAD"), "x")
	write(t, filepath.Join(root, "AGENTS.md"), "project")

	globalDir := t.TempDir()
	write(t, filepath.Join(globalDir, "AGENTS.md"), "global")

	legacyDir := t.TempDir()
	write(t, filepath.Join(legacyDir, "CLAUDE.md"), "legacy")

	files := Discover(Options{
		WorkDir:   root,
		GlobalDir: globalDir,
		LegacyDir: legacyDir,
		// The glob repeats the project file; dedup must drop it.
		Globs: []string{filepath.Join(root, "*.md")},
	}, zap.NewNop())

	if len(files) != 3 {
		t.Fatalf("want 3 deduplicated files, got %d: %+v", len(files), files)
	}
	order := []string{files[0].Content, files[1].Content, files[2].Content}
	want := []string{"project", "global", "legacy"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("source order mismatch: want %v, got %v", want, order)
		}
	}
}

func TestDiscover_MissingSourcesAreQuiet(t *testing.T) {
	files := Discover(Options{
		WorkDir:   t.TempDir(),
		GlobalDir: filepath.Join(t.TempDir(), "does-not-exist"),
		LegacyDir: filepath.Join(t.TempDir(), "also-missing"),
	}, zap.NewNop())
	if len(files) != 0 {
		t.Fatalf("want no files, got %+v", files)
	}
}

func TestConcat(t *testing.T) {
	files := []File{
		{Path: "/a/AGENTS.md", Content: "be careful\n"},
		{Path: "/b/CLAUDE.md", Content: "be fast"},
	}
	out := Concat(files)
	if !strings.Contains(out, "# Instructions from /a/AGENTS.md") {
		t.Fatalf("missing origin header: %q", out)
	}
	if !strings.Contains(out, "be careful") || !strings.Contains(out, "be fast") {
		t.Fatalf("missing content: %q", out)
	}
	if Concat(nil) != "" {
		t.Fatal("empty input should produce empty preamble")
	}
}

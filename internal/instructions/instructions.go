// Package instructions discovers project and user instruction files and
// concatenates them into the system prompt preamble. Discovery walks from
// the working directory up to the first git root, then consults the global
// config dir, a legacy directory, and any explicit glob patterns.
package instructions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// projectFileNames are the instruction file names recognized in the
// project tree, in preference order within one directory.
var projectFileNames = []string{"AGENTS.md", "AGENT47.md", "CLAUDE.md"}

// File is one discovered instruction file.
type File struct {
	Path    string
	Content string
}

// Options configures discovery. Zero values disable the corresponding
// source.
type Options struct {
	WorkDir   string   // start of the upward project search
	GlobalDir string   // global user config dir, searched for AGENTS.md
	LegacyDir string   // legacy directory, searched for CLAUDE.md
	Globs     []string // explicit glob patterns from settings
}

// Discover collects instruction files from all four sources, de-duplicated
// by absolute path with source order preserved: project tree (nearest
// directory first), global dir, legacy dir, then globs. Unreadable files
// are skipped; discovery itself never fails on a missing source.
func Discover(opts Options, logger *zap.Logger) []File {
	seen := make(map[string]bool)
	var files []File

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if seen[abs] {
			return
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			if logger != nil && !os.IsNotExist(err) {
				logger.Warn("read instruction file failed", zap.String("path", abs), zap.Error(err))
			}
			return
		}
		seen[abs] = true
		files = append(files, File{Path: abs, Content: string(content)})
	}

	for _, dir := range projectDirs(opts.WorkDir) {
		for _, name := range projectFileNames {
			add(filepath.Join(dir, name))
		}
	}
	if opts.GlobalDir != "" {
		add(filepath.Join(opts.GlobalDir, "AGENTS.md"))
	}
	if opts.LegacyDir != "" {
		add(filepath.Join(opts.LegacyDir, "CLAUDE.md"))
	}
	for _, pattern := range opts.Globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			if logger != nil {
				logger.Warn("bad instruction glob", zap.String("pattern", pattern), zap.Error(err))
			}
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	return files
}

// projectDirs returns workDir and each ancestor up to and including the
// first directory containing a .git entry. Without a git root the walk
// stops at the filesystem root.
func projectDirs(workDir string) []string {
	if workDir == "" {
		return nil
	}
	dir, err := filepath.Abs(workDir)
	if err != nil {
		return nil
	}
	var dirs []string
	for {
		dirs = append(dirs, dir)
		if isGitRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dirs
}

func isGitRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Concat joins discovered files into one preamble block, each file
// prefixed with a header naming its origin so the model can attribute
// conflicting guidance.
func Concat(files []File) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "# Instructions from %s\n\n", f.Path)
		b.WriteString(strings.TrimSpace(f.Content))
	}
	return b.String()
}

package subagent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentcore/turncore/internal/entity"
	"go.uber.org/zap"
)

const workerDef = `---
name: worker
description: runs focused sub-tasks
allowedTools:
  - read
  - grep
model: fast-model
output:
  properties:
    answer:
      type: string
---
You are a focused worker. Complete the assignment and submit the result.
`

func writeDef(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition("worker.md", []byte(workerDef), entity.SourceProject)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Name != "worker" || def.Description != "runs focused sub-tasks" {
		t.Fatalf("metadata mismatch: %+v", def)
	}
	if len(def.AllowedTools) != 2 || def.AllowedTools[0] != "read" {
		t.Fatalf("allowedTools mismatch: %v", def.AllowedTools)
	}
	if def.ModelPreference != "fast-model" {
		t.Fatalf("model mismatch: %q", def.ModelPreference)
	}
	if def.SystemPrompt == "" || def.SystemPrompt[0:7] != "You are" {
		t.Fatalf("body should become the system prompt: %q", def.SystemPrompt)
	}
	if len(def.OutputSchema) == 0 {
		t.Fatal("output schema should be converted to JSON")
	}
}

func TestParseDefinition_Malformed(t *testing.T) {
	if _, err := ParseDefinition("x.md", []byte("no front matter here"), entity.SourceUser); err == nil {
		t.Fatal("want error for missing front matter")
	}
	if _, err := ParseDefinition("x.md", []byte("---\ndescription: no name\n---\nbody"), entity.SourceUser); err == nil {
		t.Fatal("want error for missing name")
	}
}

func TestDiscover_SourcePrecedence(t *testing.T) {
	projectDir := t.TempDir()
	userDir := t.TempDir()

	writeDef(t, projectDir, "worker.md", "---\nname: worker\ndescription: project version\n---\nproject prompt")
	writeDef(t, userDir, "worker.md", "---\nname: worker\ndescription: user version\n---\nuser prompt")
	writeDef(t, userDir, "critic.md", "---\nname: critic\ndescription: only in user dir\n---\ncritic prompt")

	reg := NewInMemoryDefinitionRegistry()
	bundled := []entity.SubAgentDefinition{
		{Name: "worker", Description: "bundled version"},
		{Name: "helper", Description: "bundled only"},
	}
	Discover(reg, projectDir, userDir, bundled, zap.NewNop())

	worker, ok := reg.Lookup("worker")
	if !ok || worker.Description != "project version" {
		t.Fatalf("project definition must win on collision: %+v", worker)
	}
	if worker.Source != entity.SourceProject {
		t.Fatalf("want project source, got %s", worker.Source)
	}
	if _, ok := reg.Lookup("critic"); !ok {
		t.Fatal("user-only definition missing")
	}
	helper, ok := reg.Lookup("helper")
	if !ok || helper.Source != entity.SourceBuiltin {
		t.Fatalf("bundled-only definition missing or mis-sourced: %+v", helper)
	}
	if names := reg.Names(); len(names) != 3 {
		t.Fatalf("want 3 definitions, got %v", names)
	}
}

func TestLoadDir_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "good.md", "---\nname: good\n---\nprompt")
	writeDef(t, dir, "bad.md", "not a definition")
	writeDef(t, dir, "notes.txt", "ignored entirely")

	defs := LoadDir(dir, entity.SourceProject, zap.NewNop())
	if len(defs) != 1 || defs[0].Name != "good" {
		t.Fatalf("want only the well-formed definition, got %+v", defs)
	}
}

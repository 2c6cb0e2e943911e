package subagent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// frontMatter is the YAML header of a sub-agent definition file.
type frontMatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	AllowedTools []string `yaml:"allowedTools"`
	Output       any      `yaml:"output"` // JTD schema as YAML, converted to JSON on load
	Model        string   `yaml:"model"`
}

// ParseDefinition parses one markdown definition file: YAML front matter
// between "---" fences supplies the metadata, the remaining body is the
// system prompt.
func ParseDefinition(path string, content []byte, source entity.SourceKind) (entity.SubAgentDefinition, error) {
	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		return entity.SubAgentDefinition{}, fmt.Errorf("%s: missing front matter", path)
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return entity.SubAgentDefinition{}, fmt.Errorf("%s: unterminated front matter", path)
	}
	header := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return entity.SubAgentDefinition{}, fmt.Errorf("%s: parse front matter: %w", path, err)
	}
	if fm.Name == "" {
		return entity.SubAgentDefinition{}, fmt.Errorf("%s: front matter must set name", path)
	}

	def := entity.SubAgentDefinition{
		Name:            fm.Name,
		Description:     fm.Description,
		Source:          source,
		SourcePath:      path,
		SystemPrompt:    strings.TrimSpace(body),
		AllowedTools:    fm.AllowedTools,
		ModelPreference: fm.Model,
	}
	if fm.Output != nil {
		schema, err := json.Marshal(normalizeYAML(fm.Output))
		if err != nil {
			return entity.SubAgentDefinition{}, fmt.Errorf("%s: encode output schema: %w", path, err)
		}
		def.OutputSchema = schema
	}
	return def, nil
}

// normalizeYAML converts yaml.v3's map[string]any/map[any]any trees into
// JSON-encodable values.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

// LoadDir reads every .md file in dir as a definition. A missing dir is
// not an error; a malformed file is skipped with a warning so one bad
// definition cannot hide the rest.
func LoadDir(dir string, source entity.SourceKind, logger *zap.Logger) []entity.SubAgentDefinition {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var defs []entity.SubAgentDefinition
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			if logger != nil {
				logger.Warn("read sub-agent definition failed", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		def, err := ParseDefinition(path, content, source)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping malformed sub-agent definition", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

// Discover populates registry from the three definition sources in
// precedence order: project dir, then user dir, then bundled definitions.
// Later sources are skipped on name collision.
func Discover(registry *InMemoryDefinitionRegistry, projectDir, userDir string, bundled []entity.SubAgentDefinition, logger *zap.Logger) {
	for _, def := range LoadDir(projectDir, entity.SourceProject, logger) {
		registry.PutIfAbsent(def)
	}
	for _, def := range LoadDir(userDir, entity.SourceUser, logger) {
		registry.PutIfAbsent(def)
	}
	for _, def := range bundled {
		def.Source = entity.SourceBuiltin
		registry.PutIfAbsent(def)
	}
}

// Watcher hot-reloads sub-agent definitions when their directories change,
// so edits made while a long session is open take effect without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	reload  func()
	logger  *zap.Logger
	stopCh  chan struct{}
}

// NewWatcher watches dirs and invokes reload (debounce-free; reload must be
// cheap and idempotent) on any create/write/remove event under them.
func NewWatcher(dirs []string, reload func(), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := fsw.Add(dir); err != nil && logger != nil {
			logger.Warn("watch dir failed", zap.String("dir", dir), zap.Error(err))
		}
	}
	return &Watcher{watcher: fsw, reload: reload, logger: logger, stopCh: make(chan struct{})}, nil
}

// Start blocks, dispatching reloads until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.logger != nil {
				w.logger.Debug("sub-agent definitions changed, reloading", zap.String("path", ev.Name))
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("definition watcher error", zap.Error(err))
			}
		}
	}
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

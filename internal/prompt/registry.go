package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"pestma/internal/logger"
)

// Registry resolves the system prompt for each agent role. Built-in prompts
// always exist; an optional YAML override file replaces individual roles and
// is re-read whenever it changes on disk.
type Registry struct {
	mu        sync.RWMutex
	overrides map[string]string

	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

type overrideFile struct {
	Roles map[string]string `yaml:"roles"`
}

func NewRegistry() *Registry {
	return &Registry{overrides: map[string]string{}}
}

// System returns the active prompt for a role, override first, built-in
// otherwise. Unknown roles resolve to an empty string.
func (r *Registry) System(role string) string {
	key := strings.ToLower(strings.TrimSpace(role))
	r.mu.RLock()
	if p, ok := r.overrides[key]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()
	return defaultPrompts()[key]
}

// LoadOverrides reads the override file once. A missing file is not an error:
// the registry simply serves built-ins until the file appears.
func (r *Registry) LoadOverrides(path string) error {
	r.path = path
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Infof("prompt overrides %s not present, using built-in prompts", path)
			return nil
		}
		return fmt.Errorf("read prompt overrides: %w", err)
	}
	return r.apply(data)
}

func (r *Registry) apply(data []byte) error {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse prompt overrides: %w", err)
	}
	next := make(map[string]string, len(f.Roles))
	builtins := defaultPrompts()
	for role, text := range f.Roles {
		key := strings.ToLower(strings.TrimSpace(role))
		if _, known := builtins[key]; !known {
			logger.Warnf("prompt override for unknown role %q ignored", role)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		next[key] = text
	}
	r.mu.Lock()
	r.overrides = next
	r.mu.Unlock()
	logger.Infof("prompt overrides loaded: %d role(s)", len(next))
	return nil
}

// Watch reloads the override file when it is rewritten. Editors replace files
// via rename, so the watch covers the parent directory and filters by name.
func (r *Registry) Watch() error {
	if r.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prompt watcher: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.watcher = w
	r.done = make(chan struct{})

	go func() {
		target := filepath.Clean(r.path)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				data, err := os.ReadFile(target)
				if err != nil {
					logger.Warnf("prompt overrides reload failed: %v", err)
					continue
				}
				if err := r.apply(data); err != nil {
					logger.Warnf("prompt overrides reload rejected: %v", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnf("prompt watcher error: %v", err)
			case <-r.done:
				return
			}
		}
	}()
	return nil
}

func (r *Registry) Close() {
	if r.watcher != nil {
		close(r.done)
		r.watcher.Close()
		r.watcher = nil
	}
}

package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileConfigLoader reads a YAML document as the raw config layer and can
// watch the file for changes.
type FileConfigLoader struct {
	path     string
	mu       sync.RWMutex
	onChange []func(map[string]any)
}

func NewFileConfigLoader(path string) *FileConfigLoader {
	return &FileConfigLoader{path: strings.TrimSpace(path)}
}

func (l *FileConfigLoader) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// LoadRaw returns an empty layer when no path is configured.
func (l *FileConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil || l.path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("core: read config %s: %w", l.path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: parse config %s: %w", l.path, err)
	}
	return raw, nil
}

// OnChange registers a callback invoked with the freshly parsed layer after
// every successful reload.
func (l *FileConfigLoader) OnChange(fn func(map[string]any)) {
	if l == nil || fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch reloads the file until ctx is done or the returned stop function is
// called. The parent directory is watched so rename-replace saves and
// symlink swaps keep reloading. Parse failures keep the previous layer.
func (l *FileConfigLoader) Watch(ctx context.Context, logger Logger) (stop func(), err error) {
	if l == nil || l.path == "" {
		return func() {}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	target := filepath.Clean(l.path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("core: config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("core: config watcher add %s: %w", l.path, err)
	}
	logger = ResolveLogger("config", nil, logger)
	resolved := resolvePath(target)

	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				current := resolvePath(target)
				changed := filepath.Clean(event.Name) == target &&
					(event.Has(fsnotify.Write) || event.Has(fsnotify.Create))
				if !changed && (current == "" || current == resolved) {
					continue
				}
				resolved = current
				raw, loadErr := l.LoadRaw(ctx)
				if loadErr != nil {
					logger.Warn("config reload failed", "path", l.path, "error", loadErr.Error())
					continue
				}
				l.notify(raw)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "path", l.path, "error", watchErr.Error())
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }, nil
}

// resolvePath follows symlinks, returning "" while the file is missing.
func resolvePath(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}
	return resolved
}

func (l *FileConfigLoader) notify(raw map[string]any) {
	l.mu.RLock()
	callbacks := make([]func(map[string]any), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.RUnlock()
	for _, fn := range callbacks {
		fn(raw)
	}
}

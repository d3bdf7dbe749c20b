package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider loads secrets from a directory of mounted files, one secret
// per file, as Kubernetes and Docker secret mounts lay them out.
//
// A secret named ANTHROPIC_API_KEY is read from "ANTHROPIC_API_KEY" or,
// failing that, "anthropic-api-key". Files must be 0600 or 0400.
type FileProvider struct {
	// BasePath is the directory holding the secret files.
	BasePath string

	mu       sync.RWMutex
	cache    map[string]string
	onChange []func()
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewFileProvider creates a file-based provider. With watch set, any write,
// create, remove or rename in the directory drops the cached values and
// notifies the callbacks registered with OnChange.
func NewFileProvider(basePath string, watch bool) (*FileProvider, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", basePath)
	}

	p := &FileProvider{
		BasePath: basePath,
		cache:    make(map[string]string),
		done:     make(chan struct{}),
	}

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := w.Add(basePath); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to watch secrets directory: %w", err)
		}
		p.watcher = w
		go p.watchLoop()
	}

	slog.Info("file secret provider started", "path", basePath, "watch", watch)
	return p, nil
}

// GetSecret implements SecretProvider.
func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	if v, ok := p.cache[name]; ok {
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	var lastErr error
	for _, candidate := range fileNames(name) {
		value, err := p.readFile(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		p.mu.Lock()
		p.cache[name] = value
		p.mu.Unlock()
		return value, nil
	}
	return "", lastErr
}

func (p *FileProvider) readFile(name string) (string, error) {
	absBase, err := filepath.Abs(p.BasePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secrets directory: %w", err)
	}
	path := filepath.Join(absBase, name)
	if !strings.HasPrefix(path, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret name %q: outside secrets directory", name)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if mode := info.Mode().Perm(); mode != 0600 && mode != 0400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	// #nosec G304 - path is confined to BasePath above
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: file %s is empty", ErrNotFound, name)
	}
	return value, nil
}

// fileNames lists the file names tried for a secret.
func fileNames(name string) []string {
	kebab := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	if kebab == name {
		return []string{name}
	}
	return []string{name, kebab}
}

// Provider implements SecretProvider.
func (p *FileProvider) Provider() string {
	return "file"
}

// Refresh implements RefreshableProvider.
func (p *FileProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.cache = make(map[string]string)
	p.mu.Unlock()
	return nil
}

// OnChange registers fn to run after a watched file changes.
func (p *FileProvider) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Close stops watching.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

func (p *FileProvider) watchLoop() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			slog.Debug("secret file changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			_ = p.Refresh(context.Background())

			p.mu.RLock()
			callbacks := append([]func(){}, p.onChange...)
			p.mu.RUnlock()
			for _, fn := range callbacks {
				fn()
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("secret file watcher error", "error", err)

		case <-p.done:
			return
		}
	}
}

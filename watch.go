/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package readini

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher keeps a Config loaded from a fixed list of files and reloads it
// whenever one of the files that went into it changes, includes too.
type Watcher struct {
	files    []string
	opts     Options
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.RWMutex
	current  *Config
	sources  map[string]bool
	dirs     map[string]bool
	onChange []func(*Config)
	closed   sync.Once
}

// NewWatcher loads files with opts and starts watching their directories.
func NewWatcher(opts Options, files ...string) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("readini: no files to watch")
	}
	cfg, err := loadAll(opts, files)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		files:    files,
		opts:     opts,
		logger:   cfg.opts.Logger,
		watcher:  fw,
		debounce: defaultDebounce,
		current:  cfg,
		dirs:     map[string]bool{},
	}
	if err := w.watchDirs(cfg); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func loadAll(opts Options, files []string) (*Config, error) {
	var cfg *Config
	for _, name := range files {
		var err error
		if cfg, err = AppendConfig(cfg, name, opts); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SetDebounce sets how long the watcher waits for writes to settle.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to be called with every successfully reloaded Config.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Run watches until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	w.logger.Info("config watcher started", zap.Strings("files", w.files))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isSource(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce = time.After(w.debounce)
			}

		case <-debounce:
			debounce = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

// Close stops watching. Run returns once its context is cancelled.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() { err = w.watcher.Close() })
	return err
}

func (w *Watcher) reload() {
	cfg, err := loadAll(w.opts, w.files)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", zap.Error(err))
		return
	}
	if err := w.watchDirs(cfg); err != nil {
		w.logger.Warn("failed to watch config directory", zap.Error(err))
	}

	w.mu.Lock()
	w.current = cfg
	subscribers := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.Strings("files", cfg.Filenames()))
	for _, fn := range subscribers {
		fn(cfg)
	}
}

// watchDirs watches the directory of every file in cfg so that atomic
// saves (write to temp, rename over) are seen.
func (w *Watcher) watchDirs(cfg *Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sources = map[string]bool{}
	for _, name := range cfg.Filenames() {
		abs, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		w.sources[abs] = true
		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %q: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	return nil
}

func (w *Watcher) isSource(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sources[abs]
}

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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startWatcher(t *testing.T, opts Options, files ...string) (*Watcher, <-chan *Config) {
	t.Helper()
	w, err := NewWatcher(opts, files...)
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)

	changes := make(chan *Config, 16)
	w.OnChange(func(cfg *Config) { changes <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, changes
}

func waitChange(t *testing.T, changes <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-changes:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return nil
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, filepath.Join(dir, "main.ini"), "[A]\n#include \"part.ini\"\n")
	part := writeFile(t, filepath.Join(dir, "part.ini"), "v = 1\n")

	w, changes := startWatcher(t, Options{Env: MapEnv{}}, main)
	v, ok := w.Current().Lookup("A", "v")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, os.WriteFile(part, []byte("v = 2\n"), 0o644))
	cfg := waitChange(t, changes)
	v, ok = cfg.Lookup("A", "v")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Same(t, cfg, w.Current())
}

func TestWatcherKeepsConfigOnError(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, filepath.Join(dir, "main.ini"), "[A]\nv = 1\n")

	core, logs := observer.New(zapcore.InfoLevel)
	w, _ := startWatcher(t, Options{Env: MapEnv{}, Logger: zap.New(core)}, main)
	before := w.Current()

	require.NoError(t, os.WriteFile(main, []byte("[A]\n#if 1\n"), 0o644))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("config reload failed, keeping previous config").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Same(t, before, w.Current())

	require.NoError(t, os.WriteFile(main, []byte("[A]\nv = 3\n"), 0o644))
	require.Eventually(t, func() bool {
		v, _ := w.Current().Lookup("A", "v")
		return v == "3"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherNoFiles(t *testing.T) {
	_, err := NewWatcher(Options{})
	assert.Error(t, err)
}

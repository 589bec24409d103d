package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
broadcast:
  idle_interval: 5s
`

const watcherUpdatedYAML = `
server:
  log_level: debug
broadcast:
  idle_interval: 20s
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// startWatcher runs w until the test ends.
func startWatcher(t *testing.T, w *config.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	})
}

type changeLog struct {
	mu    sync.Mutex
	calls [][2]*config.Config
	ch    chan struct{}
}

func newChangeLog() *changeLog { return &changeLog{ch: make(chan struct{}, 8)} }

func (c *changeLog) onChange(old, new *config.Config) {
	c.mu.Lock()
	c.calls = append(c.calls, [2]*config.Config{old, new})
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *changeLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestWatcher_InitialLoad(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	log := newChangeLog()
	w, err := config.NewWatcher(cfgPath, log.onChange, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, cfgPath, watcherUpdatedYAML)
	select {
	case <-log.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	log.mu.Lock()
	old, updated := log.calls[0][0], log.calls[0][1]
	log.mu.Unlock()
	if old.Server.LogLevel != config.LogInfo || updated.Server.LogLevel != config.LogDebug {
		t.Errorf("log levels: old %q new %q", old.Server.LogLevel, updated.Server.LogLevel)
	}
	d := config.Diff(old, updated)
	if !d.LogLevelChanged || !d.IntervalsChanged || d.NewIdleInterval != 20*time.Second {
		t.Errorf("Diff = %+v", d)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level: got %q, want debug", w.Current().Server.LogLevel)
	}
}

func TestWatcher_DetectsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	log := newChangeLog()
	w, err := config.NewWatcher(cfgPath, log.onChange, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	tmp := filepath.Join(dir, "config.yaml.tmp")
	writeFile(t, tmp, watcherUpdatedYAML)
	if err := os.Rename(tmp, cfgPath); err != nil {
		t.Fatalf("rename: %v", err)
	}
	select {
	case <-log.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("rename over the config file was not picked up")
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	log := newChangeLog()
	w, err := config.NewWatcher(cfgPath, log.onChange, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, cfgPath, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	if n := log.count(); n != 0 {
		t.Errorf("callback should not be called for invalid config, got %d calls", n)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() should still have old config, got log_level=%q", cur.Server.LogLevel)
	}
}

func TestWatcher_SameContentIsIgnored(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	log := newChangeLog()
	w, err := config.NewWatcher(cfgPath, log.onChange, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, cfgPath, watcherValidYAML)
	time.Sleep(300 * time.Millisecond)
	if n := log.count(); n != 0 {
		t.Errorf("callback should not fire for identical content, got %d calls", n)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	_, err := config.NewWatcher("/nonexistent/path.yaml", nil)
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

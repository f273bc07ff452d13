package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/pkg/coordinator"
)

// fakeController records SetThreshold calls.
type fakeController struct {
	mu        sync.Mutex
	threshold int64
}

func (c *fakeController) Threshold() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

func (c *fakeController) SetThreshold(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = v
}

func (c *fakeController) Sessions() []coordinator.Session { return nil }

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startPlugin(t *testing.T, cfg Config, ctrl *fakeController) *Plugin {
	t.Helper()
	p := New(cfg)
	err := p.Initialize(context.Background(), coordinator.PluginConfig{Coordinator: ctrl})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Shutdown(context.Background())) })
	return p
}

func TestPlugin_ReloadsThresholdOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.toml")
	writeConfig(t, path, "port = 5000\nthreshold = 30\n")

	ctrl := &fakeController{threshold: 30}
	p := startPlugin(t, Config{Path: path, DebounceDelay: 10 * time.Millisecond}, ctrl)

	writeConfig(t, path, "port = 5000\nthreshold = 90\n")

	require.Eventually(t, func() bool {
		return ctrl.Threshold() == 90
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, p.Reloads())
}

func TestPlugin_LegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	writeConfig(t, path, "5000\n30\n")

	ctrl := &fakeController{threshold: 30}
	startPlugin(t, Config{Path: path, DebounceDelay: 10 * time.Millisecond}, ctrl)

	writeConfig(t, path, "5000\n5\n")

	require.Eventually(t, func() bool {
		return ctrl.Threshold() == 5
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.toml")
	writeConfig(t, path, "threshold = 30\n")

	var mu sync.Mutex
	loads := 0
	load := func(string) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return 60, nil
	}

	ctrl := &fakeController{threshold: 30}
	startPlugin(t, Config{Path: path, DebounceDelay: 10 * time.Millisecond, Load: load}, ctrl)

	writeConfig(t, filepath.Join(dir, "other.toml"), "threshold = 1\n")
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, loads)
	require.Equal(t, int64(30), ctrl.Threshold())
}

func TestPlugin_InvalidFileKeepsThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.toml")
	writeConfig(t, path, "threshold = 30\n")

	loaded := make(chan struct{}, 10)
	load := func(string) (int64, error) {
		loaded <- struct{}{}
		return 0, errors.New("broken file")
	}

	ctrl := &fakeController{threshold: 30}
	p := startPlugin(t, Config{Path: path, DebounceDelay: 10 * time.Millisecond, Load: load}, ctrl)

	writeConfig(t, path, "threshold = ???\n")

	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not attempted")
	}
	require.Equal(t, int64(30), ctrl.Threshold())
	require.Zero(t, p.Reloads())
}

func TestPlugin_DebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.toml")
	writeConfig(t, path, "threshold = 30\n")

	var mu sync.Mutex
	loads := 0
	load := func(string) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return 45, nil
	}

	ctrl := &fakeController{threshold: 30}
	startPlugin(t, Config{Path: path, DebounceDelay: 200 * time.Millisecond, Load: load}, ctrl)

	for i := 0; i < 5; i++ {
		writeConfig(t, path, "threshold = 45\n")
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return ctrl.Threshold() == 45
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, loads)
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	p := New(Config{})
	require.NoError(t, p.Initialize(context.Background(), coordinator.PluginConfig{}))
	require.NoError(t, p.Shutdown(context.Background()))
	require.Equal(t, "configwatcher", p.Name())
}

func TestPlugin_MissingDirectory(t *testing.T) {
	p := New(Config{Path: filepath.Join(t.TempDir(), "missing", "coordinator.toml")})
	require.Error(t, p.Initialize(context.Background(), coordinator.PluginConfig{}))
}

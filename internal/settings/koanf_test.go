package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStore_LoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	testConfig := `
show_notifications: false
announcement_enabled: true
announcement_sound: /usr/share/chimed/bell.wav
default_volume: 55
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ShowNotifications {
		t.Error("Expected show_notifications false")
	}
	if !cfg.AnnouncementEnabled {
		t.Error("Expected announcement_enabled true")
	}
	if cfg.AnnouncementSound != "/usr/share/chimed/bell.wav" {
		t.Errorf("Expected announcement sound path, got %s", cfg.AnnouncementSound)
	}
	if cfg.DefaultVolume != 55 {
		t.Errorf("Expected default_volume 55, got %d", cfg.DefaultVolume)
	}
}

func TestStore_LoadWithEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	testConfig := `
default_volume: 50
announcement_enabled: false
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("CHIMED_DEFAULT_VOLUME", "80")
	t.Setenv("CHIMED_ANNOUNCEMENT_ENABLED", "true")

	store, err := NewStore(
		WithYAMLFile(configPath),
		WithEnvPrefix("CHIMED"),
	)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultVolume != 80 {
		t.Errorf("Expected default_volume 80 (from env), got %d", cfg.DefaultVolume)
	}
	if !cfg.AnnouncementEnabled {
		t.Error("Expected announcement_enabled true (from env)")
	}
}

func TestStore_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	if err := os.WriteFile(configPath, []byte("default_volume: 48\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultVolume != 48 {
		t.Fatalf("Expected initial default_volume 48, got %d", cfg.DefaultVolume)
	}

	if err := os.WriteFile(configPath, []byte("default_volume: 91\n"), 0644); err != nil {
		t.Fatalf("Failed to update test config: %v", err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	cfg, err = store.Load()
	if err != nil {
		t.Fatalf("Load after reload failed: %v", err)
	}
	if cfg.DefaultVolume != 91 {
		t.Errorf("Expected reloaded default_volume 91, got %d", cfg.DefaultVolume)
	}
}

func TestStore_Watch(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	if err := os.WriteFile(configPath, []byte("default_volume: 48\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	watchCalled := make(chan string, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = store.Watch(ctx, func(event string, err error) {
			if err != nil {
				watchCalled <- "error: " + err.Error()
				return
			}
			watchCalled <- event
		})
	}()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configPath, []byte("default_volume: 91\n"), 0644); err != nil {
		t.Fatalf("Failed to update test config: %v", err)
	}

	select {
	case event := <-watchCalled:
		if event != "settings reloaded" {
			t.Errorf("Expected event 'settings reloaded', got %s", event)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch callback not called within timeout")
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load after watch failed: %v", err)
	}
	if cfg.DefaultVolume != 91 {
		t.Errorf("Expected watched default_volume 91, got %d", cfg.DefaultVolume)
	}
}

func TestStore_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	if err := os.WriteFile(configPath, []byte("default_volume: [not, a, number]\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		// acceptable: the koanf unmarshal can fail at load time too
		return
	}

	if _, err := store.Load(); err == nil {
		t.Error("Expected error loading invalid settings, got nil")
	}
}

func TestStore_InvalidValue(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	if err := os.WriteFile(configPath, []byte("default_volume: 150\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.Load(); err == nil {
		t.Error("Expected validation error for out-of-range default_volume, got nil")
	}
}

func TestStore_MissingFile(t *testing.T) {
	store, err := NewStore(WithYAMLFile("/nonexistent/settings.yaml"))
	if err != nil {
		t.Fatalf("NewStore should tolerate a missing file: %v", err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultVolume != 70 {
		t.Errorf("Expected default volume 70, got %d", cfg.DefaultVolume)
	}
}

func TestStore_GetMethods(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	testConfig := `
default_volume: 65
announcement_enabled: true
announcement_sound: chime.mp3
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if got := store.GetInt("default_volume"); got != 65 {
		t.Errorf("GetInt(default_volume) = %d, want 65", got)
	}
	if got := store.GetString("announcement_sound"); got != "chime.mp3" {
		t.Errorf("GetString(announcement_sound) = %s, want chime.mp3", got)
	}
	if got := store.GetBool("announcement_enabled"); !got {
		t.Error("GetBool(announcement_enabled) = false, want true")
	}
	if !store.Exists("default_volume") {
		t.Error("Expected default_volume to exist")
	}
	if store.Exists("nonexistent_key") {
		t.Error("Expected nonexistent_key to not exist")
	}
}

func TestStore_NoFile(t *testing.T) {
	t.Setenv("CHIMED_DEFAULT_VOLUME", "33")
	t.Setenv("CHIMED_ANNOUNCEMENT_ENABLED", "true")

	store, err := NewStore(WithEnvPrefix("CHIMED"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultVolume != 33 {
		t.Errorf("Expected default_volume 33, got %d", cfg.DefaultVolume)
	}
	if !cfg.AnnouncementEnabled {
		t.Error("Expected announcement_enabled true")
	}
}

func TestStore_All(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	if err := os.WriteFile(configPath, []byte("default_volume: 70\nannouncement_enabled: true\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	all := store.All()
	if all == nil {
		t.Fatal("All() returned nil")
	}
	if _, ok := all["default_volume"]; !ok {
		t.Error("All() should contain 'default_volume' key")
	}
	if _, ok := all["announcement_enabled"]; !ok {
		t.Error("All() should contain 'announcement_enabled' key")
	}
}

func TestStore_WatchNoFile(t *testing.T) {
	store, err := NewStore(WithEnvPrefix("CHIMED"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = store.Watch(ctx, func(event string, watchErr error) {
		t.Error("Callback should not be called when no file is set")
	})

	if err == nil {
		t.Error("Watch without file should return an error")
	}
	if err != nil && !strings.Contains(err.Error(), "no file path specified") {
		t.Errorf("Expected error about no file path, got: %v", err)
	}
}

func TestStore_WatchContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	if err := os.WriteFile(configPath, []byte("default_volume: 70\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_ = store.Watch(ctx, func(event string, err error) {})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Watch did not return when context was cancelled")
	}
}

// TestStore_ConcurrentReloadAndRead exercises Reload concurrently with every
// getter to catch data races on the internal koanf pointer swap (run with
// `go test -race`).
func TestStore_ConcurrentReloadAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.yaml")

	testConfig := `
default_volume: 70
announcement_enabled: true
announcement_sound: chime.mp3
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	store, err := NewStore(WithYAMLFile(configPath))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	const numGoroutines = 10
	const numIterations = 50

	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				_ = store.Reload()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				_ = store.GetString("announcement_sound")
				_ = store.GetInt("default_volume")
				_ = store.GetBool("announcement_enabled")
				_ = store.Exists("default_volume")
				_ = store.All()
				_, _ = store.Load()
			}
		}()
	}

	wg.Wait()
}

// SPDX-License-Identifier: MIT

package settings

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store wraps koanf for layered settings management.
//
// It provides:
//   - Multiple sources (YAML file + environment variables)
//   - Hot-reload via file watching
//   - Override precedence (env vars win over YAML, which wins over defaults)
type Store struct {
	k         *koanf.Koanf
	mu        sync.RWMutex
	filePath  string
	envPrefix string
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithYAMLFile sets the settings file path.
func WithYAMLFile(path string) StoreOption {
	return func(s *Store) error {
		s.filePath = path
		return nil
	}
}

// WithEnvPrefix sets the environment variable prefix (default: "CHIMED").
func WithEnvPrefix(prefix string) StoreOption {
	return func(s *Store) error {
		s.envPrefix = prefix
		return nil
	}
}

// NewStore creates a koanf-backed settings store.
//
// Sources are merged with the following precedence (highest to lowest):
//  1. Environment variables (CHIMED_*)
//  2. YAML settings file
//  3. Built-in defaults (DefaultSettings)
func NewStore(opts ...StoreOption) (*Store, error) {
	s := &Store{
		k:         koanf.New("."),
		envPrefix: "CHIMED",
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Load unmarshals the merged configuration into a Settings struct.
func (s *Store) Load() (*Settings, error) {
	cfg := DefaultSettings()

	s.mu.RLock()
	k := s.k
	s.mu.RUnlock()

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return cfg, nil
}

// Reload re-reads every configured source from scratch.
//
// Called internally by Watch when the file changes, and may be called
// directly to force a reload (e.g. in response to SIGHUP).
func (s *Store) Reload() error {
	return s.reload()
}

func (s *Store) reload() error {
	newK := koanf.New(".")

	// A missing file is fine: a freshly installed daemon starts from
	// the built-in defaults plus whatever CHIMED_* supplies.
	if s.filePath != "" {
		if _, statErr := os.Stat(s.filePath); statErr == nil {
			if err := newK.Load(file.Provider(s.filePath), yaml.Parser()); err != nil {
				return fmt.Errorf("failed to load settings file: %w", err)
			}
		} else if !os.IsNotExist(statErr) {
			return fmt.Errorf("failed to stat settings file: %w", statErr)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: s.envPrefix + "_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.TrimPrefix(k, s.envPrefix+"_")
			k = strings.ToLower(k)
			return k, v
		},
	})

	if err := newK.Load(envProvider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	s.mu.Lock()
	s.k = newK
	s.mu.Unlock()

	return nil
}

// Watch starts watching the settings file for changes, invoking callback
// after each detected change and automatic reload.
//
// Known limitation: the underlying koanf file.Provider spawns an fsnotify
// goroutine internally and koanf v2 does not expose a way to stop it. That
// goroutine outlives ctx cancellation and is reclaimed only on process
// exit. Long-lived callers that need a clean shutdown should trigger
// Reload() manually (e.g. on SIGHUP) instead of calling Watch().
func (s *Store) Watch(ctx context.Context, callback func(event string, err error)) error {
	if s.filePath == "" {
		return fmt.Errorf("cannot watch: no file path specified")
	}

	fp := file.Provider(s.filePath)

	watchErr := fp.Watch(func(event interface{}, err error) {
		if err != nil {
			callback("watch error", fmt.Errorf("file watch error: %w", err))
			return
		}

		if err := s.reload(); err != nil {
			callback("reload error", fmt.Errorf("settings reload failed: %w", err))
			return
		}

		callback("settings reloaded", nil)
	})

	if watchErr != nil {
		return fmt.Errorf("failed to start watching: %w", watchErr)
	}

	<-ctx.Done()

	return nil
}

// GetString retrieves a string value from the merged configuration.
func (s *Store) GetString(key string) string {
	s.mu.RLock()
	k := s.k
	s.mu.RUnlock()
	return k.String(key)
}

// GetInt retrieves an integer value from the merged configuration.
func (s *Store) GetInt(key string) int {
	s.mu.RLock()
	k := s.k
	s.mu.RUnlock()
	return k.Int(key)
}

// GetBool retrieves a boolean value from the merged configuration.
func (s *Store) GetBool(key string) bool {
	s.mu.RLock()
	k := s.k
	s.mu.RUnlock()
	return k.Bool(key)
}

// Exists checks if a configuration key exists.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	k := s.k
	s.mu.RUnlock()
	return k.Exists(key)
}

// All returns the entire merged configuration as a flat map.
func (s *Store) All() map[string]interface{} {
	s.mu.RLock()
	k := s.k
	s.mu.RUnlock()
	return k.All()
}

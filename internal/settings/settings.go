// SPDX-License-Identifier: MIT

// Package settings implements the key-value settings collaborator consumed
// by the scheduler engine: a small set of named keys, with everything else
// on disk ignored. Storage is a YAML file, loaded the same way the rest of
// this codebase loads configuration (see koanf.go for the
// environment-variable-aware loader used at daemon startup).
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultSettingsPath is the default location for the settings file.
const DefaultSettingsPath = "/etc/chimed/settings.yaml"

// Settings holds the keys the scheduler engine and its collaborators
// consume. Unknown keys present in the YAML file are ignored by
// yaml.Unmarshal; unknown keys read through the koanf-backed Store (see
// koanf.go) are simply never queried.
type Settings struct {
	ShowNotifications   bool   `yaml:"show_notifications" koanf:"show_notifications"`
	AnnouncementEnabled bool   `yaml:"announcement_enabled" koanf:"announcement_enabled"`
	AnnouncementSound   string `yaml:"announcement_sound" koanf:"announcement_sound"`
	DefaultVolume       int    `yaml:"default_volume" koanf:"default_volume"`
}

// DefaultSettings returns the settings used when no file exists yet.
func DefaultSettings() *Settings {
	return &Settings{
		ShowNotifications:   true,
		AnnouncementEnabled: false,
		AnnouncementSound:   "",
		DefaultVolume:       70,
	}
}

// Validate checks for invalid values. DefaultVolume follows the same 0-100
// range as a schedule's volume field.
func (s *Settings) Validate() error {
	if s.DefaultVolume < 0 || s.DefaultVolume > 100 {
		return fmt.Errorf("default_volume must be between 0 and 100")
	}
	return nil
}

// Load reads and parses the settings file. A missing file is not an error;
// it yields DefaultSettings() so a freshly installed daemon can start
// without any on-disk state.
func Load(path string) (*Settings, error) {
	// #nosec G304 - settings path is administrator-controlled configuration
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// atomicFile abstracts the file handle used by Save for testability.
type atomicFile interface {
	Write([]byte) (int, error)
	Sync() error
	Chmod(os.FileMode) error
	Close() error
	Name() string
}

type atomicCreateTemp func(dir, pattern string) (atomicFile, error)

func defaultCreateTemp(dir, pattern string) (atomicFile, error) {
	return os.CreateTemp(dir, pattern) // #nosec G304
}

// Save writes settings to path using a write-temp-then-rename sequence so a
// crash mid-write never leaves a half-written file in place.
func (s *Settings) Save(path string) error {
	return s.saveWith(path, defaultCreateTemp)
}

func (s *Settings) saveWith(path string, createTemp atomicCreateTemp) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmpFile, err := createTemp(dir, ".settings.*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp settings file: %w", err)
	}
	if err := tmpFile.Chmod(0640); err != nil {
		return fmt.Errorf("failed to set settings file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp settings file: %w", err)
	}

	success = true
	return nil
}

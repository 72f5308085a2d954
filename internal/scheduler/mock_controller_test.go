// SPDX-License-Identifier: MIT

package scheduler

import (
	"sync"
	"time"

	"github.com/mbowers-oss/chimed/internal/schedule"
)

// mockController is a test double for Controller.
type mockController struct {
	mu         sync.Mutex
	playCount  int
	lastPath   string
	lastVolume int
	playing    bool
	failWith   error
}

func (m *mockController) Validate(path string) (schedule.AudioFileMetadata, error) {
	return schedule.AudioFileMetadata{Path: path}, nil
}

func (m *mockController) Play(path string, volumePercent int) error {
	return m.PlayWithFade(path, volumePercent, 0)
}

func (m *mockController) PlayWithFade(path string, volumePercent int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCount++
	m.lastPath = path
	m.lastVolume = volumePercent
	if m.failWith != nil {
		return m.failWith
	}
	m.playing = true
	return nil
}

func (m *mockController) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *mockController) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCount
}

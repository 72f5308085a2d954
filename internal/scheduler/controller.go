// SPDX-License-Identifier: MIT

package scheduler

import (
	"time"

	"github.com/mbowers-oss/chimed/internal/schedule"
)

// Controller is the narrow capability the engine consumes from the
// audio service, kept small so tests can substitute a double.
// PlayWithFade exists alongside Play because announcements use a much
// shorter fade-in than scheduled clips.
type Controller interface {
	// Validate checks an audio file without playing it, used to learn
	// the announcement clip's duration before sleeping past it.
	Validate(path string) (schedule.AudioFileMetadata, error)
	// Play plays path at the given 0-100 volume percent, blocking
	// until the Audio Service has accepted (not finished) the request.
	Play(path string, volumePercent int) error
	// PlayWithFade is Play with an explicit fade-in duration.
	PlayWithFade(path string, volumePercent int, fadeDuration time.Duration) error
	// IsPlaying reports whether the service currently has an active
	// playback context.
	IsPlaying() bool
}

// audioService is the subset of *playback.Service the adapter needs,
// kept as an interface so this package never imports playback's
// concrete worker/decoder internals.
type audioService interface {
	Validate(path string) (schedule.AudioFileMetadata, error)
	Play(path string, volumePercent int) (schedule.PlaybackState, error)
	PlayWithFade(path string, volumePercent int, fadeDuration time.Duration) (schedule.PlaybackState, error)
	IsPlaying() bool
}

// ServiceController adapts a *playback.Service to the Controller
// capability, discarding the PlaybackState payload Play/PlayWithFade
// return since the engine only cares whether the request failed.
type ServiceController struct {
	svc audioService
}

// NewServiceController wraps svc (typically *playback.Service).
func NewServiceController(svc audioService) *ServiceController {
	return &ServiceController{svc: svc}
}

func (c *ServiceController) Validate(path string) (schedule.AudioFileMetadata, error) {
	return c.svc.Validate(path)
}

func (c *ServiceController) Play(path string, volumePercent int) error {
	_, err := c.svc.Play(path, volumePercent)
	return err
}

func (c *ServiceController) PlayWithFade(path string, volumePercent int, fadeDuration time.Duration) error {
	_, err := c.svc.PlayWithFade(path, volumePercent, fadeDuration)
	return err
}

func (c *ServiceController) IsPlaying() bool {
	return c.svc.IsPlaying()
}

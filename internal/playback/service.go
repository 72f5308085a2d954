// SPDX-License-Identifier: MIT

// Package playback implements the Audio Service: single-stream audio
// playback with validation, fade transitions, and a status view,
// serialised across concurrent callers onto a dedicated worker
// goroutine that owns the OS output stream.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/mbowers-oss/chimed/internal/schedule"
	"github.com/mbowers-oss/chimed/internal/util"
)

// DefaultPlayFadeDuration is the fade-in applied by Play (as opposed to
// PlayWithFade, which lets the caller choose).
const DefaultPlayFadeDuration = 400 * time.Millisecond

// DefaultStopFadeDuration is the fade-out Stop requests before tearing
// down the current sink.
const DefaultStopFadeDuration = 300 * time.Millisecond

// DefaultOutputSampleRate is the sample rate the output stream is
// opened at; tracks decoded at a different rate are resampled to it.
const DefaultOutputSampleRate = beep.SampleRate(44100)

// commandQueueSize bounds how many Play/Stop requests may wait in the
// worker's queue; a request that finds the queue full fails at once
// with EngineUnavailable. The worker handles one command at a time and,
// before acting on a Play or Stop, waits for any in-flight fade to
// finish.
const commandQueueSize = 8

// Config configures a Service.
type Config struct {
	// MaxFileBytes bounds Validate; zero uses DefaultMaxFileBytes.
	MaxFileBytes uint64
	// OutputSampleRate is the rate the output stream is opened at;
	// zero uses DefaultOutputSampleRate.
	OutputSampleRate beep.SampleRate
	// Logger receives worker diagnostics; nil disables logging.
	Logger *slog.Logger
}

// playCommand asks the worker to decode and play path, which the caller
// has already validated, replying on reply once the new PlaybackState
// has been published.
type playCommand struct {
	path         string
	metadata     schedule.AudioFileMetadata
	volume       float64
	fadeDuration time.Duration
	reply        chan playResult
}

// stopCommand asks the worker to fade out and tear down the current sink.
type stopCommand struct {
	fadeDuration time.Duration
	reply        chan playResult
}

type playResult struct {
	state schedule.PlaybackState
	err   error
}

// Service is the public Audio Service API: validate/play/stop/status,
// serialised onto a single worker goroutine named "audio-service".
type Service struct {
	maxFileBytes uint64
	commands     chan any
	state        *publishedState
	logger       *slog.Logger
}

// NewService constructs the Service, opening the output stream on a
// dedicated worker goroutine and blocking until the worker reports
// readiness (or a stream-initialisation failure).
func NewService(cfg Config) (*Service, error) {
	if cfg.MaxFileBytes == 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	rate := cfg.OutputSampleRate
	if rate == 0 {
		rate = DefaultOutputSampleRate
	}

	commands := make(chan any, commandQueueSize)
	ready := make(chan error, 1)
	state := newPublishedState()

	w := &worker{
		commands:   commands,
		ready:      ready,
		state:      state,
		outputRate: rate,
		logger:     cfg.Logger,
	}

	util.SafeGo("audio-service", cfg.Logger, w.run, func(r any, stack []byte) {
		// A panic before the ready signal is sent would otherwise hang
		// NewService forever; report it as a stream-init failure.
		select {
		case ready <- &EnvironmentError{Kind: ErrStreamInit, Detail: fmt.Sprintf("worker panic: %v", r)}:
		default:
		}
	})

	if err := <-ready; err != nil {
		return nil, err
	}

	return &Service{
		maxFileBytes: cfg.MaxFileBytes,
		commands:     commands,
		state:        state,
		logger:       cfg.Logger,
	}, nil
}

// Validate checks path without playing it. Synchronous: it never
// touches the worker or the output device.
func (s *Service) Validate(path string) (schedule.AudioFileMetadata, error) {
	return Validate(path, s.maxFileBytes)
}

// Play validates path then plays it with a 400ms fade-in at the given
// 0-100 volume percent.
func (s *Service) Play(path string, volumePercent int) (schedule.PlaybackState, error) {
	return s.PlayWithFade(path, volumePercent, DefaultPlayFadeDuration)
}

// PlayWithFade validates path then plays it with the given fade-in
// duration and volume.
func (s *Service) PlayWithFade(path string, volumePercent int, fadeDuration time.Duration) (schedule.PlaybackState, error) {
	metadata, err := s.Validate(path)
	if err != nil {
		return schedule.PlaybackState{}, err
	}

	reply := make(chan playResult, 1)
	cmd := playCommand{
		path:         metadata.Path,
		metadata:     metadata,
		volume:       VolumeFromPercent(volumePercent),
		fadeDuration: fadeDuration,
		reply:        reply,
	}

	select {
	case s.commands <- cmd:
	default:
		return schedule.PlaybackState{}, &EnvironmentError{Kind: ErrEngineUnavailable, Detail: "command queue full"}
	}

	result, ok := <-reply
	if !ok {
		return schedule.PlaybackState{}, &EnvironmentError{Kind: ErrEngineUnavailable, Detail: "worker reply channel closed"}
	}
	return result.state, result.err
}

// Stop requests a 300ms fade-out and tears down the current sink.
func (s *Service) Stop() (schedule.PlaybackState, error) {
	reply := make(chan playResult, 1)
	cmd := stopCommand{fadeDuration: DefaultStopFadeDuration, reply: reply}

	select {
	case s.commands <- cmd:
	default:
		return schedule.PlaybackState{}, &EnvironmentError{Kind: ErrEngineUnavailable, Detail: "command queue full"}
	}

	result, ok := <-reply
	if !ok {
		return schedule.PlaybackState{}, &EnvironmentError{Kind: ErrEngineUnavailable, Detail: "worker reply channel closed"}
	}
	return result.state, result.err
}

// Status is a non-blocking read of the last published PlaybackState; it
// does not round-trip through the worker.
func (s *Service) Status() schedule.PlaybackState {
	return s.state.load()
}

// IsPlaying reports whether the service currently has an active
// playback context. Part of the narrow capability interface the
// scheduler engine consumes.
func (s *Service) IsPlaying() bool {
	return s.state.load().IsPlaying
}

// publishedState is the shared PlaybackState snapshot Status reads, so
// a status query never round-trips through (or contends with) the
// audio worker.
type publishedState struct {
	mu    sync.RWMutex
	value schedule.PlaybackState
}

func newPublishedState() *publishedState {
	return &publishedState{value: schedule.IdlePlaybackState()}
}

func (p *publishedState) load() schedule.PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

func (p *publishedState) store(v schedule.PlaybackState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
}

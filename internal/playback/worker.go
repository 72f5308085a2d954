// SPDX-License-Identifier: MIT

package playback

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/mbowers-oss/chimed/internal/schedule"
	"github.com/mbowers-oss/chimed/internal/util"
)

// fadeSteps is the number of linear steps every fade ramps through.
const fadeSteps = 12

// worker owns the OS output stream and processes Play/Stop commands
// one at a time on a dedicated goroutine; callers reach it only
// through the command queue.
type worker struct {
	commands   chan any
	ready      chan error
	state      *publishedState
	outputRate beep.SampleRate
	logger     *slog.Logger

	speakerOpen bool
	track       *decodedTrack
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	lastVolume  float64
	fadeDone    chan struct{}
}

func (w *worker) run() {
	if err := speaker.Init(w.outputRate, w.outputRate.N(time.Second/10)); err != nil {
		w.ready <- &EnvironmentError{Kind: ErrNoOutputDevice, Detail: err.Error()}
		return
	}
	w.speakerOpen = true
	w.ready <- nil

	for cmd := range w.commands {
		switch c := cmd.(type) {
		case playCommand:
			c.reply <- w.handlePlay(c)
		case stopCommand:
			c.reply <- w.handleStop(c)
		}
	}
}

func (w *worker) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Info(fmt.Sprintf(format, args...))
	}
}

// joinFade waits for any in-flight fade goroutine to finish. The fade
// itself is never interrupted mid-ramp; callers simply block until it
// completes before mutating the sink further.
func (w *worker) joinFade() {
	if w.fadeDone != nil {
		<-w.fadeDone
		w.fadeDone = nil
	}
}

// stopImmediate tears down the current sink without fading, used
// before installing a new playback context.
func (w *worker) stopImmediate() {
	if w.track == nil {
		return
	}
	speaker.Lock()
	speaker.Clear()
	speaker.Unlock()
	_ = w.track.streamer.Close()
	w.track = nil
	w.ctrl = nil
	w.volume = nil
}

func (w *worker) handlePlay(c playCommand) playResult {
	w.joinFade()
	w.stopImmediate()

	track, err := decodeFile(c.path)
	if err != nil {
		return playResult{state: w.state.load(), err: err}
	}

	ctrl, volume, err := w.buildSink(track)
	if err != nil {
		_ = track.streamer.Close()
		return playResult{state: w.state.load(), err: err}
	}

	speaker.Lock()
	w.track = track
	w.ctrl = ctrl
	w.volume = volume
	speaker.Unlock()

	speaker.Play(ctrl)

	w.fadeDone = w.spawnFade(volume, 0, c.volume, c.fadeDuration, nil)
	w.lastVolume = c.volume

	context := schedule.PlaybackContext{
		Path:            c.path,
		Metadata:        c.metadata,
		StartedAt:       time.Now(),
		EffectiveVolume: c.volume,
	}
	newState := schedule.PlaybackState{IsPlaying: true, Current: &context}
	w.state.store(newState)
	w.logf("playing %s at volume %.2f", c.path, c.volume)

	return playResult{state: newState}
}

// buildSink assembles the resample/volume/ctrl playback graph for a
// decoded track and reports it as the worker's new sink. Unlike
// decodeFile's codec-parsing panics (reported as Decode), a failure
// here is an EnvironmentError: assembling or installing the output
// graph is a host-audio-stack concern, not a file-content one. A
// malformed header that slips past decode (e.g. a zero sample rate)
// can make beep.Resample panic rather than return an error, so
// construction is guarded the same way decodeFile guards its decoders.
func (w *worker) buildSink(track *decodedTrack) (ctrl *beep.Ctrl, volume *effects.Volume, err error) {
	if track.format.SampleRate <= 0 {
		return nil, nil, &EnvironmentError{Kind: ErrSinkInit, Detail: "decoded track reports a non-positive sample rate"}
	}

	panicErr := util.CatchPanic(func() error {
		var stream beep.Streamer = track.streamer
		if track.format.SampleRate != w.outputRate {
			stream = beep.Resample(4, track.format.SampleRate, w.outputRate, track.streamer)
		}
		volume = &effects.Volume{Streamer: stream, Base: 2, Silent: true, Volume: 0}
		ctrl = &beep.Ctrl{Streamer: volume, Paused: false}
		return nil
	})
	if panicErr != nil {
		return nil, nil, &EnvironmentError{Kind: ErrSinkInit, Detail: panicErr.Error()}
	}

	return ctrl, volume, nil
}

func (w *worker) handleStop(c stopCommand) playResult {
	w.joinFade()

	if w.track == nil {
		idle := schedule.IdlePlaybackState()
		w.state.store(idle)
		return playResult{state: idle}
	}

	// Detach the outgoing track/volume synchronously, on the worker
	// goroutine, before the fade closure takes over: only the local
	// references below are touched from the spawned goroutine, so
	// there is no shared mutable state for handlePlay's next
	// stopImmediate/joinFade to race against.
	track := w.track
	volume := w.volume
	fadeFrom := w.lastVolume
	w.track, w.ctrl, w.volume = nil, nil, nil

	w.fadeDone = w.spawnFade(volume, fadeFrom, 0, c.fadeDuration, track)

	idle := schedule.IdlePlaybackState()
	w.state.store(idle)
	w.logf("stopping playback, fading out over %s", c.fadeDuration)

	return playResult{state: idle}
}

// spawnFade ramps volume's effective linear gain from start to end
// over duration, in fadeSteps equal steps of duration/fadeSteps each:
// at step k the gain is start + (end-start)*k/fadeSteps. A zero
// duration applies the endpoint volume in one step. When stopTrack is
// non-nil, the sink is cleared and the track closed once the ramp
// completes (the fade-out path).
func (w *worker) spawnFade(volume *effects.Volume, start, end float64, duration time.Duration, stopTrack *decodedTrack) chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		if duration <= 0 {
			setLinearVolume(volume, end)
		} else {
			stepDuration := duration / fadeSteps
			for step := 0; step <= fadeSteps; step++ {
				t := float64(step) / float64(fadeSteps)
				setLinearVolume(volume, start+(end-start)*t)
				if step < fadeSteps {
					time.Sleep(stepDuration)
				}
			}
		}

		if stopTrack != nil {
			speaker.Lock()
			speaker.Clear()
			speaker.Unlock()
			_ = stopTrack.streamer.Close()
		}
	}()

	return done
}

// setLinearVolume clamps linear (a 0.0-1.0 gain, matching the Service's
// public volume contract) and applies it to an effects.Volume, which
// expects a base-2 logarithmic exponent rather than a linear gain.
func setLinearVolume(volume *effects.Volume, linear float64) {
	if linear < 0 {
		linear = 0
	}
	if linear > 1 {
		linear = 1
	}

	speaker.Lock()
	defer speaker.Unlock()

	if linear <= 0.0001 {
		volume.Silent = true
		return
	}
	volume.Silent = false
	volume.Volume = math.Log2(linear)
}

// SPDX-License-Identifier: MIT

package playback

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestService starts a Service against the real output device. CI
// and sandboxed environments frequently have none, so a stream-init
// failure skips rather than fails the test.
func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{})
	if err != nil {
		t.Skipf("no audio output device available: %v", err)
	}
	t.Cleanup(func() { _, _ = svc.Stop() })
	return svc
}

func TestService_StatusStartsIdle(t *testing.T) {
	svc := newTestService(t)
	require.False(t, svc.IsPlaying())
	require.False(t, svc.Status().IsPlaying)
}

func TestService_PlayThenStop(t *testing.T) {
	svc := newTestService(t)
	path := writeTestWAV(t, t.TempDir(), 44100*5, 44100)

	state, err := svc.PlayWithFade(path, 50, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, state.IsPlaying)
	require.NotNil(t, state.Current)

	// Play canonicalizes the path, so the published context reflects
	// the resolved path rather than the raw one.
	canonical, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	canonical, err = filepath.Abs(canonical)
	require.NoError(t, err)
	require.Equal(t, canonical, state.Current.Path)

	require.Eventually(t, svc.IsPlaying, time.Second, 5*time.Millisecond)

	state, err = svc.Stop()
	require.NoError(t, err)
	require.False(t, state.IsPlaying)
}

func TestService_ValidateRejectsMissingFile(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Validate("/no/such/file.wav")
	require.Error(t, err)
}

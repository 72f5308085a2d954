// SPDX-License-Identifier: MIT

package playback

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbowers-oss/chimed/internal/schedule"
)

// DefaultMaxFileBytes bounds the size of an audio file chimed will
// attempt to play.
const DefaultMaxFileBytes uint64 = 512 * 1024 * 1024

// Validate checks that path exists, is within maxBytes, and carries a
// supported extension, then attempts a decode to extract metadata.
// The decode step is necessary to catch files that merely carry a
// plausible extension but are not actually playable.
func Validate(path string, maxBytes uint64) (schedule.AudioFileMetadata, error) {
	if maxBytes == 0 {
		maxBytes = DefaultMaxFileBytes
	}

	path, err := canonicalize(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schedule.AudioFileMetadata{}, &ValidationError{Kind: ErrNotFound, Path: path}
		}
		return schedule.AudioFileMetadata{}, &ValidationError{Kind: ErrNotFound, Path: path, Detail: err.Error()}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schedule.AudioFileMetadata{}, &ValidationError{Kind: ErrNotFound, Path: path}
		}
		return schedule.AudioFileMetadata{}, &ValidationError{Kind: ErrNotFound, Path: path, Detail: err.Error()}
	}
	if info.IsDir() {
		return schedule.AudioFileMetadata{}, &ValidationError{Kind: ErrNotFound, Path: path, Detail: "path is a directory"}
	}

	size := uint64(info.Size())
	if size > maxBytes {
		return schedule.AudioFileMetadata{}, &ValidationError{
			Kind: ErrFileTooLarge, Path: path, FileBytes: size, MaxBytes: maxBytes,
		}
	}

	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !SupportedExtensions[extension] {
		return schedule.AudioFileMetadata{}, &ValidationError{Kind: ErrUnsupportedFormat, Path: path, Extension: extension}
	}

	track, err := decodeFile(path)
	if err != nil {
		return schedule.AudioFileMetadata{}, err
	}
	defer track.streamer.Close()

	durationMS := uint64(track.format.SampleRate.D(track.streamer.Len()).Milliseconds())

	return schedule.AudioFileMetadata{
		Path:       path,
		FileName:   filepath.Base(path),
		Extension:  extension,
		DurationMS: &durationMS,
		SampleRate: uint32(track.format.SampleRate),
		Channels:   uint16(track.format.NumChannels),
		SizeBytes:  size,
	}, nil
}

// canonicalize resolves path's symlinks and makes it absolute, before
// any other check runs. If path does not exist, the uncanonicalized
// path is returned alongside the error so the resulting NotFound error
// still reports what the caller passed in rather than a
// partially-resolved path.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path, err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return path, err
	}
	return abs, nil
}

// VolumeFromPercent clamps a 0-100 integer volume and maps it to the
// 0.0-1.0 linear gain range the worker's fades operate on.
func VolumeFromPercent(percent int) float64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return float64(percent) / 100.0
}

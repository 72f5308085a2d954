// SPDX-License-Identifier: MIT

package playback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/mbowers-oss/chimed/internal/util"
)

// SupportedExtensions is the accepted audio-file extension whitelist.
// m4a and aac are whitelisted per the validator contract but always
// fail to decode: the retrieved dependency set contains no AAC/MP4
// container decoder, so these two extensions legitimately surface a
// Decode error rather than being silently dropped from the whitelist.
var SupportedExtensions = map[string]bool{
	"mp3": true, "wav": true, "flac": true, "ogg": true, "oga": true,
	"m4a": true, "aac": true,
}

// decodedTrack bundles the decoded stream with its format and the
// lowercased extension used to select the decoder.
type decodedTrack struct {
	streamer  beep.StreamSeekCloser
	format    beep.Format
	extension string
}

// decodeFile opens path and dispatches to the matching beep decoder.
// Decoder construction is wrapped in panic recovery: a malformed file
// can make the underlying codec library abort rather than return an
// error, and that must never crash the audio-service worker.
func decodeFile(path string) (*decodedTrack, error) {
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	f, err := os.Open(path) // #nosec G304 - path is validated by Validate before this is reached
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var (
		streamer  beep.StreamSeekCloser
		format    beep.Format
		decodeErr error
	)

	panicErr := util.CatchPanic(func() error {
		switch extension {
		case "mp3":
			streamer, format, decodeErr = mp3.Decode(f)
		case "wav":
			streamer, format, decodeErr = wav.Decode(f)
		case "flac":
			streamer, format, decodeErr = flac.Decode(f)
		case "ogg", "oga":
			streamer, format, decodeErr = vorbis.Decode(f)
		case "m4a", "aac":
			decodeErr = fmt.Errorf("no AAC/MP4 decoder available")
		default:
			decodeErr = fmt.Errorf("unsupported extension %q", extension)
		}
		return nil
	})

	if panicErr != nil {
		_ = f.Close()
		return nil, &ValidationError{Kind: ErrDecode, Path: path, Detail: panicErr.Error()}
	}
	if decodeErr != nil {
		_ = f.Close()
		return nil, &ValidationError{Kind: ErrDecode, Path: path, Detail: decodeErr.Error()}
	}

	return &decodedTrack{streamer: streamer, format: format, extension: extension}, nil
}

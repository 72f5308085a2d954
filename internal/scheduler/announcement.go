// SPDX-License-Identifier: MIT

package scheduler

import (
	"os"
	"path/filepath"
	"time"
)

// Announcement clips play with a short fade-in at a fixed volume,
// independent of the schedule's own volume.
const (
	announcementFadeIn = 50 * time.Millisecond
	announcementVolume = 80
)

// announcementFallbackDelay is used when the clip's duration cannot be
// determined.
const announcementFallbackDelay = 3000 * time.Millisecond

// announcementTrailingGap is added after a clip of known duration
// before the main file starts.
const announcementTrailingGap = 500 * time.Millisecond

// announcementSearchDirs are tried in order when AnnouncementSound
// names a bare sound (a short name like "spell") rather than a path:
// the installed resource directories first, then the in-tree assets
// directory for development builds.
var announcementSearchDirs = []string{
	"/usr/share/chimed/sounds",
	"/usr/local/share/chimed/sounds",
	"assets/sounds",
}

var announcementExtensions = []string{".wav", ".mp3", ".ogg", ".flac"}

// resolveAnnouncementPath turns a configured sound name or path into a
// file that exists on disk. If name already names an existing file
// (absolute or relative path), it is returned unchanged. Otherwise
// each search directory is tried with each supported extension.
func resolveAnnouncementPath(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, true
	}
	if filepath.Ext(name) != "" {
		// Already has an extension but wasn't found as-is; still try
		// the search directories in case it's a bare filename.
		for _, dir := range announcementSearchDirs {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
		return "", false
	}
	for _, dir := range announcementSearchDirs {
		for _, ext := range announcementExtensions {
			candidate := filepath.Join(dir, name+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

// playAnnouncement plays the configured announcement clip, then sleeps
// past its duration so the main file does not talk over it. Errors are
// never propagated to the caller: a broken announcement must not abort
// the scheduled playback. A best-effort log line is emitted instead.
func (t *task) playAnnouncement() {
	settings := t.engine.settings()
	if settings == nil || !settings.AnnouncementEnabled {
		return
	}

	path, ok := resolveAnnouncementPath(settings.AnnouncementSound)
	if !ok {
		t.engine.logf("announcement sound %q not found, skipping", settings.AnnouncementSound)
		return
	}

	metadata, err := t.engine.audio.Validate(path)
	if err != nil {
		t.engine.logf("announcement validation failed for %s: %v", path, err)
		return
	}

	if err := t.engine.audio.PlayWithFade(path, announcementVolume, announcementFadeIn); err != nil {
		t.engine.logf("announcement playback failed for %s: %v", path, err)
		return
	}

	delay := announcementFallbackDelay
	if metadata.DurationMS != nil {
		delay = time.Duration(*metadata.DurationMS)*time.Millisecond + announcementTrailingGap
	}

	select {
	case <-t.ctx.Done():
	case <-time.After(delay):
	}
}

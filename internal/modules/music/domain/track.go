package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Fingerprint is a deterministic identifier derived from a track's source
// link and title. It is the cache/dedup key and the filename prefix of the
// backing audio file.
type Fingerprint string

// NewFingerprint computes the fingerprint for a source link and title.
func NewFingerprint(sourceURL, title string) Fingerprint {
	sum := sha256.Sum256([]byte(sourceURL + "\n" + title))
	return Fingerprint(hex.EncodeToString(sum[:8]))
}

// TrackMetadata describes a resolved track. It is created once at the
// extraction-service boundary and immutable thereafter.
type TrackMetadata struct {
	Title        string
	Uploader     string
	Duration     time.Duration // zero when unknown (e.g. livestreams)
	ThumbnailURL string
	SourceURL    string
	Fingerprint  Fingerprint
}

// NewTrackMetadata builds metadata and derives its fingerprint.
func NewTrackMetadata(title, uploader, thumbnailURL, sourceURL string, duration time.Duration) TrackMetadata {
	return TrackMetadata{
		Title:        title,
		Uploader:     uploader,
		Duration:     duration,
		ThumbnailURL: thumbnailURL,
		SourceURL:    sourceURL,
		Fingerprint:  NewFingerprint(sourceURL, title),
	}
}

// FormattedDuration returns the duration as mm:ss or hh:mm:ss, or "LIVE"
// when the duration is unknown.
func (m TrackMetadata) FormattedDuration() string {
	if m.Duration <= 0 {
		return "LIVE"
	}
	return FormatDuration(m.Duration)
}

// FormatDuration renders a duration as mm:ss or hh:mm:ss.
func FormatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
	}
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

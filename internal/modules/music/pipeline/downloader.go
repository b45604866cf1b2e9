package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/hhkim0505/aribot/internal/modules/music/cache"
	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

const (
	maxFetchAttempts = 3
	fetchBackoffBase = time.Second
	fetchBackoffGrow = 1.5
	attemptTimeout   = 4 * time.Minute
	maxTitleInName   = 80
)

// Downloader fetches audio files into the cache directory. Attempt counting
// and terminal state transitions go through the ledger entry so that waiters
// blocked on the entry observe a single outcome.
type Downloader struct {
	dir string
}

// NewDownloader creates a Downloader writing into dir. The directory is
// created if it does not exist.
func NewDownloader(dir string) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Downloader{dir: dir}, nil
}

// Download drives a ledger entry to Ready or Failed. On success the entry's
// path points at the fetched file; on exhaustion of retries the entry is
// marked failed and removed from the ledger by the caller's ledger.
func (d *Downloader) Download(ctx context.Context, ledger *cache.Ledger, entry *cache.Entry) error {
	meta := entry.Metadata()
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		entry.StartAttempt()
		path, err := d.fetch(ctx, meta)
		if err == nil {
			ledger.MarkReady(meta.Fingerprint, path)
			return nil
		}
		lastErr = err
		d.cleanPartials(meta.Fingerprint)
		slog.Warn("track download attempt failed",
			"fingerprint", meta.Fingerprint,
			"attempt", attempt,
			"error", err)

		if attempt == maxFetchAttempts || ctx.Err() != nil {
			break
		}
		backoff := time.Duration(float64(fetchBackoffBase) * pow(fetchBackoffGrow, attempt-1))
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(backoff):
			continue
		}
		break
	}

	err := fmt.Errorf("%w: %v", domain.ErrDownload, lastErr)
	ledger.MarkFailed(meta.Fingerprint, err)
	return err
}

// fetch runs a single yt-dlp invocation bounded by attemptTimeout and
// returns the path of the downloaded file.
func (d *Downloader) fetch(ctx context.Context, meta domain.TrackMetadata) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	template := filepath.Join(d.dir, baseFilename(meta)+".%(ext)s")
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist().
		Format("bestaudio/best").
		Output(template).
		Print("after_move:%(filepath)s").
		NoSimulate().
		Run(ctx, meta.SourceURL)
	if err != nil {
		return "", err
	}

	path := strings.TrimSpace(res.Stdout)
	if path == "" {
		return "", fmt.Errorf("downloader reported no output file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}
	return path, nil
}

// cleanPartials removes fragments left behind by an interrupted fetch. Every
// file for a track shares the fingerprint prefix, so a glob is sufficient.
func (d *Downloader) cleanPartials(fp domain.Fingerprint) {
	matches, err := filepath.Glob(filepath.Join(d.dir, string(fp)+"-*"))
	if err != nil {
		return
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove partial download", "path", match, "error", err)
		}
	}
}

// baseFilename derives the on-disk name for a track: the fingerprint keeps
// names unique, the sanitized title keeps the directory human-readable.
func baseFilename(meta domain.TrackMetadata) string {
	return string(meta.Fingerprint) + "-" + sanitizeTitle(meta.Title)
}

// sanitizeTitle strips characters that are unsafe in filenames and bounds
// the length so templates never exceed filesystem limits.
func sanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune('_')
		}
		if b.Len() >= maxTitleInName {
			break
		}
	}
	if b.Len() == 0 {
		return "track"
	}
	return b.String()
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for range exp {
		result *= base
	}
	return result
}

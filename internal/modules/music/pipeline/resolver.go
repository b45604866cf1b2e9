// Package pipeline resolves play queries to track metadata and materializes
// audio files on local storage via the external yt-dlp downloader.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/raitonoberu/ytsearch"

	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

// Resolver turns raw queries (search terms or direct links) into immutable
// TrackMetadata. The raw extraction-service shape never leaves this package.
type Resolver struct {
	timeout time.Duration
}

// NewResolver creates a Resolver whose calls to the extraction service are
// bounded by timeout.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{timeout: timeout}
}

// Resolve converts a query or direct link into track metadata. Plain-text
// queries resolve through the search index; links are probed with yt-dlp.
// Fails with a wrapped domain.ErrResolution on empty or invalid results.
func (r *Resolver) Resolve(ctx context.Context, query string) (domain.TrackMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if isLink(query) {
		return r.probeLink(ctx, query)
	}

	results, err := r.Search(ctx, query, 1)
	if err != nil {
		return domain.TrackMetadata{}, err
	}
	return results[0], nil
}

// Search returns up to limit candidate tracks for a plain-text query.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]domain.TrackMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type searchOutcome struct {
		results []domain.TrackMetadata
		err     error
	}
	outcome := make(chan searchOutcome, 1)

	// ytsearch has no context support; bound it with a goroutine so a slow
	// search cannot stall the caller past the resolve timeout.
	go func() {
		search := ytsearch.VideoSearch(query)
		page, err := search.Next()
		if err != nil {
			outcome <- searchOutcome{err: fmt.Errorf("%w: %v", domain.ErrResolution, err)}
			return
		}

		results := make([]domain.TrackMetadata, 0, limit)
		for _, video := range page.Videos {
			if len(results) >= limit {
				break
			}
			sourceURL := "https://www.youtube.com/watch?v=" + video.ID
			thumbnail := ""
			if len(video.Thumbnails) > 0 {
				thumbnail = video.Thumbnails[len(video.Thumbnails)-1].URL
			}
			results = append(results, domain.NewTrackMetadata(
				video.Title,
				video.Channel.Title,
				thumbnail,
				sourceURL,
				time.Duration(video.Duration)*time.Second,
			))
		}
		if len(results) == 0 {
			outcome <- searchOutcome{err: fmt.Errorf("%w: %w", domain.ErrResolution, domain.ErrNoResults)}
			return
		}
		outcome <- searchOutcome{results: results}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrResolution, ctx.Err())
	case out := <-outcome:
		return out.results, out.err
	}
}

// probeLink asks yt-dlp for the link's metadata without downloading.
func (r *Resolver) probeLink(ctx context.Context, link string) (domain.TrackMetadata, error) {
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist().
		SkipDownload().
		Print("%(title)s\t%(uploader)s\t%(duration)s\t%(thumbnail)s\t%(webpage_url)s").
		Run(ctx, link)
	if err != nil {
		return domain.TrackMetadata{}, fmt.Errorf("%w: %v", domain.ErrResolution, err)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 5 || fields[0] == "" || fields[0] == "NA" {
			continue
		}
		duration, _ := time.ParseDuration(fields[2] + "s")
		thumbnail := fields[3]
		if thumbnail == "NA" {
			thumbnail = ""
		}
		return domain.NewTrackMetadata(fields[0], fields[1], thumbnail, fields[4], duration), nil
	}
	return domain.TrackMetadata{}, fmt.Errorf("%w: no usable metadata for link", domain.ErrResolution)
}

func isLink(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}

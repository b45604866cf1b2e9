package pipeline

import (
	"context"

	"github.com/hhkim0505/aribot/internal/modules/music/cache"
	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

// Fetcher ties the ledger and the downloader together: callers ask for a
// track and get back the ledger entry to wait on, with at most one download
// in flight per fingerprint process-wide.
type Fetcher struct {
	ledger     *cache.Ledger
	downloader *Downloader
}

// NewFetcher creates a Fetcher backed by ledger and downloader.
func NewFetcher(ledger *cache.Ledger, downloader *Downloader) *Fetcher {
	return &Fetcher{ledger: ledger, downloader: downloader}
}

// Fetch returns the cache entry for meta. When this call is the first to ask
// for the track, a download starts in the background; the download outlives
// the caller's context so an expired interaction cannot abort a fetch other
// guilds may be waiting on.
func (f *Fetcher) Fetch(ctx context.Context, meta domain.TrackMetadata) *cache.Entry {
	entry, created := f.ledger.GetOrCreate(meta)
	if created {
		// The download's outcome lands on the entry itself.
		go func() { _ = f.downloader.Download(context.WithoutCancel(ctx), f.ledger, entry) }()
	}
	return entry
}

package music

import "time"

// Config holds the music module configuration.
type Config struct {
	// CacheDir is where downloaded audio files live.
	CacheDir string `env:"MUSIC_CACHE_DIR" envDefault:"/var/cache/aribot/tracks"`

	// CacheMaxEntries bounds how many tracks the cache keeps. Zero means
	// unbounded.
	CacheMaxEntries int `env:"MUSIC_CACHE_MAX_ENTRIES" envDefault:"256"`

	// CacheTTL is how long an unused cached track survives.
	CacheTTL time.Duration `env:"MUSIC_CACHE_TTL" envDefault:"1h"`

	// CacheSweepInterval is how often expired cache entries are evicted.
	CacheSweepInterval time.Duration `env:"MUSIC_CACHE_SWEEP_INTERVAL" envDefault:"30m"`

	// QueueSize bounds the per-guild queue. Zero means unbounded.
	QueueSize int `env:"MUSIC_QUEUE_SIZE" envDefault:"100"`

	// MaxTrackDuration rejects overlong tracks at enqueue time. Zero
	// disables the limit.
	MaxTrackDuration time.Duration `env:"MUSIC_MAX_TRACK_DURATION" envDefault:"2h"`

	// ResolveTimeout bounds metadata extraction for a single query.
	ResolveTimeout time.Duration `env:"MUSIC_RESOLVE_TIMEOUT" envDefault:"10s"`

	// DefaultVolume is the initial playback volume on the 0.0-2.0 scale.
	DefaultVolume float64 `env:"MUSIC_DEFAULT_VOLUME" envDefault:"0.05"`

	// OccupancyInterval is how often connected channels are checked for
	// the bot being alone.
	OccupancyInterval time.Duration `env:"MUSIC_OCCUPANCY_INTERVAL" envDefault:"10s"`
}

package leapsec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the raw bytes of the published leap-second table.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// CacheStore persists the raw bytes of the last successful fetch and recalls
// the newest copy together with the time it was fetched.
type CacheStore interface {
	LoadLatest() (data []byte, fetchedAt time.Time, err error)
	Write(data []byte, ts time.Time) (path string, err error)
}

// Config controls a Converter.
type Config struct {
	// SourceURL of the published table. Empty selects DefaultSourceURL.
	SourceURL string

	// CacheDir holds the fetched table copies. Empty selects the current
	// working directory. The directory must exist.
	CacheDir string

	// RefreshInterval is how long a fetched table stays fresh. Zero selects
	// DefaultRefreshInterval; a negative value makes every table access
	// refresh.
	RefreshInterval time.Duration

	// MaxCacheFiles bounds how many table copies are kept on disk; <= 0
	// keeps all of them.
	MaxCacheFiles int
}

// Converter converts instants between UTC, TAI, GPS time and Unix seconds,
// backed by an automatically refreshed leap-second table.
//
// The table lives behind an atomic pointer as an immutable snapshot. Every
// operation that consults it re-checks staleness first, so a long-lived
// Converter picks up newly published leap seconds without a restart; the
// price is that such a call may block on network and disk I/O whenever the
// refresh interval has elapsed. Operations that never consult the table
// (Unix and GPS-calendar arithmetic) are pure and cannot fail.
type Converter struct {
	cfg     Config
	fetcher Fetcher
	cache   CacheStore
	clock   Clock
	logger  *slog.Logger

	table       atomic.Pointer[Table]
	lastRefresh atomic.Int64 // unix seconds of the last successful refresh
	group       singleflight.Group
}

// Option overrides a Converter collaborator, mainly for tests.
type Option func(*Converter)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Converter) { c.fetcher = f }
}

// WithCacheStore replaces the default file cache.
func WithCacheStore(s CacheStore) Option {
	return func(c *Converter) { c.cache = s }
}

// WithClock replaces the system clock used for staleness decisions.
func WithClock(clk Clock) Option {
	return func(c *Converter) { c.clock = clk }
}

// NewConverter builds a Converter and loads an initial table: from the newest
// cache file when one exists and is still fresh, otherwise by fetching the
// published table immediately. A missing cache directory is fatal.
func NewConverter(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Converter, error) {
	if cfg.CacheDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.CacheDir = wd
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	c := &Converter{
		cfg:    cfg,
		clock:  systemClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = NewHTTPFetcher(cfg.SourceURL, logger)
	}
	if c.cache == nil {
		c.cache = NewFileCache(cfg.CacheDir, cfg.MaxCacheFiles)
	}

	data, fetchedAt, err := c.cache.LoadLatest()
	switch {
	case errors.Is(err, ErrNoCacheFile):
		logger.Info("no cached leap-second table", "cache_dir", cfg.CacheDir)
	case err != nil:
		return nil, err
	default:
		c.lastRefresh.Store(fetchedAt.Unix())
	}

	if c.stale() {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	records, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return nil, err
	}
	c.table.Store(NewTable(records, fetchedAt))
	logger.Info("loaded leap-second table from cache",
		"entries", len(records),
		"fetched_at", fetchedAt.UTC().Format(time.RFC3339),
	)
	return c, nil
}

// Table returns the current table snapshot. It is never nil on a Converter
// built by NewConverter.
func (c *Converter) Table() *Table {
	return c.table.Load()
}

// LastRefresh returns when the table was last successfully refreshed.
func (c *Converter) LastRefresh() time.Time {
	return time.Unix(c.lastRefresh.Load(), 0).UTC()
}

func (c *Converter) stale() bool {
	return c.clock.Now().Unix() > c.lastRefresh.Load()+int64(c.cfg.RefreshInterval/time.Second)
}

// ensureFresh refreshes the table when the refresh interval has elapsed.
// Concurrent callers share a single in-flight refresh.
func (c *Converter) ensureFresh(ctx context.Context) error {
	if !c.stale() {
		return nil
	}
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		if !c.stale() {
			// Another caller refreshed while we queued.
			return nil, nil
		}
		return nil, c.refresh(ctx)
	})
	return err
}

// refresh fetches, parses and swaps in a new table snapshot, then persists
// the raw bytes. A fetch or parse failure leaves the previous table and
// refresh timestamp untouched, so the next table access retries.
func (c *Converter) refresh(ctx context.Context) error {
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	records, err := Parse(bytes.NewReader(data), c.logger)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	c.table.Store(NewTable(records, now))
	c.lastRefresh.Store(now.Unix())

	path, err := c.cache.Write(data, now)
	if err != nil {
		// The fresh table is already live; losing the disk copy only costs
		// a refetch on the next restart.
		c.logger.Warn("failed to persist leap-second table", "error", err)
		return nil
	}
	c.logger.Info("leap-second table refreshed", "entries", len(records), "cache_file", path)
	return nil
}

// OffsetAtUTC returns TAI−UTC in seconds at the given UTC instant.
func (c *Converter) OffsetAtUTC(ctx context.Context, utc time.Time) (float64, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return 0, err
	}
	return c.table.Load().OffsetAtUTC(utc), nil
}

// OffsetAtTAI returns TAI−UTC in seconds at the given TAI instant.
func (c *Converter) OffsetAtTAI(ctx context.Context, tai time.Time) (float64, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return 0, err
	}
	return c.table.Load().OffsetAtTAI(tai), nil
}

// UTCToTAI converts a UTC instant to the TAI scale.
func (c *Converter) UTCToTAI(ctx context.Context, utc time.Time) (time.Time, error) {
	off, err := c.OffsetAtUTC(ctx, utc)
	if err != nil {
		return time.Time{}, err
	}
	return utc.Add(secondsToDuration(off)), nil
}

// TAIToUTC converts a TAI instant to the UTC scale.
func (c *Converter) TAIToUTC(ctx context.Context, tai time.Time) (time.Time, error) {
	off, err := c.OffsetAtTAI(ctx, tai)
	if err != nil {
		return time.Time{}, err
	}
	return tai.Add(-secondsToDuration(off)), nil
}

// UTCToUnix returns seconds since the Unix epoch. Unix time is leap-agnostic
// by definition, so no table consultation happens and the call cannot fail.
func (c *Converter) UTCToUnix(utc time.Time) float64 {
	return utc.Sub(UTCUnixEpoch).Seconds()
}

// UnixToUTC converts seconds since the Unix epoch to a UTC instant.
func (c *Converter) UnixToUTC(seconds float64) time.Time {
	return UTCUnixEpoch.Add(secondsToDuration(seconds))
}

// TAIToGPS returns GPS seconds: TAI seconds elapsed since the GPS epoch.
func (c *Converter) TAIToGPS(ctx context.Context, tai time.Time) (float64, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return 0, err
	}
	return tai.Sub(c.table.Load().TAIGPSEpoch).Seconds(), nil
}

// GPSToTAI converts GPS seconds to a TAI instant.
func (c *Converter) GPSToTAI(ctx context.Context, seconds float64) (time.Time, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return time.Time{}, err
	}
	return c.table.Load().TAIGPSEpoch.Add(secondsToDuration(seconds)), nil
}

// GPSToGPSCalendar maps GPS seconds onto the calendar as a naive offset from
// the GPS epoch. GPS time does not observe leap seconds, so this is
// deliberately not leap-corrected.
func (c *Converter) GPSToGPSCalendar(seconds float64) time.Time {
	return UTCGPSEpoch.Add(secondsToDuration(seconds))
}

// GPSCalendarToGPS is the inverse of GPSToGPSCalendar.
func (c *Converter) GPSCalendarToGPS(t time.Time) float64 {
	return t.Sub(UTCGPSEpoch).Seconds()
}

// GPSToUTC converts GPS seconds to a UTC instant.
func (c *Converter) GPSToUTC(ctx context.Context, seconds float64) (time.Time, error) {
	tai, err := c.GPSToTAI(ctx, seconds)
	if err != nil {
		return time.Time{}, err
	}
	return c.TAIToUTC(ctx, tai)
}

// UTCToGPS converts a UTC instant to GPS seconds.
func (c *Converter) UTCToGPS(ctx context.Context, utc time.Time) (float64, error) {
	tai, err := c.UTCToTAI(ctx, utc)
	if err != nil {
		return 0, err
	}
	return c.TAIToGPS(ctx, tai)
}

// GPSToUnix converts GPS seconds to Unix seconds.
func (c *Converter) GPSToUnix(ctx context.Context, seconds float64) (float64, error) {
	utc, err := c.GPSToUTC(ctx, seconds)
	if err != nil {
		return 0, err
	}
	return c.UTCToUnix(utc), nil
}

// UnixToGPS converts Unix seconds to GPS seconds.
func (c *Converter) UnixToGPS(ctx context.Context, seconds float64) (float64, error) {
	return c.UTCToGPS(ctx, c.UnixToUTC(seconds))
}

// Package leapsec converts instants between UTC, TAI, GPS time and Unix
// seconds, using the published table of leap-second insertions. The table is
// fetched from its authoritative source, cached on disk, and refreshed
// automatically once it goes stale.
package leapsec

import "time"

// DefaultSourceURL is the cumulative TAI−UTC table published by the
// US Naval Observatory.
const DefaultSourceURL = "https://maia.usno.navy.mil/ser7/tai-utc.dat"

// DefaultRefreshInterval is how long a fetched table is trusted before the
// next table access triggers a re-fetch.
const DefaultRefreshInterval = 30 * 24 * time.Hour

var (
	// UTCUnixEpoch is the Unix epoch, 1970-01-01T00:00:00 UTC.
	UTCUnixEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

	// UTCGPSEpoch is the GPS epoch, 1980-01-06T00:00:00 UTC.
	UTCGPSEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)
)

// Record is one leap-second insertion event: from EffectiveUTC onward,
// TAI−UTC equals Offset seconds. EffectiveTAI is the same boundary expressed
// on the TAI scale, i.e. EffectiveUTC plus Offset. Records are immutable once
// parsed.
type Record struct {
	EffectiveUTC time.Time
	EffectiveTAI time.Time
	Offset       float64 // cumulative TAI−UTC in seconds
}

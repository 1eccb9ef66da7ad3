package leapsec

import (
	"math"
	"sort"
	"time"
)

// Table is an immutable snapshot of the leap-second table, together with the
// epoch instants derived from it. A refresh builds a whole new Table and swaps
// it in atomically; nothing mutates a Table after construction, so concurrent
// readers never observe a partially built one.
type Table struct {
	records []Record

	// TAIUnixEpoch and TAIGPSEpoch are the Unix and GPS epochs converted to
	// the TAI scale using this snapshot's offsets.
	TAIUnixEpoch time.Time
	TAIGPSEpoch  time.Time

	// FetchedAt is when the raw bytes behind this snapshot were obtained.
	FetchedAt time.Time
}

// NewTable builds a snapshot from records. The published table is already
// chronological, but lookup correctness depends on ascending order, so it
// sorts anyway.
func NewTable(records []Record, fetchedAt time.Time) *Table {
	rs := make([]Record, len(records))
	copy(rs, records)
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].EffectiveUTC.Before(rs[j].EffectiveUTC)
	})

	t := &Table{records: rs, FetchedAt: fetchedAt}
	t.TAIUnixEpoch = UTCUnixEpoch.Add(secondsToDuration(t.OffsetAtUTC(UTCUnixEpoch)))
	t.TAIGPSEpoch = UTCGPSEpoch.Add(secondsToDuration(t.OffsetAtUTC(UTCGPSEpoch)))
	return t
}

// OffsetAtUTC returns the cumulative TAI−UTC offset in seconds in effect at
// the given UTC instant. The boundary is inclusive: at exactly EffectiveUTC
// the new offset already applies. Instants before the first record predate
// the leap-second regime and get 0.
func (t *Table) OffsetAtUTC(utc time.Time) float64 {
	i := sort.Search(len(t.records), func(i int) bool {
		return t.records[i].EffectiveUTC.After(utc)
	})
	if i == 0 {
		return 0
	}
	return t.records[i-1].Offset
}

// OffsetAtTAI is OffsetAtUTC keyed on the TAI-scale boundaries. A boundary at
// UTC instant T sits at TAI instant T+offset, so the two scales need separate
// searches rather than one search plus arithmetic.
func (t *Table) OffsetAtTAI(tai time.Time) float64 {
	i := sort.Search(len(t.records), func(i int) bool {
		return t.records[i].EffectiveTAI.After(tai)
	})
	if i == 0 {
		return 0
	}
	return t.records[i-1].Offset
}

// Len returns the number of records in the snapshot.
func (t *Table) Len() int { return len(t.records) }

// Records returns a copy of the snapshot's records in ascending order.
func (t *Table) Records() []Record {
	rs := make([]Record, len(t.records))
	copy(rs, t.records)
	return rs
}

// secondsToDuration converts float seconds to a Duration, rounded to the
// nearest nanosecond. Whole seconds are split off first so that large values
// (GPS seconds run to ten digits) do not lose nanoseconds to float
// multiplication.
func secondsToDuration(s float64) time.Duration {
	sec := math.Trunc(s)
	frac := s - sec
	return time.Duration(sec)*time.Second + time.Duration(math.Round(frac*float64(time.Second)))
}

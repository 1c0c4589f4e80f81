package records

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Key layout:
//
//	rec:{YYYYMMDD}:{ts}:{id}  → msgpack-encoded Record
//	rid:{id}                  → record key (reverse index)
//
// ts is the Unix nanosecond timestamp with its sign bit flipped, zero padded
// to 20 digits, so lexicographic key order is chronological order on both
// sides of 1970.
const (
	recordPrefix = "rec:"
	idPrefix     = "rid:"
)

// Timestamps a record key can hold: the range of int64 Unix nanoseconds.
var (
	minTime = time.Unix(0, math.MinInt64).UTC()
	maxTime = time.Unix(0, math.MaxInt64).UTC()
)

func recordKey(ts time.Time, id string) []byte {
	ts = clampTime(ts)
	return fmt.Appendf(nil, "%s%s:%020d:%s", recordPrefix, ts.Format("20060102"), sortableNano(ts), id)
}

// sinceKey is the smallest record key at or after ts.
func sinceKey(ts time.Time) []byte {
	ts = clampTime(ts)
	return fmt.Appendf(nil, "%s%s:%020d:", recordPrefix, ts.Format("20060102"), sortableNano(ts))
}

func sortableNano(ts time.Time) uint64 {
	return uint64(ts.UnixNano()) ^ 1<<63
}

func clampTime(ts time.Time) time.Time {
	ts = ts.UTC()
	switch {
	case ts.Before(minTime):
		return minTime
	case ts.After(maxTime):
		return maxTime
	}
	return ts
}

// validTime rejects timestamps a record key cannot hold.
func validTime(ts time.Time) error {
	if ts.Before(minTime) || ts.After(maxTime) {
		return fmt.Errorf("records: timestamp %s outside %d..%d", ts.Format(time.RFC3339), minTime.Year(), maxTime.Year())
	}
	return nil
}

func idKey(id string) []byte {
	return []byte(idPrefix + id)
}

// validID rejects IDs that would corrupt the key layout.
func validID(id string) error {
	if id == "" || strings.ContainsAny(id, ":\x00") {
		return fmt.Errorf("records: invalid id %q", id)
	}
	return nil
}

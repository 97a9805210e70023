package common

import "time"

// Hour is the granularity of price and aggregate buckets, in seconds.
const Hour uint64 = 3600

// FloorTo rounds ts down to a multiple of step. A zero step returns ts.
func FloorTo(ts, step uint64) uint64 {
	if step == 0 {
		return ts
	}
	return ts - ts%step
}

// CeilTo rounds ts up to a multiple of step. A zero step returns ts.
func CeilTo(ts, step uint64) uint64 {
	if step == 0 || ts%step == 0 {
		return ts
	}
	return ts - ts%step + step
}

// UnixHeight converts t into a height truncated to granularity.
func UnixHeight(t time.Time, granularity time.Duration) uint64 {
	return FloorTo(uint64(t.Unix()), uint64(granularity/time.Second))
}

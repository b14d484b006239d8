package record

import "time"

// epoch is the DateTime tick origin documented in value.go: the
// proleptic Gregorian calendar's year 1, midnight UTC.
var epoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// epochUnixSeconds is epoch's Unix timestamp (seconds since 1970-01-01,
// negative since epoch precedes it). Ticks must be derived from
// Unix-second arithmetic rather than time.Time.Sub: a Duration is a
// single int64 of nanoseconds and saturates at around +/-292 years,
// far short of the ~2000-year span between epoch and any modern date.
const epochUnixSeconds = -62135596800

// TimeToTicks converts a time.Time to the core's signed 64-bit,
// 100ns-unit tick count since the documented epoch.
func TimeToTicks(t time.Time) int64 {
	t = t.UTC()
	secs := t.Unix() - epochUnixSeconds
	return secs*10_000_000 + int64(t.Nanosecond())/100
}

// TicksToTime converts a tick count back to a UTC time.Time.
func TicksToTime(ticks int64) time.Time {
	secs := ticks / 10_000_000
	rem := ticks % 10_000_000
	return time.Unix(epochUnixSeconds+secs, rem*100).UTC()
}

package domain

import (
	"sync/atomic"
	"time"
)

// TimestampLayout is the ISO-8601 form used for created_at and updated_at.
const TimestampLayout = "2006-01-02T15:04:05.000000"

var lastStamp int64

// nextTime returns the current UTC time, bumped by a microsecond when needed
// so that stamps handed out by this process strictly increase.
func nextTime() time.Time {
	for {
		now := time.Now().UnixMicro()
		last := atomic.LoadInt64(&lastStamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastStamp, last, now) {
			return time.UnixMicro(now).UTC()
		}
	}
}

// FormatTimestamp renders t in TimestampLayout after converting it to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

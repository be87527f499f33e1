package time

import (
	"strings"
	"time"

	"github.com/mensylisir/xmism/common"
)

// ShortDur shortens the string representation of a time.Duration from d.String().
func ShortDur(d time.Duration) string {
	s := d.String()
	if d == 0 {
		return "0s"
	}
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// FromMillis converts an epoch milliseconds timestamp as stored in the metadata.
func FromMillis(ms int64) time.Time {
	return time.Unix(0, ms*common.NanosPerMillisecond)
}

// SinceMillis returns how long ago the epoch milliseconds timestamp ms was, truncated to
// whole seconds. A nil ms yields 0.
func SinceMillis(ms *int64, now time.Time) time.Duration {
	if ms == nil {
		return 0
	}
	d := now.Sub(FromMillis(*ms))
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

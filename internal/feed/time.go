package feed

import (
	"strings"
	"time"
)

// NormalizeToken converts a feed-native date token into an absolute
// instant in epoch milliseconds.
//
// Accepted shapes:
//
//	20250601           date only, midnight in loc
//	20250601T090000    date-time, calendar fields in loc
//	20250601T090000Z   date-time, calendar fields in UTC
//
// Malformed or empty tokens yield 0 rather than an error. Callers must
// treat 0 as "unknown/invalid", never as a real instant: an event with
// a zero due instant has non-positive time-until-due and is never
// scheduled.
func NormalizeToken(raw string, loc *time.Location) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.HasSuffix(raw, "Z") {
		t, err := time.Parse("20060102T150405Z", raw)
		if err != nil {
			return 0
		}
		return t.UnixMilli()
	}

	if strings.Contains(raw, "T") {
		t, err := time.ParseInLocation("20060102T150405", raw, loc)
		if err != nil {
			return 0
		}
		return t.UnixMilli()
	}

	t, err := time.ParseInLocation("20060102", raw, loc)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

package clerk

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp decodes the provider's date fields. Epoch milliseconds, numeric
// strings and RFC 3339 strings are accepted. Anything else, including null,
// decodes to an unset value instead of failing the whole payload.
type Timestamp struct {
	t     time.Time
	valid bool
}

// At builds a set Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{t: t.UTC(), valid: true}
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = Timestamp{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*ts = parseTimestampString(s)
		return nil
	}

	if ms, err := strconv.ParseFloat(string(b), 64); err == nil {
		*ts = fromMillis(ms)
	}
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(ts.t.UnixMilli(), 10)), nil
}

// Time returns the decoded time and whether it was present.
func (ts Timestamp) Time() (time.Time, bool) {
	return ts.t, ts.valid
}

// OrNow returns the decoded time or now when unset.
func (ts Timestamp) OrNow(now time.Time) time.Time {
	if ts.valid {
		return ts.t
	}
	return now
}

// Ptr returns nil when unset.
func (ts Timestamp) Ptr() *time.Time {
	if !ts.valid {
		return nil
	}
	t := ts.t
	return &t
}

func parseTimestampString(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return At(t)
		}
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return fromMillis(ms)
	}
	return Timestamp{}
}

// maxMillis is the first instant of year 10000. Later values overflow
// int64 nanoseconds or fall outside what RFC 3339 and postgres can carry.
var maxMillis = float64(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())

func fromMillis(ms float64) Timestamp {
	if math.IsNaN(ms) || ms <= 0 || ms >= maxMillis {
		return Timestamp{}
	}
	return At(time.UnixMilli(int64(ms)))
}

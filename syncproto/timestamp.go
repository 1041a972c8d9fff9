package syncproto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rohanthewiz/serr"
)

// Timestamp is an absolute instant in Unix epoch milliseconds.
// It travels on the wire as a JSON number. Decoding also accepts a numeric
// string and the legacy "/Date(1700000000000+0000)/" wrapper.
type Timestamp int64

// TimestampOf converts t to a Timestamp, truncating to the millisecond.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp {
	return TimestampOf(time.Now())
}

// Time returns the instant as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

// After reports whether ts is strictly later than other.
func (ts Timestamp) After(other Timestamp) bool {
	return ts > other
}

// IsZero reports whether the timestamp was never set.
func (ts Timestamp) IsZero() bool {
	return ts == 0
}

// Next returns a timestamp for a new edit of something last changed at prev.
// The result is the current instant, or prev+1ms when the clock has not
// moved past prev, so successive saves never share a timestamp.
func Next(prev Timestamp) Timestamp {
	now := Now()
	if now > prev {
		return now
	}
	return prev + 1
}

func (ts Timestamp) String() string {
	return ts.Time().Format(time.RFC3339Nano)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(ts), 10)), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*ts = 0
		return nil
	}

	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			// Tolerate float encodings such as 1.7e12
			var f float64
			if ferr := json.Unmarshal(data, &f); ferr != nil {
				return serr.Wrap(err, "timestamp is not an integer")
			}
			ms = int64(f)
		}
		*ts = Timestamp(ms)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return serr.Wrap(err, "timestamp string is malformed")
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// ParseTimestamp reads a timestamp from its textual forms: a bare integer,
// the legacy wrapper (integer between the first '(' and the following ')',
// with any trailing UTC offset ignored), or RFC 3339.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Timestamp(ms), nil
	}

	if open := strings.IndexByte(s, '('); open >= 0 {
		rest := s[open+1:]
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return 0, serr.New("timestamp wrapper has no closing parenthesis: " + s)
		}
		payload := rest[:end]

		// The payload may carry an offset suffix ("1700000000000+0100")
		cut := len(payload)
		for i := 1; i < len(payload); i++ {
			if payload[i] == '+' || payload[i] == '-' {
				cut = i
				break
			}
		}
		ms, err := strconv.ParseInt(payload[:cut], 10, 64)
		if err != nil {
			return 0, serr.Wrap(err, "timestamp wrapper payload is not an integer")
		}
		return Timestamp(ms), nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, serr.Wrap(err, "unrecognized timestamp format")
	}
	return TimestampOf(t), nil
}

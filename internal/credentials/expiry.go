package credentials

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Values above this are taken to be unix milliseconds rather than seconds.
const millisThreshold = 1e12

var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseExpiry parses an expiry timestamp as RFC3339 (or a close variant), or
// as unix seconds or milliseconds. An empty string yields the zero time.
func ParseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return fromUnix(n)
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", raw)
}

// fromUnix rejects values that do not fit an int64, including NaN and the
// infinities, so callers take their fail-closed path.
func fromUnix(n float64) (time.Time, error) {
	if math.IsNaN(n) || n >= math.MaxInt64 || n < math.MinInt64 {
		return time.Time{}, fmt.Errorf("expiry %v out of range", n)
	}
	if n >= millisThreshold {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	return time.Unix(int64(n), 0).UTC(), nil
}

// FormatExpiry is the inverse of ParseExpiry for persisted values.
func FormatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// Expiry decodes expiry_date fields that arrive as strings or numbers.
// Anything unparsable decodes to the zero time.
type Expiry struct {
	time.Time
}

func (e *Expiry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		e.Time = time.Time{}
		return nil
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	t, err := ParseExpiry(s)
	if err != nil {
		t = time.Time{}
	}
	e.Time = t
	return nil
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatExpiry(e.Time))
}

// ExpiryFromToken reads the expiry of a JWT access token without verifying
// its signature. Both the registered exp claim and the API's expiry_date
// claim are understood.
func ExpiryFromToken(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		return exp.Time.UTC(), true
	}
	switch v := claims["expiry_date"].(type) {
	case float64:
		if t, err := fromUnix(v); err == nil {
			return t, true
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			if t, err := fromUnix(f); err == nil {
				return t, true
			}
		}
	case string:
		if t, err := ParseExpiry(v); err == nil && !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

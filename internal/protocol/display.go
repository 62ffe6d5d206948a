package protocol

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// DisplayLocation, when set to something other than UTC, adds a local
// rendering next to every timestamp claim.
var DisplayLocation *time.Location

const displayLayout = "2006-01-02T15:04:05 MST"

// timestampClaims carry seconds since the epoch.
var timestampClaims = []string{"auth_time", "exp", "iat", "nbf", "rat", "updated_at"}

// FormatClaimValue renders a claim for display. Timestamp claims keep their
// raw number followed by the UTC time, e.g. "1700000000 (2023-11-14T22:13:20 UTC)".
func FormatClaimValue(key string, v any) string {
	s := FormatValue(v)
	if !slices.Contains(timestampClaims, key) {
		return s
	}
	sec, ok := wholeSeconds(v)
	if !ok {
		return s
	}
	t := time.Unix(sec, 0)
	when := t.UTC().Format(displayLayout)
	if loc := DisplayLocation; loc != nil && loc != time.UTC {
		when += " / " + t.In(loc).Format(displayLayout)
	}
	return s + " (" + when + ")"
}

func wholeSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// FormatValue renders any decoded JSON value as text. Objects and arrays are
// shown as compact JSON.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

package protocol

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// KeyValue is one displayed parameter.
type KeyValue struct {
	Key   string
	Value string
}

// ParseURLParams returns the query of a URL, or of a bare query string, as
// key-sorted pairs. It returns nil when there is nothing to show.
func ParseURLParams(raw string) []KeyValue {
	if _, query, ok := strings.Cut(raw, "?"); ok {
		raw = query
	}
	raw, _, _ = strings.Cut(raw, "#")
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil
	}
	return SortedParams(values)
}

// SortedParams flattens url.Values into key-sorted pairs. Repeated keys keep
// their order.
func SortedParams(values url.Values) []KeyValue {
	if len(values) == 0 {
		return nil
	}
	var out []KeyValue
	for _, k := range slices.Sorted(maps.Keys(values)) {
		for _, v := range values[k] {
			out = append(out, KeyValue{Key: k, Value: v})
		}
	}
	return out
}

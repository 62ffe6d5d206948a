package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

// params is the request body flattened into form values. JSON string arrays
// become repeated keys.
type params url.Values

func (p params) get(key string) string {
	return url.Values(p).Get(key)
}

// getDefault returns the value of key or def when it is empty.
func (p params) getDefault(key, def string) string {
	if v := p.get(key); v != "" {
		return v
	}
	return def
}

func (p params) list(key string) []string {
	return p[key]
}

func isJSONRequest(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func containsMediaType(header, want string) bool {
	for _, part := range strings.Split(header, ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mt == want {
			return true
		}
	}
	return false
}

// readParams accepts application/json or form bodies.
func readParams(w http.ResponseWriter, r *http.Request) (params, error) {
	if !isJSONRequest(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return params(r.PostForm), nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	out := params{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode JSON body: %w", err)
	}
	for k, v := range doc {
		switch tv := v.(type) {
		case nil:
		case string:
			out[k] = []string{tv}
		case bool:
			out[k] = []string{strconv.FormatBool(tv)}
		case float64:
			out[k] = []string{strconv.FormatFloat(tv, 'f', -1, 64)}
		case []any:
			for _, item := range tv {
				if s, ok := item.(string); ok {
					out[k] = append(out[k], s)
				}
			}
		default:
			b, _ := json.Marshal(tv)
			out[k] = []string{string(b)}
		}
	}
	return out, nil
}

// fields copies the named keys that are present into url.Values.
func (p params) fields(keys ...string) url.Values {
	v := url.Values{}
	for _, k := range keys {
		if s := p.get(k); s != "" {
			v.Set(k, s)
		}
	}
	return v
}

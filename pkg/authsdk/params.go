package authsdk

import (
	"net/http"
	"net/url"
	"sort"
)

// Params is a flat set of OAuth2 request parameters.
type Params map[string]string

// Merge returns a new Params holding base with overrides applied on top.
// Keys present in overrides always win. Neither input is modified.
func Merge(base, overrides Params) Params {
	out := make(Params, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Clone returns a copy of p. The copy of a nil Params is empty, not nil.
func (p Params) Clone() Params {
	return Merge(p, nil)
}

// Has reports whether key is set, even to an empty value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Values converts p to url.Values for form or query encoding.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Encode is Values().Encode(); keys come out sorted.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Headers maps header names to a single value. Lookups compare canonical
// header keys, so "authorization" and "Authorization" are the same header.
type Headers map[string]string

// MergeHeaders returns base with overrides applied on top; header names are
// compared canonically and overrides win.
func MergeHeaders(base, overrides Headers) Headers {
	out := make(Headers, len(base)+len(overrides))
	for k, v := range base {
		out.Set(k, v)
	}
	for k, v := range overrides {
		out.Set(k, v)
	}
	return out
}

// Get returns the value of the header named key.
func (h Headers) Get(key string) (string, bool) {
	want := http.CanonicalHeaderKey(key)
	for k, v := range h {
		if http.CanonicalHeaderKey(k) == want {
			return v, true
		}
	}
	return "", false
}

// Set replaces any spelling of key with the canonical one.
func (h Headers) Set(key, value string) {
	want := http.CanonicalHeaderKey(key)
	for k := range h {
		if http.CanonicalHeaderKey(k) == want {
			delete(h, k)
		}
	}
	h[want] = value
}

// Has reports whether any spelling of key is present.
func (h Headers) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// apply copies h onto an http.Header.
func (h Headers) apply(dst http.Header) {
	for k, v := range h {
		dst.Set(k, v)
	}
}

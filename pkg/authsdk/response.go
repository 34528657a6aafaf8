package authsdk

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ParseMode selects how a response body is turned into a key/value map.
type ParseMode string

const (
	// ParseAutomatic picks a parser from the Content-Type header.
	ParseAutomatic ParseMode = "automatic"
	// ParseJSON always parses the body as a JSON object.
	ParseJSON ParseMode = "json"
	// ParseQuery always parses the body as application/x-www-form-urlencoded.
	ParseQuery ParseMode = "query"
	// ParseText never parses; Parsed reports false.
	ParseText ParseMode = "text"
)

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	parse ParseMode
}

// newResponse wraps an already read body. An empty mode means automatic.
func newResponse(status int, header http.Header, body []byte, mode ParseMode) *Response {
	if mode == "" {
		mode = ParseAutomatic
	}
	if header == nil {
		header = http.Header{}
	}
	return &Response{Status: status, Header: header, Body: body, parse: mode}
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// Text returns the raw body.
func (r *Response) Text() string {
	return string(r.Body)
}

// Parsed returns the body as a key/value map. It reports false when the
// body can't be parsed with the selected mode, in which case callers should
// fall back to Body.
func (r *Response) Parsed() (map[string]any, bool) {
	mode := r.parse
	if mode == ParseAutomatic || mode == "" {
		mode = parserFor(r.ContentType())
	}

	switch mode {
	case ParseJSON:
		var m map[string]any
		dec := json.NewDecoder(strings.NewReader(string(r.Body)))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil || m == nil {
			return nil, false
		}
		return m, true

	case ParseQuery:
		values, err := url.ParseQuery(strings.TrimSpace(string(r.Body)))
		if err != nil || len(values) == 0 {
			return nil, false
		}
		m := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) == 1 {
				m[k] = v[0]
			} else {
				m[k] = v
			}
		}
		return m, true

	default:
		return nil, false
	}
}

// parserFor maps a media type to a parser; unknown types stay unparsed.
func parserFor(mediaType string) ParseMode {
	switch {
	case mediaType == "application/json",
		mediaType == "text/javascript",
		strings.HasSuffix(mediaType, "+json"):
		return ParseJSON
	case mediaType == "application/x-www-form-urlencoded":
		return ParseQuery
	default:
		return ParseText
	}
}

// stringValue renders a parsed value as a string. Missing values give "".
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case []string:
		if len(t) > 0 {
			return t[0]
		}
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

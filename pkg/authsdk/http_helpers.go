package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBodySize bounds how much of a response body is read (4 MB).
const maxResponseBodySize = 4 << 20

// RequestOptions describes a request made through Client.Request.
type RequestOptions struct {
	// Params go in the query string for GET/DELETE/HEAD and in a form body
	// otherwise, unless Body is set.
	Params Params

	// Headers are set on the request.
	Headers Headers

	// Body is sent as is when non-nil; Params then go in the query string.
	Body []byte

	// Parse selects how the response body is parsed. Default: automatic
	Parse ParseMode
}

// Request performs an HTTP request against the site. path may be relative to
// the site or an absolute URL. A 401 answer returns an *Error matching
// ErrUnauthorized, any other non-2xx answer an *Error matching ErrHTTP; both
// carry the response.
func (c *Client) Request(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	method = strings.ToUpper(method)
	var body io.Reader
	headers := MergeHeaders(nil, opts.Headers)

	switch {
	case opts.Body != nil:
		body = bytes.NewReader(opts.Body)
		target = withQuery(target, opts.Params)
	case sendsQuery(method):
		target = withQuery(target, opts.Params)
	case len(opts.Params) > 0:
		body = strings.NewReader(opts.Params.Encode())
		if !headers.Has("Content-Type") {
			headers.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	resp, err := c.do(ctx, method, target, body, headers, opts.Parse)
	if err != nil {
		return nil, err
	}
	if err := parseErrorResponse(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Get, Post, Put and Delete are shorthands for Request.
func (c *Client) Get(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, opts)
}

func (c *Client) Post(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, opts)
}

func (c *Client) Put(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPut, path, opts)
}

func (c *Client) Delete(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, opts)
}

func sendsQuery(method string) bool {
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}

// tokenRequest sends req to the token endpoint. The authenticator is applied
// unless bypass is set, for grants that attach credentials themselves.
func (c *Client) tokenRequest(ctx context.Context, req TokenRequest, parse ParseMode, bypass bool) (*Response, error) {
	if !bypass {
		var err error
		if req, err = c.auth.Apply(req); err != nil {
			return nil, err
		}
	} else {
		req = req.clone()
	}

	headers := MergeHeaders(Headers{"Accept": "application/json"}, req.Headers)
	target := c.TokenURL()
	var body io.Reader

	switch {
	case c.opts.TokenMethod == http.MethodGet:
		target = withQuery(target, req.Params)
	case c.opts.TokenEncoding == TokenEncodingJSON:
		raw, err := json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode token request: %w", err)
		}
		body = bytes.NewReader(raw)
		if !headers.Has("Content-Type") {
			headers.Set("Content-Type", "application/json")
		}
	default:
		body = strings.NewReader(req.Params.Encode())
		if !headers.Has("Content-Type") {
			headers.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	resp, err := c.do(ctx, c.opts.TokenMethod, target, body, headers, parse)
	if err != nil {
		return nil, err
	}

	c.logger(ctx).DebugContext(ctx, "token_request",
		"grant_type", req.Params["grant_type"],
		"auth_scheme", string(c.opts.AuthScheme),
		"status", resp.Status,
	)

	if err := parseErrorResponse(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// do performs the request and reads the whole body.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, headers Headers, parse ParseMode) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	headers.apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return newResponse(resp.StatusCode, resp.Header, raw, parse), nil
}

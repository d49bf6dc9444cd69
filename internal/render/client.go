// Package render talks to the remote spectrum rendering service.
//
// Each model is served at /api/<model>; its parameters travel as a query
// string in declaration order, and the response body is the rendered image.
package render

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/san-kum/cmbview/internal/param"
)

const (
	DefaultTimeout = 10 * time.Second
	maxImageBytes  = 32 << 20
)

// Image is a rendered response body and its media type.
type Image struct {
	Data        []byte
	ContentType string
}

type Client struct {
	base      *url.URL
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

type Option func(*Client)

// WithHTTPClient makes requests through a copy of hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. It wins over the timeout of a client
// passed with WithHTTPClient, whatever the option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("render: parse service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("render: unsupported scheme %q", u.Scheme)
	}
	c := &Client{base: u, userAgent: "cmbview"}
	for _, opt := range opts {
		opt(c)
	}

	hc := &http.Client{Timeout: DefaultTimeout}
	if c.http != nil {
		cp := *c.http
		hc = &cp
	}
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = hc
	return c, nil
}

// URL builds the request URL for model with set encoded in declaration
// order. A parameterless model gets no query string.
func (c *Client) URL(model string, set param.Set) string {
	u := c.base.JoinPath("api", model)
	u.RawQuery = Query(set)
	return u.String()
}

// Query encodes set as key=value pairs in declaration order, using the
// shortest decimal form of each value.
func Query(set param.Set) string {
	var b strings.Builder
	for i, e := range set.Entries() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(e.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(param.FormatValue(e.Value)))
	}
	return b.String()
}

func (c *Client) Fetch(ctx context.Context, model string, set param.Set) (Image, error) {
	target := c.URL(model, set)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Image{}, &FetchError{Model: model, URL: target, Wrapped: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	req.Header.Set("Accept", "image/*")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Image{}, &FetchError{Model: model, URL: target, Wrapped: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Image{}, &FetchError{Model: model, URL: target, StatusCode: resp.StatusCode,
			Wrapped: fmt.Errorf("%w: %s", ErrStatus, http.StatusText(resp.StatusCode))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Image{}, &FetchError{Model: model, URL: target, StatusCode: resp.StatusCode,
			Wrapped: fmt.Errorf("%w: read body: %w", ErrTransport, err)}
	}
	if len(data) > maxImageBytes {
		return Image{}, &FetchError{Model: model, URL: target, StatusCode: resp.StatusCode,
			Wrapped: fmt.Errorf("%w: image exceeds %d bytes", ErrContent, maxImageBytes)}
	}
	if len(data) == 0 {
		return Image{}, &FetchError{Model: model, URL: target, StatusCode: resp.StatusCode,
			Wrapped: fmt.Errorf("%w: empty body", ErrContent)}
	}

	ct, err := imageType(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return Image{}, &FetchError{Model: model, URL: target, StatusCode: resp.StatusCode, Wrapped: err}
	}
	return Image{Data: data, ContentType: ct}, nil
}

// imageType accepts an explicit image/* type, and sniffs the body when the
// header is absent.
func imageType(header string, data []byte) (string, error) {
	if header == "" {
		header = http.DetectContentType(data)
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("%w: bad content type %q", ErrContent, header)
	}
	if !strings.HasPrefix(mt, "image/") {
		return "", fmt.Errorf("%w: content type %s", ErrContent, mt)
	}
	return mt, nil
}

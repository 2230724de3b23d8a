package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"user-manager/usermanager/domain"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HTTPTransport implementa domain.Transport sobre net/http.
type HTTPTransport struct {
	client    *http.Client
	responses *ResponseCache
	log       logrus.FieldLogger
}

var _ domain.Transport = (*HTTPTransport)(nil)

type HTTPTransportOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithResponseCache liga a revalidação por ETag nos GETs.
func WithResponseCache(c *ResponseCache) HTTPTransportOption {
	return func(t *HTTPTransport) { t.responses = c }
}

func WithTransportLogger(log logrus.FieldLogger) HTTPTransportOption {
	return func(t *HTTPTransport) { t.log = log }
}

func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Do(ctx context.Context, call domain.Call, out any) error {
	req, err := newHTTPRequest(ctx, call)
	if err != nil {
		return err
	}
	key := req.URL.String()

	var cached CachedResponse
	hasCached := false
	if t.responses != nil && call.Method == domain.MethodGet {
		if cached, hasCached = t.responses.Get(key); hasCached && cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	log := t.log.WithField("method", call.Method).WithField("path", req.URL.Path)
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", call.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	log.WithField("status", resp.StatusCode).WithField("elapsed", time.Since(start)).Debug("request done")

	status := resp.StatusCode
	if status == http.StatusNotModified && hasCached {
		body, status = cached.Body, http.StatusOK
	}

	if status < 200 || status > 299 {
		se := &domain.ServerError{StatusCode: status}
		var info domain.ErrorInfo
		if len(body) > 0 && json.Unmarshal(body, &info) == nil {
			se.Info = &info
		}
		return se
	}
	if len(body) == 0 {
		return domain.ErrEmptyResponseBody
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(domain.ErrDecodeFailure, "%T: %v", out, err)
	}

	if t.responses != nil && call.Method == domain.MethodGet && resp.StatusCode == http.StatusOK {
		if etag := resp.Header.Get("ETag"); etag != "" {
			t.responses.Add(key, CachedResponse{ETag: etag, Body: body})
		}
	}
	return nil
}

func newHTTPRequest(ctx context.Context, call domain.Call) (*http.Request, error) {
	u, err := url.Parse(call.URL)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrBadURL, "%q: %v", call.URL, err)
	}

	var body io.Reader
	if call.Method == domain.MethodGet {
		if len(call.Params) > 0 {
			q := u.Query()
			for k, v := range call.Params {
				q.Set(k, fmt.Sprint(v))
			}
			u.RawQuery = q.Encode()
		}
	} else if call.Params != nil {
		raw, err := json.Marshal(call.Params)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrBadURL, "%q: %v", call.URL, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf8")
	}
	for k, v := range call.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

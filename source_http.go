package entitycache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultHTTPConnectTimeout = 10 * time.Second
	maxHTTPBodyBytes          = 1 << 20

	// CorrelationHeader carries a fresh id on every outgoing request.
	CorrelationHeader = "Correlation-Id"
)

var errUnexpectedStatus = errors.New("unexpected status")

// TokenFunc returns the bearer token for the next request; "" sends none.
type TokenFunc func() string

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	// BaseURL is the API root; entities are fetched from {BaseURL}/users/{key}.
	BaseURL string
	// Token is read per request so rotated credentials apply without a rebuild.
	Token TokenFunc
	// Client overrides the HTTP client. Its transport is wrapped, not replaced.
	Client *http.Client
}

// HTTPSource fetches entities from a GitHub-style users endpoint.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource builds a source for cfg.BaseURL.
func NewHTTPSource(cfg HTTPSourceConfig) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("http source: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("http source: parse base url: %w", err)
	}
	return &HTTPSource{base: base, client: buildSourceClient(cfg)}, nil
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, key string) (Entity, error) {
	// A dot segment would be resolved away and leave the users collection.
	if key == "." || key == ".." {
		return Entity{}, &NotFoundError{Key: key}
	}
	endpoint := s.base.JoinPath("users", url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Entity{}, &NetworkError{Key: key, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Entity{}, &NetworkError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Entity{}, &NotFoundError{Key: key}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Entity{}, &NetworkError{Key: key, Err: fmt.Errorf("%w %d", errUnexpectedStatus, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodyBytes))
	if err != nil {
		return Entity{}, &NetworkError{Key: key, Err: err}
	}
	fields, err := decodeFields(body)
	if err != nil {
		return Entity{}, &DecodeError{Key: key, Err: err}
	}
	return Entity{Key: key, Fields: fields}, nil
}

// decodeFields flattens the top-level scalar properties of a JSON object.
// Nested objects, arrays and nulls are skipped.
func decodeFields(body []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("response is not a json object")
	}
	fields := make(map[string]string, len(raw))
	for name, value := range raw {
		var v any
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		switch tv := v.(type) {
		case string:
			fields[name] = tv
		case json.Number:
			fields[name] = tv.String()
		case bool:
			fields[name] = strconv.FormatBool(tv)
		}
	}
	return fields, nil
}

// sourceRoundTripper sets the auth, accept and correlation headers on every request.
type sourceRoundTripper struct {
	base  http.RoundTripper
	token TokenFunc
}

func (t *sourceRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Del("Authorization")
	if t.token != nil {
		if token := t.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set(CorrelationHeader, uuid.NewString())
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return t.base.RoundTrip(req)
}

func buildSourceClient(cfg HTTPSourceConfig) *http.Client {
	var client http.Client
	if cfg.Client != nil {
		client = *cfg.Client
	}
	base := client.Transport
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: defaultHTTPConnectTimeout,
			DialContext:         (&net.Dialer{Timeout: defaultHTTPConnectTimeout}).DialContext,
		}
	}
	client.Transport = &sourceRoundTripper{base: base, token: cfg.Token}
	if client.CheckRedirect == nil {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &client
}

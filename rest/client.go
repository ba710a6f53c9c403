package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/srinivas112004/go-employee-portal/credentials"
	"github.com/srinivas112004/go-employee-portal/internal/config"
	"github.com/srinivas112004/go-employee-portal/internal/obs"
)

const contentTypeJSON = "application/json"

// Client is the single call site for every portal request. It attaches the
// stored credential, normalises bodies and errors, and recovers from
// expired access tokens with a single-flight refresh.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       *credentials.Store
	refreshPath string

	onAuthExpired func()

	refreshLock sync.Mutex
	inflight    *refreshResult
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport (primarily for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRefreshPath overrides the token refresh endpoint.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithOnAuthExpired sets the hook invoked when authentication is
// terminally lost; the application redirects to its sign-in view here.
func WithOnAuthExpired(fn func()) Option {
	return func(c *Client) {
		c.onAuthExpired = fn
	}
}

func New(cfg config.Config, store *credentials.Store, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[rest.New] config is required")
	}
	if store == nil {
		return nil, errors.New("[rest.New] credential store is required")
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.GetBaseURL(), "/"),
		httpClient:  &http.Client{Timeout: cfg.GetHTTPTimeout()},
		store:       store,
		refreshPath: defaultRefreshPath,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOptions carries the optional parts of a request.
type RequestOptions struct {
	Query      url.Values
	Body       any
	Headers    http.Header
	OnProgress func(percent int)
}

// Result is a parsed response. Parsed holds the decoded JSON when the body
// was JSON, otherwise the raw text. A 204 yields an empty Result.
type Result struct {
	Status int
	Header http.Header
	Raw    []byte
	Parsed any
}

// Decode unmarshals the raw body into out. Empty bodies decode to nothing.
func (r *Result) Decode(out any) error {
	if len(r.Raw) == 0 || r.Status == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(r.Raw, out); err != nil {
		return errors.Wrap(err, "[Result.Decode] Unmarshal")
	}
	return nil
}

// DecodeList unmarshals a list response into out, accepting both a bare
// array and a {results: [...]} envelope.
func (r *Result) DecodeList(out any) error {
	if len(r.Raw) == 0 || r.Status == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(r.Raw, out); err == nil {
		return nil
	}
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(r.Raw, &envelope); err != nil || envelope.Results == nil {
		return errors.New("[Result.DecodeList] body is neither a list nor a results envelope")
	}
	return errors.Wrap(json.Unmarshal(envelope.Results, out), "[Result.DecodeList] Unmarshal results")
}

// Do performs a request. On 401 it refreshes the credential once and
// replays the original request with the new token; a second 401 is
// surfaced as a terminal auth error.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions) (*Result, error) {
	spec, err := c.buildSpec(method, path, opts)
	if err != nil {
		return nil, err
	}
	return c.doWithRetry(ctx, spec)
}

// GetRaw fetches path and returns the undecoded Result.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) (*Result, error) {
	return c.Do(ctx, http.MethodGet, path, &RequestOptions{Query: query})
}

// GetJSON fetches path and decodes the response into out (out may be nil).
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	result, err := c.Do(ctx, http.MethodGet, path, &RequestOptions{Query: query})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return result.Decode(out)
}

// PostJSON posts a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	result, err := c.Do(ctx, http.MethodPost, path, &RequestOptions{Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return result.Decode(out)
}

// PatchJSON patches a resource and decodes the response into out.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out any) error {
	result, err := c.Do(ctx, http.MethodPatch, path, &RequestOptions{Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return result.Decode(out)
}

// DeleteJSON deletes a resource.
func (c *Client) DeleteJSON(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}

// requestSpec is a pending request, rebuildable for the single replay
// after a token refresh.
type requestSpec struct {
	method      string
	url         string
	headers     http.Header
	body        []byte
	contentType string
	onProgress  func(int)
	binary      bool
}

func (c *Client) buildSpec(method, path string, opts *RequestOptions) (*requestSpec, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	fullURL := c.baseURL + path
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + opts.Query.Encode()
	}

	spec := &requestSpec{
		method:     method,
		url:        fullURL,
		headers:    opts.Headers,
		onProgress: opts.OnProgress,
	}

	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.buildSpec] Marshal body")
		}
		spec.body = b
		spec.contentType = contentTypeJSON
	}

	return spec, nil
}

func (c *Client) doWithRetry(ctx context.Context, spec *requestSpec) (*Result, error) {
	// A stored token that is a readable JWT and already expired is
	// refreshed up front rather than burning a round trip on a 401.
	if token := c.store.Read(); token != "" && c.store.ReadRefresh() != "" {
		if tokenExpired(credentials.StripScheme(token)) {
			if _, err := c.awaitRefresh(ctx); err != nil {
				return nil, err
			}
		}
	}

	result, err := c.send(ctx, spec)
	if StatusOf(err) != http.StatusUnauthorized {
		return result, err
	}

	if _, refreshErr := c.awaitRefresh(ctx); refreshErr != nil {
		return nil, refreshErr
	}

	result, err = c.send(ctx, spec)
	if StatusOf(err) == http.StatusUnauthorized {
		c.expireSession()
		return nil, errors.Wrap(AuthExpiredErr, "[Client.doWithRetry] still unauthorized after refresh")
	}
	return result, err
}

func (c *Client) send(ctx context.Context, spec *requestSpec) (*Result, error) {
	var bodyReader io.Reader
	if spec.body != nil {
		bodyReader = bytes.NewReader(spec.body)
		if spec.onProgress != nil {
			bodyReader = &progressReader{
				reader:     bodyReader,
				total:      int64(len(spec.body)),
				onProgress: spec.onProgress,
				last:       -1,
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, spec.url, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.send] NewRequestWithContext")
	}

	for key, values := range spec.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	if token := c.store.Read(); token != "" {
		if credentials.HasScheme(token) {
			req.Header.Set("Authorization", token)
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		obs.ObserveRequest(spec.method, 0)
		return nil, &APIError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		obs.ObserveRequest(spec.method, 0)
		return nil, &APIError{Status: 0, Message: err.Error()}
	}

	obs.ObserveRequest(spec.method, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Str("method", spec.method).Int("status", resp.StatusCode).Msg("portal request failed")
		return nil, newAPIError(resp.StatusCode, raw)
	}

	result := &Result{Status: resp.StatusCode, Header: resp.Header, Raw: raw}
	if resp.StatusCode == http.StatusNoContent || len(raw) == 0 || spec.binary {
		return result, nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		result.Parsed = string(raw)
	} else {
		result.Parsed = parsed
	}
	return result, nil
}

// progressReader reports upload progress as integer percentages.
type progressReader struct {
	reader     io.Reader
	total      int64
	read       int64
	onProgress func(int)
	last       int
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		percent := int(math.Round(float64(p.read) * 100 / float64(p.total)))
		if percent != p.last {
			p.last = percent
			p.onProgress(percent)
		}
	}
	return n, err
}

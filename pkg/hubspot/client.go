// Package hubspot provides a client for the HubSpot contacts and static
// list APIs.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

const (
	defaultBaseURL  = "https://api.hubapi.com"
	defaultPageSize = 100
)

// Client defines the HubSpot API operations used by the CRM sync.
type Client interface {
	ListContacts(ctx context.Context, listID string, properties []string) ([]Contact, error)
	CreateContact(ctx context.Context, properties map[string]string) (string, error)
	UpdateContact(ctx context.Context, id string, properties map[string]string) error
	AddToList(ctx context.Context, listID string, ids []string) error
}

// Contact is a list member with the requested properties. Missing
// properties are absent from the map.
type Contact struct {
	ID         string
	Properties map[string]string
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the HubSpot client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

type httpClient struct {
	token    string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	pageSize int
}

// NewClient creates a new HubSpot client authenticated with a private app
// token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 60 * time.Second},
		retry:    resilience.DefaultRetryConfig(),
		pageSize: defaultPageSize,
	}
	c.retry.OnRetry = resilience.RetryLogger("hubspot", "request")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listPage struct {
	Contacts []struct {
		VID        int64 `json:"vid"`
		Properties map[string]struct {
			Value string `json:"value"`
		} `json:"properties"`
	} `json:"contacts"`
	HasMore   bool  `json:"has-more"`
	VIDOffset int64 `json:"vid-offset"`
}

// ListContacts reads every member of a static list. Any failed page fails
// the whole read so a partial list is never returned.
func (c *httpClient) ListContacts(ctx context.Context, listID string, properties []string) ([]Contact, error) {
	var (
		out    []Contact
		offset int64
	)
	for page := 1; ; page++ {
		q := url.Values{"count": {strconv.Itoa(c.pageSize)}}
		for _, p := range properties {
			q.Add("property", p)
		}
		if offset > 0 {
			q.Set("vidOffset", strconv.FormatInt(offset, 10))
		}

		var lp listPage
		path := "/contacts/v1/lists/" + url.PathEscape(listID) + "/contacts/all"
		if err := c.do(ctx, http.MethodGet, path, q, nil, &lp); err != nil {
			return nil, eris.Wrapf(err, "hubspot: list %s page %d", listID, page)
		}

		for _, ct := range lp.Contacts {
			props := make(map[string]string, len(ct.Properties))
			for k, v := range ct.Properties {
				props[k] = v.Value
			}
			out = append(out, Contact{ID: strconv.FormatInt(ct.VID, 10), Properties: props})
		}
		zap.L().Debug("hubspot: list page", zap.String("list_id", listID), zap.Int("page", page), zap.Int("contacts", len(lp.Contacts)))

		if !lp.HasMore || lp.VIDOffset == 0 || lp.VIDOffset == offset {
			return out, nil
		}
		offset = lp.VIDOffset
	}
}

type objectBody struct {
	Properties map[string]string `json:"properties"`
}

type objectResponse struct {
	ID string `json:"id"`
}

func (c *httpClient) CreateContact(ctx context.Context, properties map[string]string) (string, error) {
	var resp objectResponse
	// A 5xx or timeout may follow a create HubSpot already committed.
	err := c.doWith(ctx, resilience.NoReplay(c.retry), http.MethodPost, "/crm/v3/objects/contacts", nil, objectBody{Properties: properties}, &resp)
	if err != nil {
		return "", eris.Wrap(err, "hubspot: create contact")
	}
	if resp.ID == "" {
		return "", eris.New("hubspot: create contact: response has no id")
	}
	return resp.ID, nil
}

func (c *httpClient) UpdateContact(ctx context.Context, id string, properties map[string]string) error {
	path := "/crm/v3/objects/contacts/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, nil, objectBody{Properties: properties}, nil); err != nil {
		return eris.Wrapf(err, "hubspot: update contact %s", id)
	}
	return nil
}

type addToListBody struct {
	VIDs []int64 `json:"vids"`
}

func (c *httpClient) AddToList(ctx context.Context, listID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := addToListBody{VIDs: make([]int64, 0, len(ids))}
	for _, id := range ids {
		vid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return eris.Wrapf(err, "hubspot: contact id %q is not a vid", id)
		}
		body.VIDs = append(body.VIDs, vid)
	}
	path := "/contacts/v1/lists/" + url.PathEscape(listID) + "/add"
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return eris.Wrapf(err, "hubspot: add to list %s", listID)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doWith(ctx, c.retry, method, path, query, body, out)
}

func (c *httpClient) doWith(ctx context.Context, retry resilience.RetryConfig, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		payload = buf
	}

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate limit")
			}
		}

		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response body")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resilience.FromResponse(&APIError{StatusCode: resp.StatusCode, Body: string(data)}, resp)
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
		return nil
	})
}

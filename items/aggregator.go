package items

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Seann-Moser/integrations/oauth/oclient"
)

const (
	DefaultPageSize    = 100
	DefaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
	maxErrorBody       = 4 << 10
)

// ErrInvalidCredentials indicates the credential blob could not be used to
// call the provider.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CollectionStatus reports how a single collection fetch went.
type CollectionStatus struct {
	Collection string   `json:"collection"`
	Type       ItemType `json:"type"`
	Count      int      `json:"count"`
	Status     int      `json:"status,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// OK reports whether the collection was fetched successfully.
func (s CollectionStatus) OK() bool {
	return s.Error == ""
}

// Result holds the aggregated items plus a status entry per collection, in
// collection order.
type Result struct {
	Items       []Item             `json:"items"`
	Collections []CollectionStatus `json:"collections"`
}

// Aggregator loads every configured collection for one provider.
type Aggregator struct {
	provider        string
	baseURL         string
	collections     []Collection
	pageSize        int
	pageSizeParam   string
	propertiesParam string
	concurrency     int
	timeout         time.Duration
	limiter         *rate.Limiter
	httpClient      *http.Client
	logger          *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPageSize sets the per-collection record limit.
func WithPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithQueryParams renames the page size and properties query parameters. An
// empty properties name disables the properties parameter.
func WithQueryParams(pageSize, properties string) Option {
	return func(a *Aggregator) {
		if pageSize != "" {
			a.pageSizeParam = pageSize
		}
		a.propertiesParam = properties
	}
}

// WithConcurrency bounds how many collections are fetched at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithRateLimit throttles outgoing requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Aggregator) {
		if rps <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds each collection request.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithHTTPClient sets the base client that carries provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Aggregator) { a.httpClient = c }
}

// WithLogger sets the logger used for collection failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAggregator(provider, baseURL string, collections []Collection, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider:        provider,
		baseURL:         strings.TrimRight(baseURL, "/"),
		collections:     collections,
		pageSize:        DefaultPageSize,
		pageSizeParam:   "limit",
		propertiesParam: "properties",
		concurrency:     DefaultConcurrency,
		timeout:         defaultTimeout,
		limiter:         rate.NewLimiter(rate.Inf, 1),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("provider", provider)
	return a
}

// Load decodes a serialized credential and fetches every collection with it.
func (a *Aggregator) Load(ctx context.Context, raw []byte) (*Result, error) {
	var cred oclient.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return a.Fetch(ctx, cred)
}

// Fetch queries every collection with the credential's access token. A failed
// collection is logged and reported in Result.Collections; it never fails the
// whole load.
func (a *Aggregator) Fetch(ctx context.Context, cred oclient.Credential) (*Result, error) {
	if strings.TrimSpace(cred.AccessToken) == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrInvalidCredentials)
	}
	client := a.bearerClient(ctx, cred.AccessToken)

	fetched := make([][]Item, len(a.collections))
	statuses := make([]CollectionStatus, len(a.collections))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, col := range a.collections {
		g.Go(func() error {
			status := CollectionStatus{Collection: col.Name, Type: col.Type}
			items, code, err := a.fetchCollection(ctx, client, col)
			status.Status = code
			if err != nil {
				a.logger.WarnContext(ctx, "collection fetch failed", "collection", col.Name, "status", code, "error", err)
				status.Error = err.Error()
			} else {
				fetched[i] = items
				status.Count = len(items)
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Items: []Item{}, Collections: statuses}
	for _, items := range fetched {
		res.Items = append(res.Items, items...)
	}
	a.logger.InfoContext(ctx, "items loaded", "count", len(res.Items))
	return res, nil
}

func (a *Aggregator) bearerClient(ctx context.Context, accessToken string) *http.Client {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = a.timeout
	return client
}

func (a *Aggregator) collectionURL(col Collection) (string, error) {
	u, err := url.Parse(a.baseURL + col.Path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(a.pageSizeParam, strconv.Itoa(a.pageSize))
	if a.propertiesParam != "" && len(col.NameFields) > 0 {
		q.Set(a.propertiesParam, strings.Join(col.NameFields, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Aggregator) fetchCollection(ctx context.Context, client *http.Client, col Collection) ([]Item, int, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	target, err := a.collectionURL(col)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, &oclient.ProviderError{
			Provider: a.provider,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	records, err := decodeRecords(resp.Body, col.resultsField())
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode %s: %w", col.Name, err)
	}
	out := make([]Item, 0, len(records))
	for _, rec := range records {
		out = append(out, col.Normalize(rec))
	}
	return out, resp.StatusCode, nil
}

// decodeRecords pulls the record list out of a response page. A page without
// the results field holds no records.
func decodeRecords(r io.Reader, field string) ([]map[string]any, error) {
	var page map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&page); err != nil {
		return nil, err
	}
	raw, ok := page[field]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	chitransport "github.com/kailas-cloud/docqa/internal/transport/chi"
	"github.com/kailas-cloud/docqa/internal/version"
)

// maxErrorBody caps how much of a non-JSON error body is kept.
const maxErrorBody = 4 << 10

// Client talks to a docqa server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	userAgent  string
	httpClient *http.Client
	obs        *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("docqa: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("docqa: base url %q must be http or https", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	ua := cfg.userAgent
	if ua == "" {
		ua = version.UserAgent("docqa-sdk")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, fmt.Errorf("docqa: init observer: %w", err)
	}

	return &Client{
		baseURL:    u,
		apiKey:     cfg.apiKey,
		userAgent:  ua,
		httpClient: hc,
		obs:        obs,
	}, nil
}

// Documents returns the document management API.
func (c *Client) Documents() *DocumentService {
	return &DocumentService{client: c}
}

// Search ranks the chunks of one document against query.
// topK of 0 uses the server default.
func (c *Client) Search(ctx context.Context, documentID, query string, topK int) (_ []Passage, err error) {
	defer func(start time.Time) { c.obs.observe("search", start, err) }(time.Now())

	body := chitransport.SearchRequest{Query: query}
	if topK != 0 {
		body.TopK = &topK
	}
	var resp chitransport.SearchResponse
	path := "/documents/" + url.PathEscape(documentID) + "/search"
	if _, err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	out := make([]Passage, len(resp.Results))
	for i, p := range resp.Results {
		out[i] = Passage{
			ChunkIndex: p.ChunkIndex,
			Page:       derefPage(p.Page),
			Text:       p.Text,
			Similarity: p.Similarity,
		}
	}
	return out, nil
}

// AskOption tunes a single Ask call.
type AskOption func(*chitransport.AskRequest)

// WithMaxResults sets how many chunks are given to the model as context.
func WithMaxResults(n int) AskOption {
	return func(r *chitransport.AskRequest) { r.MaxResults = &n }
}

// Ask answers question from the content of one document.
func (c *Client) Ask(ctx context.Context, documentID, question string, opts ...AskOption) (_ *Answer, err error) {
	defer func(start time.Time) { c.obs.observe("ask", start, err) }(time.Now())

	body := chitransport.AskRequest{Question: question, DocumentID: documentID}
	for _, o := range opts {
		o(&body)
	}
	var resp chitransport.AskResponse
	if _, err := c.doJSON(ctx, http.MethodPost, "/ask", body, &resp); err != nil {
		return nil, err
	}

	sources := make([]Source, len(resp.Sources))
	for i, s := range resp.Sources {
		sources[i] = Source{ChunkIndex: s.ChunkIndex, Page: derefPage(s.Page), Similarity: s.Similarity}
	}
	return &Answer{
		Question:          resp.Question,
		Text:              resp.Answer,
		DocumentID:        resp.DocumentID,
		ContextChunksUsed: resp.ContextChunksUsed,
		Sources:           sources,
	}, nil
}

// Usage returns embedding token consumption for the current period.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (_ *UsageReport, err error) {
	defer func(start time.Time) { c.obs.observe("usage", start, err) }(time.Now())

	var resp chitransport.UsageResponse
	path := "/usage?period=" + url.QueryEscape(string(period))
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	r := &UsageReport{
		Period:          UsagePeriod(resp.Period),
		TokensUsed:      resp.TokensUsed,
		TokensLimit:     resp.TokensLimit,
		TokensRemaining: resp.TokensRemaining,
		IsExhausted:     resp.IsExhausted,
	}
	if resp.PeriodStartAt != nil {
		r.PeriodStart = *resp.PeriodStartAt
	}
	if resp.PeriodEndAt != nil {
		r.PeriodEnd = *resp.PeriodEndAt
	}
	return r, nil
}

// Health reports server health. A degraded server is not an error:
// the status and per-dependency checks are returned as-is.
func (c *Client) Health(ctx context.Context) (_ *HealthStatus, err error) {
	defer func(start time.Time) { c.obs.observe("health", start, err) }(time.Now())

	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docqa: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, decodeError(resp)
	}
	var body chitransport.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("docqa: decode health: %w", err)
	}
	return &HealthStatus{Status: body.Status, Checks: body.Checks, Latency: time.Since(start)}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("docqa: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// doJSON sends in as a JSON body (nil for none) and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) (http.Header, error) {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("docqa: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docqa: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("docqa: decode response: %w", err)
		}
	}
	return resp.Header, nil
}

func decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		return newAPIError(resp.StatusCode, chitransport.ErrorResponse{})
	}
	var body chitransport.ErrorResponse
	if jsonErr := json.Unmarshal(raw, &body); jsonErr != nil {
		body = chitransport.ErrorResponse{Message: strings.TrimSpace(string(raw))}
	}
	return newAPIError(resp.StatusCode, body)
}

func derefPage(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

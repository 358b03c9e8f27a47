package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"call-inbox/internal/calls"
)

var tracer = otel.Tracer("callinbox.internal.upstream")

const DefaultFetchLimit = 200

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream: status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream: status %d: %s", e.StatusCode, e.Body)
}

// Page is one bulk response from GET /calls.
type Page struct {
	Nodes       []calls.Call `json:"nodes"`
	TotalCount  int          `json:"totalCount"`
	HasNextPage bool         `json:"hasNextPage"`
}

// Client talks to the call-records REST API. The token is used verbatim.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// FetchCalls performs the bulk load request.
func (c *Client) FetchCalls(ctx context.Context, limit int) (Page, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	ctx, span := tracer.Start(ctx, "upstream.fetch_calls")
	defer span.End()
	span.SetAttributes(attribute.Int("callinbox.limit", limit))

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	body, err := c.do(ctx, http.MethodGet, "/calls?"+q.Encode(), nil)
	if err != nil {
		recordErr(span, err)
		return Page{}, err
	}

	var raw struct {
		Nodes       json.RawMessage `json:"nodes"`
		TotalCount  int             `json:"totalCount"`
		HasNextPage bool            `json:"hasNextPage"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		err = fmt.Errorf("%w: page: %v", calls.ErrMalformed, err)
		recordErr(span, err)
		return Page{}, err
	}
	page := Page{TotalCount: raw.TotalCount, HasNextPage: raw.HasNextPage}
	if len(raw.Nodes) > 0 && string(raw.Nodes) != "null" {
		nodes, err := calls.DecodeList(raw.Nodes)
		if err != nil {
			recordErr(span, err)
			return Page{}, err
		}
		page.Nodes = nodes
	}
	span.SetAttributes(attribute.Int("callinbox.nodes", len(page.Nodes)))
	return page, nil
}

// ToggleArchive flips the archived flag and returns the canonical record.
func (c *Client) ToggleArchive(ctx context.Context, id string) (calls.Call, error) {
	ctx, span := tracer.Start(ctx, "upstream.toggle_archive")
	defer span.End()
	span.SetAttributes(attribute.String("callinbox.call_id", id))

	body, err := c.do(ctx, http.MethodPut, "/calls/"+url.PathEscape(id)+"/archive", nil)
	if err != nil {
		recordErr(span, err)
		return calls.Call{}, err
	}
	rec, err := calls.Decode(body)
	if err != nil {
		recordErr(span, err)
	}
	return rec, err
}

// AddNote attaches a note and returns the canonical record.
func (c *Client) AddNote(ctx context.Context, id, content string) (calls.Call, error) {
	ctx, span := tracer.Start(ctx, "upstream.add_note")
	defer span.End()
	span.SetAttributes(attribute.String("callinbox.call_id", id))

	payload := map[string]string{"content": content}
	body, err := c.do(ctx, http.MethodPost, "/calls/"+url.PathEscape(id)+"/note", payload)
	if err != nil {
		recordErr(span, err)
		return calls.Call{}, err
	}
	rec, err := calls.Decode(body)
	if err != nil {
		recordErr(span, err)
	}
	return rec, err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, errors.New("upstream: base url is empty")
	}
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("upstream: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return body, nil
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

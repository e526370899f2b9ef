// Package gqlclient executes GraphQL documents against a remote API over HTTP.
package gqlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	events "github.com/hanpama/graphsource/internal/events"
)

// maxErrorBody caps how much of a failed response is kept in NetworkError.Body.
const maxErrorBody = 4 << 10

var operationNameRe = regexp.MustCompile(`^\s*(?:query|mutation)\s+([_A-Za-z][_0-9A-Za-z]*)`)

// Client posts GraphQL requests to {apiURL}/graphql. It is safe for concurrent use.
type Client struct {
	endpoint string
	opts     *Options
	closed   atomic.Bool
}

// New creates a client for the API rooted at apiURL.
func New(apiURL string, opts ...Option) *Client {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	return &Client{endpoint: strings.TrimRight(apiURL, "/") + "/graphql", opts: o}
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   map[string]any `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// Execute sends query with vars and returns the data member of the response.
// GraphQL errors are returned as *ResponseError together with any partial data;
// transport failures and non-2xx statuses as *NetworkError.
func (c *Client) Execute(ctx context.Context, query string, vars map[string]any) (data map[string]any, err error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok && c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req := request{Query: query, Variables: vars}
	if m := operationNameRe.FindStringSubmatch(query); m != nil {
		req.OperationName = m[1]
	}

	status := 0
	var gqlErrs []GraphQLError
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Endpoint: c.endpoint, OperationName: req.OperationName, Query: query})
	defer func() {
		errs := make([]error, len(gqlErrs))
		for i := range gqlErrs {
			errs[i] = gqlErrs[i]
		}
		eventbus.Publish(ctx, events.GraphQLFinish{
			Endpoint:      c.endpoint,
			OperationName: req.OperationName,
			Status:        status,
			Errors:        errs,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gqlclient: encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	for k, v := range c.opts.Headers {
		hreq.Header.Set(k, v)
	}
	if c.opts.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	hres, err := c.opts.HTTPClient.Do(hreq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer hres.Body.Close()
	status = hres.StatusCode

	raw, err := io.ReadAll(hres.Body)
	if err != nil {
		return nil, &NetworkError{StatusCode: status, Err: err}
	}
	var res response
	decodeErr := json.Unmarshal(raw, &res)
	gqlErrs = res.Errors

	if status < 200 || status > 299 {
		return nil, &NetworkError{StatusCode: status, Body: truncate(raw), Errors: res.Errors}
	}
	if decodeErr != nil {
		return nil, &NetworkError{StatusCode: status, Body: truncate(raw), Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if len(res.Errors) > 0 {
		return res.Data, &ResponseError{Errors: res.Errors}
	}
	return res.Data, nil
}

// Close makes further Execute calls fail with ErrClosed.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}

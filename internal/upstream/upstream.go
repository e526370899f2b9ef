// Package upstream reads schema and metadata from the content API: the GraphQL
// introspection result, the configured locales and the content-type identifiers.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/go-openapi/inflect"

	introspection "github.com/hanpama/graphsource/internal/introspection"
	schema "github.com/hanpama/graphsource/internal/schema"
)

const localesQuery = `query LocaleQuery { i18NLocales { code } }`

// Executor runs a GraphQL document. *gqlclient.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, query string, vars map[string]any) (map[string]any, error)
}

// Client implements the schema source on top of a GraphQL executor and the REST API.
type Client struct {
	apiURL  string
	gql     Executor
	http    *http.Client
	token   string
	headers map[string]string
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(u *Client) { u.http = c } }
func WithToken(token string) Option        { return func(u *Client) { u.token = token } }
func WithLogger(l *slog.Logger) Option     { return func(u *Client) { u.log = l } }
func WithHeaders(h map[string]string) Option {
	return func(u *Client) { u.headers = maps.Clone(h) }
}

// New returns a schema source for the API rooted at apiURL.
func New(apiURL string, gql Executor, opts ...Option) *Client {
	c := &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		gql:    gql,
		http:   http.DefaultClient,
		log:    slog.Default(),
	}
	for _, f := range opts {
		f(c)
	}
	return c
}

// Introspect fetches and indexes the remote schema.
func (c *Client) Introspect(ctx context.Context) (*schema.Schema, error) {
	data, err := c.gql.Execute(ctx, introspection.Query, nil)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	d, err := introspection.Decode(raw)
	if err != nil {
		return nil, err
	}
	return introspection.BuildSchema(d)
}

// Locales lists the locale codes the API serves. Failures are logged and yield an
// empty list, since the i18n plugin may not be installed.
func (c *Client) Locales(ctx context.Context) ([]string, error) {
	data, err := c.gql.Execute(ctx, localesQuery, nil)
	if err != nil {
		c.log.Warn("upstream: locale discovery failed", "error", err)
		return []string{}, nil
	}
	list, _ := data["i18NLocales"].([]any)
	codes := make([]string, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			if code, ok := m["code"].(string); ok && code != "" {
				codes = append(codes, code)
			}
		}
	}
	return codes, nil
}

type contentType struct {
	APIID string `json:"apiID"`
	UID   string `json:"uid"`
}

// ContentTypes maps each content type's schema name (its PascalCased apiID) to
// the upstream uid, e.g. "Article" -> "api::article.article".
func (c *Client) ContentTypes(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/api/content-type-builder/content-types", nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content types: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("content types: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data []contentType `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("content types: decode: %w", err)
	}
	out := make(map[string]string, len(payload.Data))
	for _, ct := range payload.Data {
		if ct.APIID == "" {
			continue
		}
		out[inflect.Camelize(ct.APIID)] = ct.UID
	}
	return out, nil
}

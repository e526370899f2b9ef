package gqlclient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("gqlclient: closed")

// Location is a position in the query text.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// ResponseError reports GraphQL errors in an otherwise successful response.
type ResponseError struct {
	Errors []GraphQLError
}

func (e *ResponseError) Error() string { return "graphql: " + joinMessages(e.Errors) }

// NetworkError reports a failed request or a non-2xx response. Errors holds any
// GraphQL errors the server put in the failed response body.
type NetworkError struct {
	StatusCode int
	Body       string
	Errors     []GraphQLError
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return "graphql request: " + e.Err.Error()
	case len(e.Errors) > 0:
		return fmt.Sprintf("graphql request: status %d: %s", e.StatusCode, joinMessages(e.Errors))
	}
	return fmt.Sprintf("graphql request: status %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Errors returns the GraphQL errors carried by err, if any.
func Errors(err error) []GraphQLError {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Errors
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Errors
	}
	return nil
}

func joinMessages(errs []GraphQLError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

package events

import "time"

// GraphQLStart is emitted before a GraphQL request is sent upstream.
type GraphQLStart struct {
	Endpoint      string
	OperationName string
	Query         string
}

// GraphQLFinish is emitted after the upstream response has been decoded.
// Status is 0 when no HTTP response was received.
type GraphQLFinish struct {
	Endpoint      string
	OperationName string
	Status        int
	Errors        []error
	Err           error
	Duration      time.Duration
}

package sourcing

import (
	"fmt"
	"time"

	gqlclient "github.com/hanpama/graphsource/internal/gqlclient"
	querygen "github.com/hanpama/graphsource/internal/querygen"
)

// Phases of an operation.
const (
	PhaseFull = "full"
	PhaseSync = "sync"
)

// Report is one diagnosable failure of an operation: a single GraphQL error, or the
// transport error when the response carried none. It holds the exact document and
// variables that were sent.
type Report struct {
	Operation string         `json:"operation"`
	Type      string         `json:"type"`
	Locale    string         `json:"locale,omitempty"`
	Phase     string         `json:"phase"`
	Message   string         `json:"message"`
	Path      []any          `json:"path,omitempty"`
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
	Time      time.Time      `json:"time"`
}

// OperationError is the failure of one operation phase.
type OperationError struct {
	Operation string
	Phase     string
	Query     string
	Variables map[string]any
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s (%s): %v", e.Operation, e.Phase, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Reports expands e into one Report per contained GraphQL error.
func (e *OperationError) Reports(op *querygen.Operation, at time.Time) []Report {
	base := Report{
		Operation: e.Operation,
		Type:      op.TypeName(),
		Locale:    op.Locale,
		Phase:     e.Phase,
		Query:     e.Query,
		Variables: e.Variables,
		Time:      at,
	}
	gqlErrs := gqlclient.Errors(e.Err)
	if len(gqlErrs) == 0 {
		base.Message = e.Err.Error()
		return []Report{base}
	}
	out := make([]Report, len(gqlErrs))
	for i, ge := range gqlErrs {
		r := base
		r.Message = ge.Message
		r.Path = ge.Path
		out[i] = r
	}
	return out
}

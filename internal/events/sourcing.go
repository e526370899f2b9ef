package events

import "time"

// RunStart is emitted when a sourcing run begins.
type RunStart struct {
	RunID       string
	Owner       string
	Incremental bool
}

// RunFinish is emitted when a sourcing run ends, fatal or not.
type RunFinish struct {
	RunID      string
	Operations int
	Upserted   int
	Unchanged  int
	Touched    int
	Deleted    int
	Reports    int
	Err        error
	Duration   time.Duration
}

// OperationStart is emitted before an operation phase executes.
// Phase is "full" or "sync".
type OperationStart struct {
	Operation string
	Type      string
	Locale    string
	Phase     string
}

// OperationFinish is emitted after an operation phase, with the number of items received.
type OperationFinish struct {
	Operation string
	Type      string
	Locale    string
	Phase     string
	Items     int
	Err       error
	Duration  time.Duration
}

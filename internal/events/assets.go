package events

import "time"

// AssetMaterialized is emitted after an asset download attempt.
// Cached is true when the result came from the in-memory memo or disk.
type AssetMaterialized struct {
	URL      string
	Bytes    int64
	Cached   bool
	Err      error
	Duration time.Duration
}

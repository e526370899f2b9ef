package events

// RecordAction is what happened to a stored record.
type RecordAction string

const (
	RecordCreated   RecordAction = "created"
	RecordUpdated   RecordAction = "updated"
	RecordUnchanged RecordAction = "unchanged"
	RecordTouched   RecordAction = "touched"
	RecordDeleted   RecordAction = "deleted"
)

// Record is emitted for every store mutation made by a run.
type Record struct {
	ID     string
	Type   string
	Action RecordAction
	Err    error
}

package tracker

// Status is the derived visual state of a row.
type Status int

const (
	// StatusClean means the row has no pending change.
	StatusClean Status = iota
	// StatusEdited means a persisted row has a pending update.
	StatusEdited
	// StatusNew means the row is a draft awaiting creation.
	StatusNew
	// StatusDeleted means a persisted row is marked for removal.
	StatusDeleted
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusEdited:
		return "edited"
	case StatusNew:
		return "new"
	case StatusDeleted:
		return "deleted"
	default:
		return "clean"
	}
}

// ParseStatus converts a status name back into a Status.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "clean":
		return StatusClean, true
	case "edited":
		return StatusEdited, true
	case "new":
		return StatusNew, true
	case "deleted":
		return StatusDeleted, true
	}
	return StatusClean, false
}

package domain

// Lane is the coarse action category assigned to a message.
type Lane string

const (
	// LaneArchiveNow files the message immediately; nothing left to do.
	LaneArchiveNow Lane = "archive-now"
	// LaneStickyActionable keeps the message flagged until the user archives it.
	LaneStickyActionable Lane = "sticky-actionable"
	// LaneCalendarEvent routes the message through the calendar reconciler.
	LaneCalendarEvent Lane = "calendar-event"
)

// Valid reports whether the lane is one of the enumerated values.
func (l Lane) Valid() bool {
	switch l {
	case LaneArchiveNow, LaneStickyActionable, LaneCalendarEvent:
		return true
	}
	return false
}

// CalendarIntent is the free-text appointment signal extracted by the
// classifier. Times are kept as raw strings here; the reconciler resolves
// them against the message's received time and the process timezone.
type CalendarIntent struct {
	Title      string `json:"title"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at,omitempty"`
	Location   string `json:"location,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Recurrence string `json:"recurrence,omitempty"` // recorded, never expanded
}

// ClassificationResult is the validated output of the classification
// adapter. It is owned transiently by the decision pipeline and persisted
// only through the actions it produces.
type ClassificationResult struct {
	Lane       Lane            `json:"lane"`
	Folder     string          `json:"folder"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason,omitempty"`
	Calendar   *CalendarIntent `json:"calendar,omitempty"`
	Fallback   bool            `json:"fallback,omitempty"` // true when the rule table produced this result
}

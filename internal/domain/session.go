package domain

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusError, StatusArchived:
		return true
	}
	return false
}

// Session is derived from the events sharing a session id. It is never
// authored directly, except for operator archive/delete.
type Session struct {
	ID            string  `json:"id"`
	Source        Source  `json:"source"`
	StartTime     int64   `json:"startTime"`
	LastEventTime int64   `json:"lastEventTime"`
	Status        Status  `json:"status"`
	LastEventType *string `json:"lastEventType"`
	LastEventText *string `json:"lastEventText"`
	EventCount    int64   `json:"eventCount"`
	Metadata      Meta    `json:"metadata"`
	UserID        *string `json:"userId"`
}

// ListSessionsOptions filters session listings. Zero values mean "any".
type ListSessionsOptions struct {
	Limit  int
	Source Source
	Status Status
}

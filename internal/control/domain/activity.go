package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActivityStatus records the outcome of a logged navigation attempt.
// Values serialize as plain strings to stay compatible with stored data.
type ActivityStatus string

const (
	StatusAllowed ActivityStatus = "Allowed"
	StatusBlocked ActivityStatus = "Blocked"
	StatusWarning ActivityStatus = "Warning"
)

// IsValid returns true when the status is one of the supported values.
func (s ActivityStatus) IsValid() bool {
	switch s {
	case StatusAllowed, StatusBlocked, StatusWarning:
		return true
	default:
		return false
	}
}

// ParseActivityStatus converts a string into an ActivityStatus
// (case-insensitive).
func ParseActivityStatus(s string) (ActivityStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allowed":
		return StatusAllowed, nil
	case "blocked":
		return StatusBlocked, nil
	case "warning":
		return StatusWarning, nil
	default:
		return "", fmt.Errorf("unsupported ActivityStatus: %q", s)
	}
}

// BrowsingActivity is one immutable audit record of a decision. Records are
// created exactly once per logged decision and never updated or deleted here;
// retention is an external concern.
type BrowsingActivity struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"userId"`
	Domain    string         `json:"domain"`
	Timestamp time.Time      `json:"timestamp"`
	Status    ActivityStatus `json:"status"`
}

// NewBrowsingActivity constructs a BrowsingActivity and validates its fields.
func NewBrowsingActivity(id, userID int64, host string, ts time.Time, status ActivityStatus) (BrowsingActivity, error) {
	a := BrowsingActivity{
		ID:        id,
		UserID:    userID,
		Domain:    strings.TrimSpace(host),
		Timestamp: ts,
		Status:    status,
	}
	if err := a.Validate(); err != nil {
		return BrowsingActivity{}, err
	}
	return a, nil
}

// Validate checks the BrowsingActivity for required fields.
func (a BrowsingActivity) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("activity id must be positive")
	}
	if a.UserID <= 0 {
		return fmt.Errorf("activity userId must reference a user")
	}
	if a.Domain == "" {
		return fmt.Errorf("activity domain must not be empty")
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("activity timestamp must be set")
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("unsupported ActivityStatus: %q", a.Status)
	}
	return nil
}

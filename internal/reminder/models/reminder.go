package models

import (
	"fmt"
	"strings"
	"time"

	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/validation"
)

// Status is the stored lifecycle state. Pending is initial; completed and
// cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// DerivedStatus is computed from the stored status and the current time.
// It is never persisted.
type DerivedStatus string

const (
	DerivedUpcoming  DerivedStatus = "upcoming"
	DerivedOverdue   DerivedStatus = "overdue"
	DerivedCompleted DerivedStatus = "completed"
	DerivedCancelled DerivedStatus = "cancelled"
)

// Reminder is a follow-up tied to a due date.
//
// Invariants:
//   - CompletedAt is set iff Status is completed
//   - CancelledAt is set iff Status is cancelled
//   - only pending -> completed and pending -> cancelled transitions exist
type Reminder struct {
	ID           domain.ReminderID `json:"id"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	ResourceType string            `json:"resourceType"`
	ResourceID   string            `json:"resourceId"`
	DueDate      time.Time         `json:"dueDate"`
	Status       Status            `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	CompletedAt  *time.Time        `json:"completedAt"`
	CancelledAt  *time.Time        `json:"cancelledAt"`
}

// Classify derives the dashboard status of r at now. A pending reminder is
// overdue once now reaches its due date.
func Classify(r *Reminder, now time.Time) DerivedStatus {
	switch r.Status {
	case StatusCompleted:
		return DerivedCompleted
	case StatusCancelled:
		return DerivedCancelled
	}
	if now.Before(r.DueDate) {
		return DerivedUpcoming
	}
	return DerivedOverdue
}

// RequirePending fails with a conflict naming the current state unless r is
// still pending.
func (r *Reminder) RequirePending() error {
	if r.Status == StatusPending {
		return nil
	}
	return dErrors.Conflict(string(r.Status), fmt.Sprintf("reminder is already %s", r.Status))
}

func (r *Reminder) ApplyComplete(now time.Time) {
	r.Status = StatusCompleted
	at := now
	r.CompletedAt = &at
}

func (r *Reminder) ApplyCancel(now time.Time) {
	r.Status = StatusCancelled
	at := now
	r.CancelledAt = &at
}

// Clone returns a deep copy.
func (r *Reminder) Clone() *Reminder {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// View is a reminder as served to clients, with its status derived at
// response time.
type View struct {
	Reminder
	DerivedStatus DerivedStatus `json:"derivedStatus"`
}

func NewView(r *Reminder, now time.Time) View {
	return View{Reminder: *r.Clone(), DerivedStatus: Classify(r, now)}
}

// CreateInput is what callers supply to schedule a reminder. DueDate is an
// RFC 3339 instant; past instants are accepted for backfilled reminders.
type CreateInput struct {
	Title        string `json:"title" validate:"required,max=200"`
	Message      string `json:"message" validate:"max=2000"`
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId" validate:"required"`
	DueDate      string `json:"dueDate" validate:"required"`
}

func (in *CreateInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	in.ResourceType = strings.TrimSpace(in.ResourceType)
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	in.DueDate = strings.TrimSpace(in.DueDate)
}

// ParseDueDate parses an RFC 3339 due date and rejects the zero instant.
func ParseDueDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, dErrors.Validation("dueDate", "dueDate is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.Validation("dueDate", "dueDate must be an RFC 3339 timestamp")
	}
	if t.IsZero() {
		return time.Time{}, dErrors.Validation("dueDate", "dueDate must not be the zero time")
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

// NewReminder builds a pending reminder from in.
func NewReminder(id domain.ReminderID, in CreateInput, now time.Time) (*Reminder, error) {
	in.Normalize()
	if in.Title == "" {
		return nil, dErrors.Validation("title", "title is required")
	}
	if in.ResourceID == "" {
		return nil, dErrors.Validation("resourceId", "resourceId is required")
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	return &Reminder{
		ID:           id,
		Title:        in.Title,
		Message:      in.Message,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		DueDate:      due,
		Status:       StatusPending,
		CreatedAt:    now,
	}, nil
}

// ListStatus selects reminders by derived status.
type ListStatus string

const (
	ListAll       ListStatus = "all"
	ListUpcoming  ListStatus = "upcoming"
	ListOverdue   ListStatus = "overdue"
	ListCompleted ListStatus = "completed"
	ListCancelled ListStatus = "cancelled"
)

// ParseListStatus accepts an empty value as all.
func ParseListStatus(raw string) (ListStatus, error) {
	s := ListStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return ListAll, nil
	case ListAll, ListUpcoming, ListOverdue, ListCompleted, ListCancelled:
		return s, nil
	}
	return "", dErrors.Validation("status", "status must be one of: all upcoming overdue completed cancelled")
}

// StoredStatus is the persisted status that can satisfy s. Upcoming and
// overdue are both pending; all has no constraint.
func (s ListStatus) StoredStatus() Status {
	switch s {
	case ListUpcoming, ListOverdue:
		return StatusPending
	case ListCompleted:
		return StatusCompleted
	case ListCancelled:
		return StatusCancelled
	}
	return ""
}

// Matches reports whether a reminder with derived status d belongs in s.
func (s ListStatus) Matches(d DerivedStatus) bool {
	if s == ListAll {
		return true
	}
	return string(s) == string(d)
}

// DueFirst orders reminders by due date ascending, ties by id ascending.
func DueFirst(a, b *Reminder) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.ID.String() < b.ID.String()
}

package models

import (
	"fmt"
	"strings"
	"time"

	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/validation"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

func (s Status) IsValid() bool {
	return s == StatusUnread || s == StatusRead
}

// Notification types. Contract triggers reuse the audit event type name.
const (
	TypeGeneral         = "general"
	TypeReminderOverdue = "reminder_overdue"
)

// Notification is a dismissible alert with a one-way read state.
//
// Invariants:
//   - ReadAt is set iff Status is read
//   - Status only moves unread -> read
//   - DedupeKey, when set, is unique across notifications
type Notification struct {
	ID           domain.NotificationID `json:"id"`
	Type         string                `json:"type"`
	Title        string                `json:"title"`
	Message      string                `json:"message"`
	Priority     Priority              `json:"priority"`
	Status       Status                `json:"status"`
	ResourceType string                `json:"resourceType,omitempty"`
	ResourceID   string                `json:"resourceId,omitempty"`
	DedupeKey    string                `json:"dedupeKey,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	ReadAt       *time.Time            `json:"readAt"`
}

func (n *Notification) IsRead() bool {
	return n.Status == StatusRead
}

// ApplyRead marks the notification read at now. Already-read notifications
// are left untouched, so the first readAt wins.
func (n *Notification) ApplyRead(now time.Time) {
	if n.IsRead() {
		return
	}
	n.Status = StatusRead
	readAt := now
	n.ReadAt = &readAt
}

// Clone returns a deep copy.
func (n *Notification) Clone() *Notification {
	c := *n
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		c.ReadAt = &readAt
	}
	return &c
}

// CreateInput is what callers supply to raise a notification.
type CreateInput struct {
	Type         string   `json:"type"`
	Title        string   `json:"title" validate:"required,max=200"`
	Message      string   `json:"message" validate:"max=2000"`
	Priority     Priority `json:"priority"`
	ResourceType string   `json:"resourceType"`
	ResourceID   string   `json:"resourceId"`
	DedupeKey    string   `json:"dedupeKey"`
}

// Normalize trims fields and applies the default type and priority.
func (in *CreateInput) Normalize() {
	in.Type = strings.TrimSpace(in.Type)
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	in.Priority = Priority(strings.ToLower(strings.TrimSpace(string(in.Priority))))
	in.ResourceType = strings.TrimSpace(in.ResourceType)
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	in.DedupeKey = strings.TrimSpace(in.DedupeKey)
	if in.Type == "" {
		in.Type = TypeGeneral
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
}

func (in *CreateInput) Validate() error {
	if in.Title == "" {
		return dErrors.Validation("title", "title is required")
	}
	if !in.Priority.IsValid() {
		return dErrors.Validation("priority", fmt.Sprintf("priority must be one of: low medium high, got %q", in.Priority))
	}
	if (in.ResourceType == "") != (in.ResourceID == "") {
		return dErrors.Validation("resourceId", "resourceType and resourceId must be set together")
	}
	return validation.Struct(in)
}

// NewNotification builds an unread notification from a validated input.
func NewNotification(id domain.NotificationID, in CreateInput, now time.Time) (*Notification, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Notification{
		ID:           id,
		Type:         in.Type,
		Title:        in.Title,
		Message:      in.Message,
		Priority:     in.Priority,
		Status:       StatusUnread,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		DedupeKey:    in.DedupeKey,
		CreatedAt:    now,
	}, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Status Status
	Type   string
}

func (f *ListFilter) Normalize() {
	f.Status = Status(strings.ToLower(strings.TrimSpace(string(f.Status))))
	f.Type = strings.TrimSpace(f.Type)
}

func (f ListFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return dErrors.Validation("status", "status must be one of: unread read")
	}
	return nil
}

func (f ListFilter) Matches(n *Notification) bool {
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	return true
}

// Newer orders notifications newest first, ties by id descending.
func Newer(a, b *Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

// MarkAllResult reports the outcome of a mark-all-read batch. Records are
// independent: a failure leaves the others as they landed. Errors maps each
// failed id to the error code that stopped it.
type MarkAllResult struct {
	Succeeded []domain.NotificationID `json:"succeeded"`
	Failed    []domain.NotificationID `json:"failed"`
	Errors    map[string]dErrors.Code `json:"errors,omitempty"`
}

// Fail records id as failed with the client-safe code of err.
func (r *MarkAllResult) Fail(id domain.NotificationID, err error) {
	r.Failed = append(r.Failed, id)
	if r.Errors == nil {
		r.Errors = make(map[string]dErrors.Code)
	}
	r.Errors[id.String()] = dErrors.CodeOf(err)
}

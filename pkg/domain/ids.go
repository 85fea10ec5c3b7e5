// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a UUID so an event id can never be passed where a
// reminder id is expected. Parsing happens once at the trust boundary.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "kontrakpro/pkg/domain-errors"
)

type (
	EventID        uuid.UUID
	NotificationID uuid.UUID
	ReminderID     uuid.UUID
)

func NewEventID() EventID               { return EventID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
func NewReminderID() ReminderID         { return ReminderID(uuid.New()) }

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification")
	return NotificationID(u), err
}

func ParseReminderID(s string) (ReminderID, error) {
	u, err := parseUUID(s, "reminder")
	return ReminderID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.Validation("id", kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Validation("id", "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Validation("id", kind+" id cannot be nil")
	}
	return u, nil
}

func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id ReminderID) String() string     { return uuid.UUID(id).String() }

// Compare orders ids bytewise; used to break timestamp ties deterministically.
func (id EventID) Compare(other EventID) int {
	return strings.Compare(id.String(), other.String())
}

func (id EventID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *EventID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *NotificationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id ReminderID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ReminderID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/validation"
)

// EventType names an action taken on a contract. Each type fixes the shape
// of the event's Details.
type EventType string

const (
	EventContractCreated     EventType = "contract_created"
	EventContractUpdated     EventType = "contract_updated"
	EventContractShared      EventType = "contract_shared"
	EventContractSigned      EventType = "contract_signed"
	EventContractApproved    EventType = "contract_approved"
	EventContractViewed      EventType = "contract_viewed"
	EventAIAnalysisPerformed EventType = "ai_analysis_performed"
	EventContractExported    EventType = "contract_exported"
	EventContractArchived    EventType = "contract_archived"
	EventPermissionChanged   EventType = "permission_changed"
)

// detailShapes maps each event type to a constructor for its Details variant.
// Adding an event type means adding a variant and registering it here.
var detailShapes = map[EventType]func() Details{
	EventContractCreated:     func() Details { return &ContractCreated{} },
	EventContractUpdated:     func() Details { return &ContractUpdated{} },
	EventContractShared:      func() Details { return &ContractShared{} },
	EventContractSigned:      func() Details { return &ContractSigned{} },
	EventContractApproved:    func() Details { return &ContractApproved{} },
	EventContractViewed:      func() Details { return &ContractViewed{} },
	EventAIAnalysisPerformed: func() Details { return &AIAnalysisPerformed{} },
	EventContractExported:    func() Details { return &ContractExported{} },
	EventContractArchived:    func() Details { return &ContractArchived{} },
	EventPermissionChanged:   func() Details { return &PermissionChanged{} },
}

// IsKnown reports whether t is a registered event type.
func (t EventType) IsKnown() bool {
	_, ok := detailShapes[t]
	return ok
}

// KnownEventTypes lists registered event types in lexical order.
func KnownEventTypes() []EventType {
	out := make([]EventType, 0, len(detailShapes))
	for t := range detailShapes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseEventType validates a raw event type string.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.TrimSpace(s))
	if !t.IsKnown() {
		return "", UnknownEventType(s)
	}
	return t, nil
}

// UnknownEventType is the validation error for an unregistered type. It
// lists the accepted types so clients can correct the request.
func UnknownEventType(s string) error {
	known := KnownEventTypes()
	names := make([]string, len(known))
	for i, t := range known {
		names[i] = string(t)
	}
	return dErrors.Validation("eventType",
		fmt.Sprintf("unknown event type %q, expected one of: %s", s, strings.Join(names, " ")))
}

// Actor is the user who performed the action, copied onto the event at
// write time so the trail stays readable after the user record is gone.
type Actor struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// Provenance records where the request came from.
type Provenance struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Event is an immutable audit record.
type Event struct {
	ID           domain.EventID `json:"id"`
	Type         EventType      `json:"eventType"`
	ContractID   string         `json:"contractId,omitempty"`
	ContractName string         `json:"contractName,omitempty"`
	Actor
	Provenance
	Details   Details   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// EventInput is what callers supply to record an event; id and timestamp
// are assigned by the service.
type EventInput struct {
	Type         EventType
	ContractID   string
	ContractName string
	Actor        Actor
	Provenance   Provenance
	Details      Details
}

// Normalize trims free-text identity fields.
func (in *EventInput) Normalize() {
	in.ContractID = strings.TrimSpace(in.ContractID)
	in.ContractName = strings.TrimSpace(in.ContractName)
	in.Actor.UserID = strings.TrimSpace(in.Actor.UserID)
	in.Actor.UserName = strings.TrimSpace(in.Actor.UserName)
	in.Actor.UserEmail = strings.TrimSpace(in.Actor.UserEmail)
}

// Validate checks the event type is known, the details variant matches it
// and is well-formed, and an actor is present.
func (in *EventInput) Validate() error {
	if !in.Type.IsKnown() {
		return UnknownEventType(string(in.Type))
	}
	if in.Details == nil {
		return dErrors.Validation("details", "details are required")
	}
	if in.Details.EventType() != in.Type {
		return dErrors.Validation("details", fmt.Sprintf("details of %s do not match event type %s", in.Details.EventType(), in.Type))
	}
	if err := validation.StructAt("details", in.Details); err != nil {
		return err
	}
	if in.Actor.UserID == "" {
		return dErrors.Validation("userId", "userId is required")
	}
	return nil
}

// NewEvent builds a validated event from input.
func NewEvent(id domain.EventID, in EventInput, now time.Time) (*Event, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Event{
		ID:           id,
		Type:         in.Type,
		ContractID:   in.ContractID,
		ContractName: in.ContractName,
		Actor:        in.Actor,
		Provenance:   in.Provenance,
		Details:      in.Details,
		Timestamp:    now,
	}, nil
}

// Title is a short human label for the event, derived on read.
func (e *Event) Title() string {
	title, _ := e.Details.summary(e)
	return title
}

// Message is a one-line human description of the event, derived on read.
func (e *Event) Message() string {
	_, msg := e.Details.summary(e)
	return msg
}

// SearchText is the lowercased text free-text search matches against.
func (e *Event) SearchText() string {
	title, msg := e.Details.summary(e)
	return strings.ToLower(title + "\n" + msg + "\n" + e.ContractName)
}

// contractLabel names the subject contract for summaries.
func (e *Event) contractLabel() string {
	if e.ContractName != "" {
		return e.ContractName
	}
	if e.ContractID != "" {
		return "contract " + e.ContractID
	}
	return "a contract"
}

func (e *Event) actorLabel() string {
	switch {
	case e.UserName != "":
		return e.UserName
	case e.UserEmail != "":
		return e.UserEmail
	default:
		return e.UserID
	}
}

type eventJSON struct {
	ID           domain.EventID  `json:"id"`
	Type         EventType       `json:"eventType"`
	ContractID   string          `json:"contractId,omitempty"`
	ContractName string          `json:"contractName,omitempty"`
	Actor
	Provenance
	Details   json.RawMessage `json:"details"`
	Timestamp time.Time       `json:"timestamp"`
}

// UnmarshalJSON decodes details into the variant registered for eventType.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	details, err := RestoreDetails(raw.Type, raw.Details)
	if err != nil {
		return err
	}
	*e = Event{
		ID:           raw.ID,
		Type:         raw.Type,
		ContractID:   raw.ContractID,
		ContractName: raw.ContractName,
		Actor:        raw.Actor,
		Provenance:   raw.Provenance,
		Details:      details,
		Timestamp:    raw.Timestamp,
	}
	return nil
}

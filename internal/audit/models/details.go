package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	dErrors "kontrakpro/pkg/domain-errors"
	pstrings "kontrakpro/pkg/platform/strings"
	"kontrakpro/pkg/platform/validation"
)

// Details is the event-type specific payload. The set of implementations is
// closed: summary is unexported, so only this package defines variants.
type Details interface {
	EventType() EventType
	summary(e *Event) (title, message string)
}

// Change is one field-level difference between two versions of a record.
// From is null for added fields, To is null for removed ones.
type Change struct {
	Field string `json:"field" validate:"required"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

type ContractCreated struct {
	Template string   `json:"template,omitempty"`
	Value    *float64 `json:"value,omitempty" validate:"omitempty,gte=0"`
	Currency string   `json:"currency,omitempty" validate:"omitempty,len=3"`
}

type ContractUpdated struct {
	Changes []Change `json:"changes" validate:"min=1,dive"`
}

type ContractShared struct {
	SharedWith []string `json:"sharedWith" validate:"min=1,dive,email"`
	Permission string   `json:"permission" validate:"oneof=view comment edit"`
}

type ContractSigned struct {
	SignerName  string `json:"signerName" validate:"required"`
	SignerEmail string `json:"signerEmail" validate:"required,email"`
	Method      string `json:"method" validate:"oneof=electronic digital wet_ink"`
}

type ContractApproved struct {
	ApproverName string `json:"approverName" validate:"required"`
	Comment      string `json:"comment,omitempty"`
}

type ContractViewed struct {
	DurationSeconds int `json:"durationSeconds" validate:"gte=0"`
}

type AIAnalysisPerformed struct {
	AnalysisType string  `json:"analysisType" validate:"required"`
	RiskScore    float64 `json:"riskScore" validate:"gte=0,lte=100"`
	Findings     int     `json:"findings" validate:"gte=0"`
}

type ContractExported struct {
	Format string `json:"format" validate:"oneof=pdf docx csv json"`
}

type ContractArchived struct {
	Reason string `json:"reason,omitempty"`
}

type PermissionChanged struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
	FromRole     string `json:"fromRole,omitempty"`
	ToRole       string `json:"toRole" validate:"required"`
}

// normalizer is implemented by variants that clean up client input before
// validation.
type normalizer interface {
	normalize()
}

// normalize lowercases recipients and drops repeats.
func (d *ContractShared) normalize() {
	d.SharedWith = pstrings.DedupeAndTrimLower(d.SharedWith)
}

func (*ContractCreated) EventType() EventType     { return EventContractCreated }
func (*ContractUpdated) EventType() EventType     { return EventContractUpdated }
func (*ContractShared) EventType() EventType      { return EventContractShared }
func (*ContractSigned) EventType() EventType      { return EventContractSigned }
func (*ContractApproved) EventType() EventType    { return EventContractApproved }
func (*ContractViewed) EventType() EventType      { return EventContractViewed }
func (*AIAnalysisPerformed) EventType() EventType { return EventAIAnalysisPerformed }
func (*ContractExported) EventType() EventType    { return EventContractExported }
func (*ContractArchived) EventType() EventType    { return EventContractArchived }
func (*PermissionChanged) EventType() EventType   { return EventPermissionChanged }

func (d *ContractCreated) summary(e *Event) (string, string) {
	msg := fmt.Sprintf("%s created %s", e.actorLabel(), e.contractLabel())
	if d.Template != "" {
		msg += " from template " + d.Template
	}
	return "Contract created", msg
}

func (d *ContractUpdated) summary(e *Event) (string, string) {
	fields := make([]string, len(d.Changes))
	for i, c := range d.Changes {
		fields[i] = c.Field
	}
	return "Contract updated", fmt.Sprintf("%s updated %s: %s", e.actorLabel(), e.contractLabel(), strings.Join(fields, ", "))
}

func (d *ContractShared) summary(e *Event) (string, string) {
	return "Contract shared", fmt.Sprintf("%s shared %s with %s (%s)",
		e.actorLabel(), e.contractLabel(), strings.Join(d.SharedWith, ", "), d.Permission)
}

func (d *ContractSigned) summary(e *Event) (string, string) {
	return "Contract signed", fmt.Sprintf("%s signed %s via %s", d.SignerName, e.contractLabel(), strings.ReplaceAll(d.Method, "_", " "))
}

func (d *ContractApproved) summary(e *Event) (string, string) {
	msg := fmt.Sprintf("%s approved %s", d.ApproverName, e.contractLabel())
	if d.Comment != "" {
		msg += ": " + d.Comment
	}
	return "Contract approved", msg
}

func (d *ContractViewed) summary(e *Event) (string, string) {
	return "Contract viewed", fmt.Sprintf("%s viewed %s for %ds", e.actorLabel(), e.contractLabel(), d.DurationSeconds)
}

func (d *AIAnalysisPerformed) summary(e *Event) (string, string) {
	return "AI analysis performed", fmt.Sprintf("%s analysis of %s scored risk %.0f with %d findings",
		d.AnalysisType, e.contractLabel(), d.RiskScore, d.Findings)
}

func (d *ContractExported) summary(e *Event) (string, string) {
	return "Contract exported", fmt.Sprintf("%s exported %s as %s", e.actorLabel(), e.contractLabel(), strings.ToUpper(d.Format))
}

func (d *ContractArchived) summary(e *Event) (string, string) {
	msg := fmt.Sprintf("%s archived %s", e.actorLabel(), e.contractLabel())
	if d.Reason != "" {
		msg += ": " + d.Reason
	}
	return "Contract archived", msg
}

func (d *PermissionChanged) summary(e *Event) (string, string) {
	from := d.FromRole
	if from == "" {
		from = "no access"
	}
	return "Permission changed", fmt.Sprintf("%s changed %s on %s from %s to %s",
		e.actorLabel(), d.TargetUserID, e.contractLabel(), from, d.ToRole)
}

// DecodeDetails decodes raw into the variant for t and validates it.
// Unknown fields are rejected so malformed payloads fail loudly.
func DecodeDetails(t EventType, raw json.RawMessage) (Details, error) {
	newDetails, ok := detailShapes[t]
	if !ok {
		return nil, UnknownEventType(string(t))
	}
	d := newDetails()
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(d); err != nil {
		return nil, dErrors.Validation("details", fmt.Sprintf("details do not match %s: %v", t, err))
	}
	if n, ok := d.(normalizer); ok {
		n.normalize()
	}
	if err := validation.StructAt("details", d); err != nil {
		return nil, err
	}
	return d, nil
}

// RestoreDetails decodes persisted details without re-validating them.
// Stored events were validated on write; rules tightened later must not make
// history unreadable.
func RestoreDetails(t EventType, raw json.RawMessage) (Details, error) {
	newDetails, ok := detailShapes[t]
	if !ok {
		return nil, fmt.Errorf("stored event has unknown type %q", t)
	}
	d := newDetails()
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode stored %s details: %w", t, err)
	}
	return d, nil
}

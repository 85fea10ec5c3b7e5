package handler

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kontrakpro/internal/audit/models"
	dErrors "kontrakpro/pkg/domain-errors"
)

// LogEventRequest is the body of POST /audit-events. Actor fields are only
// read when no principal is attached, which happens only in deployments
// without a signing key.
type LogEventRequest struct {
	EventType    string          `json:"eventType" validate:"required"`
	ContractID   string          `json:"contractId"`
	ContractName string          `json:"contractName"`
	UserID       string          `json:"userId"`
	UserName     string          `json:"userName"`
	UserEmail    string          `json:"userEmail" validate:"omitempty,email"`
	Details      json.RawMessage `json:"details"`
}

func (r *LogEventRequest) Prepare() {
	r.EventType = strings.TrimSpace(r.EventType)
	r.ContractID = strings.TrimSpace(r.ContractID)
	r.ContractName = strings.TrimSpace(r.ContractName)
	r.UserID = strings.TrimSpace(r.UserID)
	r.UserName = strings.TrimSpace(r.UserName)
	r.UserEmail = strings.TrimSpace(r.UserEmail)
}

func (r *LogEventRequest) Validate() error {
	if !models.EventType(r.EventType).IsKnown() {
		return models.UnknownEventType(r.EventType)
	}
	return nil
}

// DiffRequest is the body of POST /audit-events/diff.
type DiffRequest struct {
	Old models.Snapshot `json:"old"`
	New models.Snapshot `json:"new"`
}

type DiffResponse struct {
	Changes []models.Change `json:"changes"`
}

// parseFilter reads the shared filter parameters of list and export.
func parseFilter(v url.Values) (models.Filter, error) {
	f := models.Filter{
		EventType:  models.EventType(v.Get("eventType")),
		UserID:     v.Get("userId"),
		ContractID: v.Get("contractId"),
		Search:     v.Get("search"),
	}
	var err error
	if f.From, err = parseTime(v, "from"); err != nil {
		return models.Filter{}, err
	}
	if f.To, err = parseTime(v, "to"); err != nil {
		return models.Filter{}, err
	}
	return f, nil
}

func parseQuery(v url.Values) (models.Query, error) {
	f, err := parseFilter(v)
	if err != nil {
		return models.Query{}, err
	}
	q := models.Query{Filter: f}
	if q.Page, err = parseInt(v, "page"); err != nil {
		return models.Query{}, err
	}
	if q.Limit, err = parseInt(v, "limit"); err != nil {
		return models.Query{}, err
	}
	return q, nil
}

func parseTime(v url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.Validation(key, key+" must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func parseInt(v url.Values, key string) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if key == "limit" {
			return 0, &dErrors.Error{Code: dErrors.CodeInvalidPageSize, Message: "limit must be an integer", Field: key}
		}
		return 0, dErrors.Validation(key, key+" must be an integer")
	}
	return n, nil
}

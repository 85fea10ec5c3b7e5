package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "kontrakpro/pkg/domain-errors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// Filter selects audit events. Set predicates combine with AND; zero values
// are ignored.
type Filter struct {
	From       *time.Time
	To         *time.Time
	EventType  EventType
	UserID     string
	ContractID string
	Search     string
}

// Matches reports whether e satisfies every predicate of f. Search compares
// against e.SearchText and expects a lowercased needle; use Normalize first.
func (f Filter) Matches(e *Event) bool {
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	if f.EventType != "" && e.Type != f.EventType {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ContractID != "" && e.ContractID != f.ContractID {
		return false
	}
	if f.Search != "" && !strings.Contains(e.SearchText(), f.Search) {
		return false
	}
	return true
}

// Normalize trims predicates and lowercases the search needle.
func (f *Filter) Normalize() {
	f.EventType = EventType(strings.TrimSpace(string(f.EventType)))
	f.UserID = strings.TrimSpace(f.UserID)
	f.ContractID = strings.TrimSpace(f.ContractID)
	f.Search = strings.ToLower(strings.TrimSpace(f.Search))
}

// Validate rejects unknown event types and inverted date ranges.
func (f Filter) Validate() error {
	if f.EventType != "" {
		if _, err := ParseEventType(string(f.EventType)); err != nil {
			return err
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return dErrors.Validation("from", "from must not be after to")
	}
	return nil
}

// Query is a filter plus the page to return.
type Query struct {
	Filter
	Page  int
	Limit int
}

// ApplyDefaults fills an unset page or limit. The default limit never
// exceeds maxLimit.
func (q *Query) ApplyDefaults(maxLimit int) {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = min(DefaultLimit, maxLimit)
	}
}

// Validate checks the filter and bounds the page size by maxLimit.
func (q Query) Validate(maxLimit int) error {
	if q.Page < 1 {
		return dErrors.Validation("page", "page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > maxLimit {
		return &dErrors.Error{
			Code:    dErrors.CodeInvalidPageSize,
			Message: fmt.Sprintf("limit must be between 1 and %d", maxLimit),
			Field:   "limit",
		}
	}
	return q.Filter.Validate()
}

// Offset is the number of matching events before this page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pagination describes the returned page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes total pages for total matching events.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// EventPage is one page of query results.
type EventPage struct {
	Events     []*Event   `json:"events"`
	Pagination Pagination `json:"pagination"`
}

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat accepts csv or json; empty means csv.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportJSON:
		return ExportJSON, nil
	default:
		return "", dErrors.Validation("format", "format must be one of: csv json")
	}
}

// ContentType is the HTTP media type of the encoding.
func (f ExportFormat) ContentType() string {
	if f == ExportJSON {
		return "application/json"
	}
	return "text/csv"
}

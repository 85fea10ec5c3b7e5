package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/attribute"

	"kontrakpro/internal/audit/models"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/storecall"
	"kontrakpro/pkg/platform/tracing"
)

var csvHeader = []string{
	"ID",
	"Timestamp (UTC)",
	"Event Type",
	"Title",
	"Message",
	"Contract ID",
	"Contract Name",
	"User ID",
	"User Name",
	"User Email",
	"IP Address",
	"Client",
	"Details",
}

// Export renders every event matching f, newest first. Exports larger than
// the configured row cap are refused rather than truncated.
func (s *Service) Export(ctx context.Context, f models.Filter, format models.ExportFormat) (_ []byte, err error) {
	ctx, end := tracing.StartSpan(ctx, "audit.export", attribute.String("format", string(format)))
	defer func() { end(err) }()

	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	events, err := s.collect(ctx, f)
	if err != nil {
		return nil, err
	}

	var out []byte
	switch format {
	case models.ExportCSV:
		out, err = exportCSV(events)
	case models.ExportJSON:
		out, err = exportJSON(events)
	default:
		return nil, dErrors.Validation("format", fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render export")
	}

	s.logger.InfoContext(ctx, "audit_exported",
		"log_type", "audit",
		"format", string(format),
		"rows", len(events),
	)
	if s.metrics != nil {
		s.metrics.AddExportedRows(len(events))
	}
	return out, nil
}

// collect walks the filter page by page at the maximum page size.
func (s *Service) collect(ctx context.Context, f models.Filter) ([]*models.Event, error) {
	var all []*models.Event
	for page := 1; ; page++ {
		q := models.Query{Filter: f, Page: page, Limit: s.maxPageSize}
		type result struct {
			events []*models.Event
			total  int
		}
		res, err := storecall.Do(ctx, s.storeTimeout, resourceAuditEvent, func(ctx context.Context) (result, error) {
			events, total, err := s.store.Query(ctx, q)
			return result{events: events, total: total}, err
		})
		if err != nil {
			return nil, err
		}
		if res.total > s.maxExportRows {
			return nil, dErrors.Validation("filter",
				fmt.Sprintf("export matches %d events, more than the limit of %d; narrow the filter", res.total, s.maxExportRows))
		}
		if all == nil {
			all = make([]*models.Event, 0, res.total)
		}
		all = append(all, res.events...)
		if len(res.events) == 0 || len(all) >= res.total {
			return all, nil
		}
	}
}

func exportCSV(events []*models.Event) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	for _, e := range events {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("encode details of %s: %w", e.ID, err)
		}
		row := []string{
			e.ID.String(),
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.Type),
			e.Title(),
			e.Message(),
			e.ContractID,
			e.ContractName,
			e.UserID,
			e.UserName,
			e.UserEmail,
			e.IPAddress,
			clientLabel(e.UserAgent),
			string(details),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer: %w", err)
	}
	return buf.Bytes(), nil
}

type exportEvent struct {
	*models.Event
	Title   string `json:"title"`
	Message string `json:"message"`
	Client  string `json:"client,omitempty"`
}

func exportJSON(events []*models.Event) ([]byte, error) {
	out := make([]exportEvent, len(events))
	for i, e := range events {
		out[i] = exportEvent{
			Event:   e,
			Title:   e.Title(),
			Message: e.Message(),
			Client:  clientLabel(e.UserAgent),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal JSON: %w", err)
	}
	return data, nil
}

// clientLabel summarizes a User-Agent as "Browser Version on OS".
func clientLabel(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot: " + name
	}
	name, version := ua.Browser()
	label := strings.TrimSpace(name + " " + version)
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	return label
}

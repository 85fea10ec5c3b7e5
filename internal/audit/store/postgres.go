package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kontrakpro/internal/audit/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
	txcontext "kontrakpro/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists audit events in the append-only audit_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins a caller's transaction when one is carried in ctx.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts e. The derived search text is stored alongside so free-text
// search runs in the database.
func (s *PostgresStore) Append(ctx context.Context, e *models.Event) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, contract_id, contract_name,
			user_id, user_name, user_email, ip_address, user_agent,
			details, search_text, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		string(e.Type),
		e.ContractID,
		e.ContractName,
		e.UserID,
		e.UserName,
		e.UserEmail,
		e.IPAddress,
		e.UserAgent,
		details,
		e.SearchText(),
		e.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("audit event %s: %w", e.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns one page of matching events and the total match count.
func (s *PostgresStore) Query(ctx context.Context, q models.Query) ([]*models.Event, int, error) {
	where, args := whereClause(q.Filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_events` + where
	if err := s.execer(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}
	if total == 0 {
		return []*models.Event{}, 0, nil
	}

	pageArgs := append(args, q.Limit, q.Offset())
	selectQuery := fmt.Sprintf(`
		SELECT id, event_type, contract_id, contract_name,
			user_id, user_name, user_email, ip_address, user_agent,
			details, occurred_at
		FROM audit_events%s
		ORDER BY occurred_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := s.execer(ctx).QueryContext(ctx, selectQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0, q.Limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, total, nil
}

func whereClause(f models.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= $%d", *f.To)
	}
	if f.EventType != "" {
		add("event_type = $%d", string(f.EventType))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.ContractID != "" {
		add("contract_id = $%d", f.ContractID)
	}
	if f.Search != "" {
		add(`search_text LIKE $%d ESCAPE '\'`, "%"+escapeLike(f.Search)+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		id        uuid.UUID
		eventType string
		details   []byte
		e         models.Event
	)
	err := row.Scan(
		&id, &eventType, &e.ContractID, &e.ContractName,
		&e.UserID, &e.UserName, &e.UserEmail, &e.IPAddress, &e.UserAgent,
		&details, &e.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("scan audit event: %w", err)
	}
	e.ID = domain.EventID(id)
	e.Type = models.EventType(eventType)
	e.Timestamp = e.Timestamp.UTC()
	e.Details, err = models.RestoreDetails(e.Type, details)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

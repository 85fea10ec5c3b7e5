package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kontrakpro/internal/reminder/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
	txcontext "kontrakpro/pkg/platform/tx"
)

const uniqueViolation = "23505"

const reminderColumns = `id, title, message, resource_type, resource_id, due_date,
	status, created_at, completed_at, cancelled_at`

// PostgresStore persists reminders in the reminders table.
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

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Reminder) error {
	query := `INSERT INTO reminders (` + reminderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Title,
		r.Message,
		r.ResourceType,
		r.ResourceID,
		r.DueDate,
		string(r.Status),
		r.CreatedAt,
		r.CompletedAt,
		r.CancelledAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("reminder %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ReminderID) (*models.Reminder, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, uuid.UUID(id))
	return scanReminder(row)
}

// List returns reminders with the given stored status, or all when status is
// empty, due date ascending.
func (s *PostgresStore) List(ctx context.Context, status models.Status) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY due_date ASC, id ASC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Reminder, 0)
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE so racing transitions on
// one reminder serialize; the loser's validate sees the committed state.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ReminderID, validate func(*models.Reminder) error, mutate func(*models.Reminder)) (*models.Reminder, error) {
	var out *models.Reminder
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		row := s.execer(ctx).QueryRowContext(ctx,
			`SELECT `+reminderColumns+` FROM reminders WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		r, err := scanReminder(row)
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)

		_, err = s.execer(ctx).ExecContext(ctx,
			`UPDATE reminders SET status = $2, completed_at = $3, cancelled_at = $4 WHERE id = $1`,
			uuid.UUID(r.ID), string(r.Status), r.CompletedAt, r.CancelledAt)
		if err != nil {
			return fmt.Errorf("update reminder: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ReminderID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	var (
		id          uuid.UUID
		status      string
		completedAt sql.NullTime
		cancelledAt sql.NullTime
		r           models.Reminder
	)
	err := row.Scan(&id, &r.Title, &r.Message, &r.ResourceType, &r.ResourceID, &r.DueDate,
		&status, &r.CreatedAt, &completedAt, &cancelledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan reminder: %w", err)
	}
	r.ID = domain.ReminderID(id)
	r.Status = models.Status(status)
	r.DueDate = r.DueDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.CompletedAt = utcPtr(completedAt)
	r.CancelledAt = utcPtr(cancelledAt)
	return &r, nil
}

func utcPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
	txcontext "kontrakpro/pkg/platform/tx"
)

const uniqueViolation = "23505"

const notificationColumns = `id, type, title, message, priority, status,
	resource_type, resource_id, dedupe_key, created_at, read_at`

// PostgresStore persists notifications in the notifications table.
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

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(n.ID),
		n.Type,
		n.Title,
		n.Message,
		string(n.Priority),
		string(n.Status),
		n.ResourceType,
		n.ResourceID,
		nullString(n.DedupeKey),
		n.CreatedAt,
		n.ReadAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts n unless its dedupe key is taken, in which case the
// existing notification is returned with created=false.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, n *models.Notification) (*models.Notification, bool, error) {
	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (dedupe_key) DO NOTHING`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(n.ID),
		n.Type,
		n.Title,
		n.Message,
		string(n.Priority),
		string(n.Status),
		n.ResourceType,
		n.ResourceID,
		nullString(n.DedupeKey),
		n.CreatedAt,
		n.ReadAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert notification: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 1 {
		return n.Clone(), true, nil
	}

	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE dedupe_key = $1`, n.DedupeKey)
	existing, err := scanNotification(row)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, uuid.UUID(id))
	return scanNotification(row)
}

// List returns matching notifications newest first.
func (s *PostgresStore) List(ctx context.Context, f models.ListFilter) ([]*models.Notification, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountUnread(ctx context.Context) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE status = $1`, string(models.StatusUnread)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate,
// and writes the result back in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, id domain.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error) {
	var out *models.Notification
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		row := s.execer(ctx).QueryRowContext(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		n, err := scanNotification(row)
		if err != nil {
			return err
		}
		if err := validate(n); err != nil {
			return err
		}
		mutate(n)

		_, err = s.execer(ctx).ExecContext(ctx,
			`UPDATE notifications SET status = $2, read_at = $3 WHERE id = $1`,
			uuid.UUID(n.ID), string(n.Status), n.ReadAt)
		if err != nil {
			return fmt.Errorf("update notification: %w", err)
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		id        uuid.UUID
		priority  string
		status    string
		dedupeKey sql.NullString
		readAt    sql.NullTime
		n         models.Notification
	)
	err := row.Scan(&id, &n.Type, &n.Title, &n.Message, &priority, &status,
		&n.ResourceType, &n.ResourceID, &dedupeKey, &n.CreatedAt, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = domain.NotificationID(id)
	n.Priority = models.Priority(priority)
	n.Status = models.Status(status)
	n.DedupeKey = dedupeKey.String
	n.CreatedAt = n.CreatedAt.UTC()
	if readAt.Valid {
		t := readAt.Time.UTC()
		n.ReadAt = &t
	}
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

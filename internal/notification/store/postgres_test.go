package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

var rowColumns = []string{
	"id", "type", "title", "message", "priority", "status",
	"resource_type", "resource_id", "dedupe_key", "created_at", "read_at",
}

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock
	s.store = NewPostgres(db)
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresStoreSuite) row(id domain.NotificationID, status string, readAt any) *sqlmock.Rows {
	return sqlmock.NewRows(rowColumns).
		AddRow(uuid.UUID(id).String(), "general", "Renewal due", "", "high", status,
			"contract", "c-1", nil, s.now, readAt)
}

func (s *PostgresStoreSuite) TestCreate() {
	n, err := models.NewNotification(domain.NewNotificationID(), models.CreateInput{Title: "Renewal due"}, s.now)
	s.Require().NoError(err)

	s.Run("inserts without dedupe key as NULL", func() {
		s.mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "general", "Renewal due", "", "medium", "unread", "", "",
				sql.NullString{}, s.now, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Require().NoError(s.store.Create(s.ctx, n))
	})

	s.Run("unique violation is a conflict", func() {
		s.mock.ExpectExec("INSERT INTO notifications").
			WillReturnError(&pq.Error{Code: uniqueViolation})
		s.ErrorIs(s.store.Create(s.ctx, n), sentinel.ErrConflict)
	})
}

func (s *PostgresStoreSuite) TestCreateIfAbsent() {
	n, err := models.NewNotification(domain.NewNotificationID(),
		models.CreateInput{Title: "Renewal due", DedupeKey: "reminder_overdue:r-1"}, s.now)
	s.Require().NoError(err)

	s.Run("inserted", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (dedupe_key) DO NOTHING")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, created, err := s.store.CreateIfAbsent(s.ctx, n)
		s.Require().NoError(err)
		s.True(created)
		s.Equal(n.ID, got.ID)
	})

	s.Run("existing row returned", func() {
		existing := domain.NewNotificationID()
		s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (dedupe_key) DO NOTHING")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		s.mock.ExpectQuery("WHERE dedupe_key = \\$1").
			WithArgs("reminder_overdue:r-1").
			WillReturnRows(s.row(existing, "unread", nil))

		got, created, err := s.store.CreateIfAbsent(s.ctx, n)
		s.Require().NoError(err)
		s.False(created)
		s.Equal(existing, got.ID)
	})
}

func (s *PostgresStoreSuite) TestFindByID() {
	s.Run("maps no rows to not found", func() {
		s.mock.ExpectQuery("SELECT .* FROM notifications WHERE id = \\$1").
			WillReturnRows(sqlmock.NewRows(rowColumns))
		_, err := s.store.FindByID(s.ctx, domain.NewNotificationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("scans read timestamp", func() {
		id := domain.NewNotificationID()
		readAt := s.now.Add(time.Minute)
		s.mock.ExpectQuery("SELECT .* FROM notifications WHERE id = \\$1").
			WillReturnRows(s.row(id, "read", readAt))

		got, err := s.store.FindByID(s.ctx, id)
		s.Require().NoError(err)
		s.True(got.IsRead())
		s.Require().NotNil(got.ReadAt)
		s.Equal(readAt, *got.ReadAt)
		s.Equal("contract", got.ResourceType)
	})
}

func (s *PostgresStoreSuite) TestList() {
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND type = $2 ORDER BY created_at DESC, id DESC")).
		WithArgs("unread", "general").
		WillReturnRows(s.row(domain.NewNotificationID(), "unread", nil))

	got, err := s.store.List(s.ctx, models.ListFilter{Status: models.StatusUnread, Type: "general"})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *PostgresStoreSuite) TestCountUnread() {
	s.mock.ExpectQuery("SELECT COUNT").
		WithArgs("unread").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := s.store.CountUnread(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, count)
}

func (s *PostgresStoreSuite) TestExecute() {
	s.Run("locks, mutates and commits", func() {
		id := domain.NewNotificationID()
		s.mock.ExpectBegin()
		s.mock.ExpectQuery("FOR UPDATE").
			WithArgs(uuid.UUID(id)).
			WillReturnRows(s.row(id, "unread", nil))
		s.mock.ExpectExec("UPDATE notifications SET status").
			WithArgs(uuid.UUID(id), "read", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.mock.ExpectCommit()

		got, err := s.store.Execute(s.ctx, id,
			func(*models.Notification) error { return nil },
			func(n *models.Notification) { n.ApplyRead(s.now) })
		s.Require().NoError(err)
		s.True(got.IsRead())
	})

	s.Run("rolls back on validation failure", func() {
		id := domain.NewNotificationID()
		s.mock.ExpectBegin()
		s.mock.ExpectQuery("FOR UPDATE").
			WillReturnRows(s.row(id, "unread", nil))
		s.mock.ExpectRollback()

		errAlreadyRead := errors.New("already read")
		_, err := s.store.Execute(s.ctx, id,
			func(*models.Notification) error { return errAlreadyRead },
			func(*models.Notification) {})
		s.ErrorIs(err, errAlreadyRead)
	})
}

package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kontrakpro/internal/reminder/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

var rowColumns = []string{
	"id", "title", "message", "resource_type", "resource_id", "due_date",
	"status", "created_at", "completed_at", "cancelled_at",
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
	s.now = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresStoreSuite) pendingRow(id domain.ReminderID) *sqlmock.Rows {
	return sqlmock.NewRows(rowColumns).
		AddRow(uuid.UUID(id).String(), "Renew", "", "contract", "c-1", s.now, "pending", s.now, nil, nil)
}

func (s *PostgresStoreSuite) TestCreate() {
	r := &models.Reminder{
		ID: domain.NewReminderID(), Title: "Renew", ResourceType: "contract", ResourceID: "c-1",
		DueDate: s.now, Status: models.StatusPending, CreatedAt: s.now,
	}
	s.mock.ExpectExec("INSERT INTO reminders").
		WithArgs(uuid.UUID(r.ID), "Renew", "", "contract", "c-1", s.now, "pending", s.now, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.Require().NoError(s.store.Create(s.ctx, r))
}

func (s *PostgresStoreSuite) TestList() {
	s.Run("filters by stored status", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY due_date ASC, id ASC")).
			WithArgs("pending").
			WillReturnRows(s.pendingRow(domain.NewReminderID()))

		got, err := s.store.List(s.ctx, models.StatusPending)
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	s.Run("all statuses", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM reminders ORDER BY due_date ASC")).
			WillReturnRows(sqlmock.NewRows(rowColumns))

		got, err := s.store.List(s.ctx, "")
		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})
}

func (s *PostgresStoreSuite) TestExecute() {
	s.Run("completes under row lock", func() {
		id := domain.NewReminderID()
		s.mock.ExpectBegin()
		s.mock.ExpectQuery("FOR UPDATE").WithArgs(uuid.UUID(id)).WillReturnRows(s.pendingRow(id))
		s.mock.ExpectExec("UPDATE reminders SET status").
			WithArgs(uuid.UUID(id), "completed", sqlmock.AnyArg(), nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.mock.ExpectCommit()

		got, err := s.store.Execute(s.ctx, id,
			func(r *models.Reminder) error { return r.RequirePending() },
			func(r *models.Reminder) { r.ApplyComplete(s.now) })
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, got.Status)
	})

	s.Run("conflict rolls back", func() {
		id := domain.NewReminderID()
		s.mock.ExpectBegin()
		s.mock.ExpectQuery("FOR UPDATE").WillReturnRows(
			sqlmock.NewRows(rowColumns).
				AddRow(uuid.UUID(id).String(), "Renew", "", "", "c-1", s.now, "cancelled", s.now, nil, s.now))
		s.mock.ExpectRollback()

		_, err := s.store.Execute(s.ctx, id,
			func(r *models.Reminder) error { return r.RequirePending() },
			func(r *models.Reminder) { r.ApplyComplete(s.now) })
		s.Error(err)
	})

	s.Run("missing row", func() {
		s.mock.ExpectBegin()
		s.mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(rowColumns))
		s.mock.ExpectRollback()

		_, err := s.store.Execute(s.ctx, domain.NewReminderID(),
			func(*models.Reminder) error { return nil },
			func(*models.Reminder) {})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestDelete() {
	s.mock.ExpectExec("DELETE FROM reminders").WillReturnResult(sqlmock.NewResult(0, 0))
	s.ErrorIs(s.store.Delete(s.ctx, domain.NewReminderID()), sentinel.ErrNotFound)
}

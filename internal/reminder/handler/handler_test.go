package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kontrakpro/internal/reminder/handler/mocks"
	"kontrakpro/internal/reminder/models"
	"kontrakpro/internal/reminder/service"
	"kontrakpro/internal/reminder/store"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
)

var now = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

type ReminderHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestReminderHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReminderHandlerSuite))
}

func (s *ReminderHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	s.router = newRouter(s.service)
}

func newRouter(svc Service) http.Handler {
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (s *ReminderHandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func (s *ReminderHandlerSuite) errorBody(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func view(id domain.ReminderID, status models.Status, derived models.DerivedStatus) *models.View {
	return &models.View{
		Reminder: models.Reminder{
			ID: id, Title: "Renew", ResourceID: "c-1", DueDate: now, Status: status, CreatedAt: now,
		},
		DerivedStatus: derived,
	}
}

func (s *ReminderHandlerSuite) TestCreate() {
	s.Run("created", func() {
		s.service.EXPECT().Create(gomock.Any(), models.CreateInput{
			Title: "Renew", ResourceType: "contract", ResourceID: "c-1", DueDate: "2026-06-20T00:00:00Z",
		}).Return(view(domain.NewReminderID(), models.StatusPending, models.DerivedUpcoming), nil)

		rec := s.do(http.MethodPost, "/reminders",
			`{"title":"Renew","resourceType":"contract","resourceId":"c-1","dueDate":"2026-06-20T00:00:00Z"}`)
		s.Equal(http.StatusCreated, rec.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("pending", resp["status"])
		s.Equal("upcoming", resp["derivedStatus"])
		s.Nil(resp["completedAt"])
	})

	s.Run("unparseable due date", func() {
		rec := s.do(http.MethodPost, "/reminders", `{"title":"Renew","resourceId":"c-1","dueDate":"soon"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("dueDate", s.errorBody(rec)["field"])
	})

	s.Run("missing resource", func() {
		rec := s.do(http.MethodPost, "/reminders", `{"title":"Renew","dueDate":"2026-06-20T00:00:00Z"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("resourceId", s.errorBody(rec)["field"])
	})
}

func (s *ReminderHandlerSuite) TestList() {
	s.Run("passes derived status", func() {
		s.service.EXPECT().List(gomock.Any(), models.ListOverdue).Return([]models.View{}, nil)
		rec := s.do(http.MethodGet, "/reminders?status=overdue", "")
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`[]`, rec.Body.String())
	})

	s.Run("defaults to all", func() {
		s.service.EXPECT().List(gomock.Any(), models.ListAll).Return([]models.View{}, nil)
		rec := s.do(http.MethodGet, "/reminders", "")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unknown status", func() {
		rec := s.do(http.MethodGet, "/reminders?status=pending", "")
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("status", s.errorBody(rec)["field"])
	})
}

func (s *ReminderHandlerSuite) TestTransitions() {
	s.Run("complete", func() {
		id := domain.NewReminderID()
		s.service.EXPECT().Complete(gomock.Any(), id).
			Return(view(id, models.StatusCompleted, models.DerivedCompleted), nil)

		rec := s.do(http.MethodPost, "/reminders/"+id.String()+"/complete", "")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("cancel after completion is a conflict with current state", func() {
		id := domain.NewReminderID()
		s.service.EXPECT().Cancel(gomock.Any(), id).
			Return(nil, dErrors.Conflict("completed", "reminder is already completed"))

		rec := s.do(http.MethodPost, "/reminders/"+id.String()+"/cancel", "")
		s.Equal(http.StatusConflict, rec.Code)
		body := s.errorBody(rec)
		s.Equal("conflict", body["error"])
		s.Equal("completed", body["current_state"])
	})

	s.Run("missing reminder", func() {
		s.service.EXPECT().Get(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "reminder not found"))

		rec := s.do(http.MethodGet, "/reminders/"+domain.NewReminderID().String(), "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *ReminderHandlerSuite) TestDelete() {
	s.Run("no content", func() {
		id := domain.NewReminderID()
		s.service.EXPECT().Delete(gomock.Any(), id).Return(nil)

		rec := s.do(http.MethodDelete, "/reminders/"+id.String(), "")
		s.Equal(http.StatusNoContent, rec.Code)
		s.Empty(rec.Body.String())
	})

	s.Run("not found", func() {
		s.service.EXPECT().Delete(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeNotFound, "reminder not found"))

		rec := s.do(http.MethodDelete, "/reminders/"+domain.NewReminderID().String(), "")
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed id", func() {
		rec := s.do(http.MethodDelete, "/reminders/42", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func TestRacingCompleteAndCancelOverHTTP(t *testing.T) {
	svc := service.New(store.NewInMemory(), clock.Fake(now))
	router := newRouter(svc)

	v, err := svc.Create(t.Context(), models.CreateInput{
		Title: "Countersign", ResourceID: "c-3", DueDate: now.Format(time.RFC3339),
	})
	require.NoError(t, err)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i, action := range []string{"complete", "cancel"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reminders/"+v.ID.String()+"/"+action, nil))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)
}

package handler

import (
	"context"
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

	"kontrakpro/internal/notification/handler/mocks"
	"kontrakpro/internal/notification/models"
	"kontrakpro/internal/notification/service"
	"kontrakpro/internal/notification/store"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/testutil"
)

var created = time.Date(2026, 4, 3, 12, 0, 0, 0, time.UTC)

type NotificationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestNotificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(NotificationHandlerSuite))
}

func (s *NotificationHandlerSuite) SetupTest() {
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

func (s *NotificationHandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func (s *NotificationHandlerSuite) errorBody(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sample(id domain.NotificationID) *models.Notification {
	n, _ := models.NewNotification(id, models.CreateInput{Title: "Contract signed"}, created)
	return n
}

func (s *NotificationHandlerSuite) TestCreate() {
	s.Run("passes trimmed input", func() {
		s.service.EXPECT().Create(gomock.Any(), models.CreateInput{
			Title:        "Renewal due",
			Priority:     models.PriorityHigh,
			ResourceType: "contract",
			ResourceID:   "c-1",
		}).Return(sample(domain.NewNotificationID()), nil)

		rec := s.do(http.MethodPost, "/notifications",
			`{"title":" Renewal due ","priority":"HIGH","resourceType":"contract","resourceId":"c-1"}`)
		s.Equal(http.StatusCreated, rec.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("unread", resp["status"])
		s.Nil(resp["readAt"])
	})

	s.Run("missing title", func() {
		rec := s.do(http.MethodPost, "/notifications", `{"message":"no title"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("title", s.errorBody(rec)["field"])
	})

	s.Run("invalid priority", func() {
		rec := s.do(http.MethodPost, "/notifications", `{"title":"x","priority":"urgent"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("priority", s.errorBody(rec)["field"])
	})
}

func (s *NotificationHandlerSuite) TestList() {
	s.service.EXPECT().List(gomock.Any(), models.ListFilter{Status: "unread", Type: "contract_signed"}).
		Return([]*models.Notification{}, nil)

	rec := s.do(http.MethodGet, "/notifications?status=unread&type=contract_signed", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())
}

func (s *NotificationHandlerSuite) TestMarkRead() {
	s.Run("ok", func() {
		id := domain.NewNotificationID()
		n := sample(id)
		n.ApplyRead(created.Add(time.Minute))
		s.service.EXPECT().MarkRead(gomock.Any(), id).Return(n, nil)

		rec := s.do(http.MethodPatch, "/notifications/"+id.String()+"/read", "")
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"status":"read"`)
	})

	s.Run("not found", func() {
		s.service.EXPECT().MarkRead(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "notification not found"))

		rec := s.do(http.MethodPatch, "/notifications/"+domain.NewNotificationID().String()+"/read", "")
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("not_found", s.errorBody(rec)["error"])
	})

	s.Run("malformed id", func() {
		rec := s.do(http.MethodPatch, "/notifications/not-a-uuid/read", "")
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("id", s.errorBody(rec)["field"])
	})
}

func (s *NotificationHandlerSuite) TestMarkAllRead() {
	ok := domain.NewNotificationID()
	bad := domain.NewNotificationID()
	s.service.EXPECT().MarkAllRead(gomock.Any()).Return(&models.MarkAllResult{
		Succeeded: []domain.NotificationID{ok},
		Failed:    []domain.NotificationID{bad},
		Errors:    map[string]dErrors.Code{bad.String(): dErrors.CodeTimeout},
	}, nil)

	rec := s.do(http.MethodPost, "/notifications/read-all", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"succeeded":["`+ok.String()+`"],"failed":["`+bad.String()+`"],"errors":{"`+bad.String()+`":"timeout"}}`,
		rec.Body.String())

	var plain struct {
		Succeeded []string `json:"succeeded"`
		Failed    []string `json:"failed"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &plain))
	s.Equal([]string{bad.String()}, plain.Failed)
}

func (s *NotificationHandlerSuite) TestUnreadCount() {
	s.service.EXPECT().UnreadCount(gomock.Any()).Return(3, nil)

	rec := s.do(http.MethodGet, "/notifications/unread-count", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"count":3}`, rec.Body.String())
}

func TestConcurrentMarkReadOverHTTP(t *testing.T) {
	clk := clock.Fake(created)
	svc := service.New(store.NewInMemory(), clk)
	router := newRouter(svc)

	n, err := svc.Create(context.Background(), models.CreateInput{Title: "Contract approved"})
	require.NoError(t, err)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/notifications/"+n.ID.String()+"/read", nil))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	count, err := svc.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReadAllClearsUnreadCount(t *testing.T) {
	router := newRouter(service.New(store.NewInMemory(), clock.Fake(created)))

	for _, title := range []string{"Contract shared", "Contract signed", "Contract approved"} {
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/notifications",
			map[string]string{"title": title, "priority": "low"}))
		testutil.AssertStatus(t, rec, http.StatusCreated)
	}

	rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/notifications/unread-count", nil))
	testutil.AssertJSONContains(t, rec, "count", float64(3))

	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/notifications/read-all", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)
	result := testutil.UnmarshalResponse[models.MarkAllResult](t, rec)
	assert.Len(t, result.Succeeded, 3)
	assert.Empty(t, result.Failed)

	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/notifications/unread-count", nil))
	testutil.AssertJSONContains(t, rec, "count", float64(0))

	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/notifications",
		map[string]string{"title": "", "priority": "low"}))
	testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation_error")
}

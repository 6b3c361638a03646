package emaillogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/grantportal/backend/internal/models"
)

type fakeStore struct {
	status string
	limit  int
	err    error
}

func (f *fakeStore) ListRecent(_ context.Context, status string, limit int) ([]*models.EmailLog, error) {
	f.status, f.limit = status, limit
	if f.err != nil {
		return nil, f.err
	}
	return []*models.EmailLog{{EmailType: models.EmailTypeStatusChange, Status: status}}, nil
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/email-logs", h.List)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandler_List(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLimit  int
		wantFilter string
	}{
		{"defaults", "/admin/email-logs", http.StatusOK, defaultLimit, ""},
		{"failed only", "/admin/email-logs?status=failed&limit=10", http.StatusOK, 10, models.EmailLogStatusFailed},
		{"limit clamped", "/admin/email-logs?limit=5000", http.StatusOK, maxLimit, ""},
		{"bad status", "/admin/email-logs?status=queued", http.StatusBadRequest, 0, ""},
		{"bad limit", "/admin/email-logs?limit=zero", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			w := serve(NewHandler(store, nil), tt.target)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLimit, store.limit)
			assert.Equal(t, tt.wantFilter, store.status)
		})
	}
}

func TestHandler_ListStoreError(t *testing.T) {
	w := serve(NewHandler(&fakeStore{err: errors.New("db gone")}, nil), "/admin/email-logs")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db gone")
}

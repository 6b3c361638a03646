package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/middleware"
)

const foundationOrg = "org_foundation"

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f fakeCounter) CountByStatus(context.Context) (map[string]int, error) { return f.counts, f.err }

type staticProvider struct{ id *identity.Identity }

func (p staticProvider) Identify(context.Context, *http.Request) (*identity.Identity, bool) {
	return p.id, p.id != nil
}

func serve(counter StatusCounter, id *identity.Identity) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity(staticProvider{id: id}, foundationOrg))
	r.GET("/dashboard", middleware.RequirePageRole(access.RoleMember), NewHandler(counter, nil).Show)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	return w
}

func staff(label string) *identity.Identity {
	return &identity.Identity{
		ExternalID:  "user_1",
		Email:       "staff@foundation.org",
		Memberships: []identity.MembershipClaim{{OrgID: foundationOrg, Role: label}},
	}
}

func TestShow(t *testing.T) {
	w := serve(fakeCounter{counts: map[string]int{"submitted": 3, "approved": 2}}, staff(identity.RoleLabelMember))
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "staff@foundation.org (member)")
	assert.Contains(t, body, "<td>Submitted</td><td>3</td>")
	assert.Contains(t, body, "<td>Under review</td><td>0</td>")
	assert.Contains(t, body, "<td>Total</td><td>5</td>")
	assert.NotContains(t, body, "Email delivery log")

	w = serve(fakeCounter{counts: map[string]int{}}, staff(identity.RoleLabelManager))
	assert.Contains(t, w.Body.String(), "Email delivery log")
}

func TestShowRedirects(t *testing.T) {
	w := serve(fakeCounter{}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, middleware.SignInPath, w.Header().Get("Location"))

	w = serve(fakeCounter{}, &identity.Identity{ExternalID: "applicant"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, middleware.HomePath, w.Header().Get("Location"))
}

func TestShowCounterError(t *testing.T) {
	w := serve(fakeCounter{err: errors.New("db down")}, staff(identity.RoleLabelAdmin))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

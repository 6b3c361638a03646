package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/pkg/apperr"
)

const orgID = "org_foundation"

type fakeLookup struct {
	users map[string]*models.User
	err   error
}

func (f *fakeLookup) Ensure(_ context.Context, id *identity.Identity) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id.ExternalID]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), ExternalID: id.ExternalID, Email: id.Email}
	f.users[id.ExternalID] = u
	return u, nil
}

func serveMe(l Lookup, id *identity.Identity) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if id != nil {
			ctx = identity.WithIdentity(ctx, id)
		}
		ctx = access.WithGuard(ctx, access.NewGuard(id, orgID))
		c.Request = c.Request.WithContext(ctx)
	})
	r.GET("/me", NewHandler(l, nil).Me)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	return w
}

func TestCurrent(t *testing.T) {
	l := &fakeLookup{users: map[string]*models.User{}}
	_, err := Current(context.Background(), l)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	ctx := identity.WithIdentity(context.Background(), &identity.Identity{ExternalID: "user_1", Email: "a@example.org"})
	first, err := Current(ctx, l)
	require.NoError(t, err)
	second, err := Current(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = Current(ctx, &fakeLookup{err: errors.New("db down")})
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestHandler_Me(t *testing.T) {
	l := &fakeLookup{users: map[string]*models.User{}}
	id := &identity.Identity{
		ExternalID:  "user_1",
		Email:       "m@foundation.org",
		Memberships: []identity.MembershipClaim{{OrgID: orgID, Role: identity.RoleLabelManager}},
	}
	w := serveMe(l, id)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			User       models.User `json:"user"`
			Role       string      `json:"role"`
			IsReviewer bool        `json:"is_reviewer"`
			IsManager  bool        `json:"is_manager"`
			IsAdmin    bool        `json:"is_admin"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user_1", body.Data.User.ExternalID)
	assert.Equal(t, "manager", body.Data.Role)
	assert.True(t, body.Data.IsReviewer)
	assert.True(t, body.Data.IsManager)
	assert.False(t, body.Data.IsAdmin)
}

func TestHandler_MeUnauthenticated(t *testing.T) {
	w := serveMe(&fakeLookup{users: map[string]*models.User{}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_MeUpstreamFailure(t *testing.T) {
	w := serveMe(&fakeLookup{err: errors.New("connection reset")}, &identity.Identity{ExternalID: "u"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestAuthorizeOrg(t *testing.T) {
	org := uuid.New()
	other := uuid.New()
	l := &fakeLookup{users: map[string]*models.User{
		"applicant": {ID: uuid.New(), ExternalID: "applicant", OrganizationID: &org},
		"orphan":    {ID: uuid.New(), ExternalID: "orphan"},
	}}
	ctxFor := func(ext string) context.Context {
		return identity.WithIdentity(context.Background(), &identity.Identity{ExternalID: ext})
	}

	u, err := AuthorizeOrg(context.Background(), l, org, true)
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = AuthorizeOrg(ctxFor("applicant"), l, org, false)
	require.NoError(t, err)
	assert.Equal(t, "applicant", u.ExternalID)

	_, err = AuthorizeOrg(ctxFor("applicant"), l, other, false)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = AuthorizeOrg(ctxFor("orphan"), l, org, false)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = AuthorizeOrg(context.Background(), l, org, false)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

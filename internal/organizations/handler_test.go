package organizations

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/models"
)

const foundationOrg = "org_foundation"

type fakeStore struct {
	orgs     map[uuid.UUID]*models.Organization
	reviews  int
	created  *models.Organization
	linkedTo uuid.UUID
}

func newFakeStore(orgs ...*models.Organization) *fakeStore {
	s := &fakeStore{orgs: map[uuid.UUID]*models.Organization{}}
	for _, o := range orgs {
		s.orgs[o.ID] = o
	}
	return s
}

func (f *fakeStore) CreateForUser(_ context.Context, org *models.Organization, userID uuid.UUID) error {
	for _, o := range f.orgs {
		if o.EIN == org.EIN {
			return ErrDuplicateEIN
		}
	}
	org.ID = uuid.New()
	f.orgs[org.ID] = org
	f.created, f.linkedTo = org, userID
	return nil
}

func (f *fakeStore) List(context.Context) ([]*models.Organization, error) {
	list := []*models.Organization{}
	for _, o := range f.orgs {
		list = append(list, o)
	}
	return list, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	if o, ok := f.orgs[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) Update(_ context.Context, org *models.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeStore) MarkProfileReviewed(_ context.Context, orgID, cycleID uuid.UUID) (*models.ProfileReview, error) {
	o, ok := f.orgs[orgID]
	if !ok {
		return nil, nil
	}
	f.reviews++
	now := time.Now().UTC()
	o.ProfileReviewedAt, o.ProfileReviewedCycleID = &now, &cycleID
	return &models.ProfileReview{OrganizationID: orgID, ProfileReviewedAt: now, ProfileReviewedCycleID: cycleID}, nil
}

type fakeCycles map[uuid.UUID]*models.Cycle

func (f fakeCycles) GetByID(_ context.Context, id uuid.UUID) (*models.Cycle, error) {
	return f[id], nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) Ensure(_ context.Context, id *identity.Identity) (*models.User, error) {
	if u, ok := f[id.ExternalID]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), ExternalID: id.ExternalID}
	f[id.ExternalID] = u
	return u, nil
}

// caller builds an identity with an optional foundation role label.
func caller(externalID, roleLabel string) *identity.Identity {
	id := &identity.Identity{ExternalID: externalID}
	if roleLabel != "" {
		id.Memberships = []identity.MembershipClaim{{OrgID: foundationOrg, Role: roleLabel}}
	}
	return id
}

type fixture struct {
	store  *fakeStore
	cycles fakeCycles
	users  fakeUsers
	org    *models.Organization
	cycle  *models.Cycle
}

func newFixture() *fixture {
	org := &models.Organization{ID: uuid.New(), Name: "Harbor Youth", EIN: "12-3456789"}
	cycle := &models.Cycle{ID: uuid.New(), Name: "Spring 2026", IsActive: true}
	orgID := org.ID
	return &fixture{
		store:  newFakeStore(org),
		cycles: fakeCycles{cycle.ID: cycle},
		users: fakeUsers{
			"applicant": {ID: uuid.New(), ExternalID: "applicant", OrganizationID: &orgID},
			"outsider":  {ID: uuid.New(), ExternalID: "outsider", OrganizationID: ptr(uuid.New())},
			"newcomer":  {ID: uuid.New(), ExternalID: "newcomer"},
		},
		org:   org,
		cycle: cycle,
	}
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func (f *fixture) serve(id *identity.Identity, method, target, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.store, f.cycles, f.users, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if id != nil {
			ctx = identity.WithIdentity(ctx, id)
		}
		c.Request = c.Request.WithContext(access.WithGuard(ctx, access.NewGuard(id, foundationOrg)))
	})
	r.POST("/organizations", h.Create)
	r.GET("/organizations", h.List)
	r.POST("/organizations/review-profile", h.ReviewProfile)
	r.GET("/organizations/:id", h.Get)
	r.PATCH("/organizations/:id", h.Update)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	return w
}

func TestHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		body       string
		wantStatus int
	}{
		{"valid", "newcomer", `{"name":"Riverside Arts","ein":"98-7654321","city":"Dayton"}`, http.StatusCreated},
		{"already linked", "applicant", `{"name":"Second","ein":"98-7654321"}`, http.StatusConflict},
		{"bad ein", "newcomer", `{"name":"Riverside Arts","ein":"987654321"}`, http.StatusBadRequest},
		{"missing name", "newcomer", `{"ein":"98-7654321"}`, http.StatusBadRequest},
		{"duplicate ein", "newcomer", `{"name":"Copy","ein":"12-3456789"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := f.serve(caller(tt.caller, ""), http.MethodPost, "/organizations", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusCreated {
				require.NotNil(t, f.store.created)
				assert.Equal(t, f.users["newcomer"].ID, f.store.linkedTo)
				assert.Equal(t, "Dayton", f.store.created.City)
			}
		})
	}
}

func TestHandler_Get(t *testing.T) {
	tests := []struct {
		name       string
		id         *identity.Identity
		missing    bool
		wantStatus int
	}{
		{"same organization", caller("applicant", ""), false, http.StatusOK},
		{"reviewer", caller("staff", identity.RoleLabelMember), false, http.StatusOK},
		{"other organization", caller("outsider", ""), false, http.StatusForbidden},
		{"reviewer absent org", caller("staff", identity.RoleLabelMember), true, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			target := "/organizations/" + f.org.ID.String()
			if tt.missing {
				target = "/organizations/" + uuid.NewString()
			}
			w := f.serve(tt.id, http.MethodGet, target, "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHandler_Update(t *testing.T) {
	f := newFixture()
	target := "/organizations/" + f.org.ID.String()

	w := f.serve(caller("applicant", ""), http.MethodPatch, target, `{"mission":"Literacy for all"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Literacy for all", f.store.orgs[f.org.ID].Mission)
	assert.Equal(t, "Harbor Youth", f.store.orgs[f.org.ID].Name)

	w = f.serve(caller("staff", identity.RoleLabelMember), http.MethodPatch, target, `{"mission":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.serve(caller("staff", identity.RoleLabelManager), http.MethodPatch, target, `{"ein":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ReviewProfile(t *testing.T) {
	tests := []struct {
		name        string
		id          *identity.Identity
		body        func(f *fixture) string
		wantStatus  int
		wantReviews int
	}{
		{
			name:        "same organization",
			id:          caller("applicant", ""),
			body:        func(f *fixture) string { return reviewBody(f.org.ID.String(), f.cycle.ID.String()) },
			wantStatus:  http.StatusOK,
			wantReviews: 1,
		},
		{
			name:        "manager",
			id:          caller("staff", identity.RoleLabelManager),
			body:        func(f *fixture) string { return reviewBody(f.org.ID.String(), f.cycle.ID.String()) },
			wantStatus:  http.StatusOK,
			wantReviews: 1,
		},
		{
			name:       "unknown cycle",
			id:         caller("applicant", ""),
			body:       func(f *fixture) string { return reviewBody(f.org.ID.String(), uuid.NewString()) },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown organization",
			id:         caller("staff", identity.RoleLabelAdmin),
			body:       func(f *fixture) string { return reviewBody(uuid.NewString(), f.cycle.ID.String()) },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing cycle id",
			id:         caller("applicant", ""),
			body:       func(f *fixture) string { return reviewBody(f.org.ID.String(), "") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing organization id",
			id:         caller("applicant", ""),
			body:       func(f *fixture) string { return `{"cycle_id":"` + f.cycle.ID.String() + `"}` },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "other organization",
			id:         caller("outsider", ""),
			body:       func(f *fixture) string { return reviewBody(f.org.ID.String(), f.cycle.ID.String()) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "reviewer is not enough",
			id:         caller("staff", identity.RoleLabelMember),
			body:       func(f *fixture) string { return reviewBody(f.org.ID.String(), f.cycle.ID.String()) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unauthenticated",
			body:       func(f *fixture) string { return reviewBody(f.org.ID.String(), f.cycle.ID.String()) },
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := f.serve(tt.id, http.MethodPost, "/organizations/review-profile", tt.body(f))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantReviews, f.store.reviews)
			if tt.wantStatus == http.StatusOK {
				org := f.store.orgs[f.org.ID]
				require.NotNil(t, org.ProfileReviewedAt)
				assert.Equal(t, f.cycle.ID, *org.ProfileReviewedCycleID)
				assert.Contains(t, w.Body.String(), `"profile_reviewed_cycle_id":"`+f.cycle.ID.String()+`"`)
			} else {
				assert.Nil(t, f.store.orgs[f.org.ID].ProfileReviewedAt)
			}
		})
	}
}

func reviewBody(orgID, cycleID string) string {
	return `{"organization_id":"` + orgID + `","cycle_id":"` + cycleID + `"}`
}

package applications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/internal/notify"
)

const foundationOrg = "org_foundation"

type fakeStore struct {
	apps    map[uuid.UUID]*models.Application
	reviews map[uuid.UUID][]models.Review
	filter  ListFilter
}

func (f *fakeStore) List(_ context.Context, lf ListFilter) ([]*models.Application, error) {
	f.filter = lf
	list := []*models.Application{}
	for _, a := range f.apps {
		if lf.OrganizationID != nil && a.OrganizationID != *lf.OrganizationID {
			continue
		}
		list = append(list, a)
	}
	return list, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	if a, ok := f.apps[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CountForOrganization(_ context.Context, orgID, cycleID uuid.UUID, kind models.ApplicationKind) (int, error) {
	n := 0
	for _, a := range f.apps {
		if a.OrganizationID == orgID && a.CycleID == cycleID && a.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) HasApprovedLOI(_ context.Context, orgID, cycleID uuid.UUID) (bool, error) {
	for _, a := range f.apps {
		if a.OrganizationID == orgID && a.CycleID == cycleID && a.Kind == models.KindLOI && a.Status == models.StatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Create(_ context.Context, a *models.Application) error {
	a.ID = uuid.New()
	f.apps[a.ID] = a
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*models.Application, error) {
	a, ok := f.apps[id]
	if !ok {
		return nil, nil
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

func (f *fakeStore) UpsertReview(_ context.Context, rv *models.Review) error {
	list := f.reviews[rv.ApplicationID]
	for i := range list {
		if list[i].ReviewerExternalID == rv.ReviewerExternalID {
			list[i] = *rv
			return nil
		}
	}
	f.reviews[rv.ApplicationID] = append(list, *rv)
	return nil
}

func (f *fakeStore) ListReviews(_ context.Context, id uuid.UUID) ([]models.Review, error) {
	return f.reviews[id], nil
}

type fakeCycles map[uuid.UUID]*models.Cycle

func (f fakeCycles) GetByID(_ context.Context, id uuid.UUID) (*models.Cycle, error) {
	return f[id], nil
}

type fakeOrgs map[uuid.UUID]*models.Organization

func (f fakeOrgs) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
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

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

type recordingNotifier struct {
	sent []notify.Message
}

func (r *recordingNotifier) Send(_ context.Context, msg notify.Message) {
	r.sent = append(r.sent, msg)
}

type fixture struct {
	store    *fakeStore
	cycles   fakeCycles
	users    fakeUsers
	notifier *recordingNotifier
	orgID    uuid.UUID
	open     *models.Cycle
	closed   *models.Cycle
}

func newFixture() *fixture {
	orgID := uuid.New()
	maxCents := int64(2500000)
	maxApps := 1
	open := &models.Cycle{
		ID: uuid.New(), Name: "Spring", IsActive: true, AcceptingLOIs: true, AcceptingApplications: true,
		MaxRequestCents: &maxCents, MaxApplicationsPerOrg: &maxApps,
	}
	closed := &models.Cycle{ID: uuid.New(), Name: "Winter", IsActive: true}
	return &fixture{
		store:  &fakeStore{apps: map[uuid.UUID]*models.Application{}, reviews: map[uuid.UUID][]models.Review{}},
		cycles: fakeCycles{open.ID: open, closed.ID: closed},
		users: fakeUsers{
			"applicant": {ID: uuid.New(), ExternalID: "applicant", Email: "ada@harbor.org", FirstName: "Ada", OrganizationID: &orgID},
			"outsider":  {ID: uuid.New(), ExternalID: "outsider", OrganizationID: ptr(uuid.New())},
		},
		notifier: &recordingNotifier{},
		orgID:    orgID,
		open:     open,
		closed:   closed,
	}
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func caller(externalID, roleLabel string) *identity.Identity {
	id := &identity.Identity{ExternalID: externalID}
	if roleLabel != "" {
		id.Memberships = []identity.MembershipClaim{{OrgID: foundationOrg, Role: roleLabel}}
	}
	return id
}

func (f *fixture) addApp(kind models.ApplicationKind, status string) *models.Application {
	a := &models.Application{
		ID: uuid.New(), OrganizationID: f.orgID, CycleID: f.open.ID, Kind: kind, Status: status,
		Title: "Existing", SubmittedBy: f.users["applicant"].ID,
	}
	f.store.apps[a.ID] = a
	return a
}

func (f *fixture) serve(id *identity.Identity, method, target, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	orgs := fakeOrgs{f.orgID: {ID: f.orgID, Name: "Harbor Youth"}}
	h := NewHandler(f.store, f.cycles, orgs, f.users, f.notifier, Config{StaffEmail: "staff@foundation.org", BaseURL: "https://grants.test"}, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if id != nil {
			ctx = identity.WithIdentity(ctx, id)
		}
		c.Request = c.Request.WithContext(access.WithGuard(ctx, access.NewGuard(id, foundationOrg)))
	})
	r.GET("/applications", h.List)
	r.POST("/applications", h.Create)
	r.GET("/applications/:id", h.Get)
	r.PATCH("/applications/:id/status", h.UpdateStatus)
	r.PUT("/applications/:id/review", h.Review)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	return w
}

func createBody(cycleID uuid.UUID, kind string, cents int64) string {
	b, _ := json.Marshal(map[string]interface{}{
		"cycle_id": cycleID.String(), "kind": kind, "title": "Reading Corners", "amount_requested_cents": cents,
	})
	return string(b)
}

func TestHandler_CreateLOI(t *testing.T) {
	f := newFixture()
	w := f.serve(caller("applicant", ""), http.MethodPost, "/applications", createBody(f.open.ID, "loi", 1000000))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.store.apps, 1)
	for _, a := range f.store.apps {
		assert.Equal(t, f.orgID, a.OrganizationID)
		assert.Equal(t, models.StatusSubmitted, a.Status)
	}
	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "ada@harbor.org", f.notifier.sent[0].To)
	assert.Equal(t, models.EmailTypeSubmissionReceipt, f.notifier.sent[0].Type)
	assert.Equal(t, "staff@foundation.org", f.notifier.sent[1].To)
	assert.Equal(t, "ada@harbor.org", f.notifier.sent[1].ReplyTo)
}

func TestHandler_CreateRules(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *fixture)
		caller     string
		body       func(f *fixture) string
		wantStatus int
	}{
		{
			name:       "cycle not accepting lois",
			caller:     "applicant",
			body:       func(f *fixture) string { return createBody(f.closed.ID, "loi", 100) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "full without approved loi",
			caller:     "applicant",
			setup:      func(f *fixture) { f.addApp(models.KindLOI, models.StatusUnderReview) },
			body:       func(f *fixture) string { return createBody(f.open.ID, "full", 100) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "full with approved loi",
			caller:     "applicant",
			setup:      func(f *fixture) { f.addApp(models.KindLOI, models.StatusApproved) },
			body:       func(f *fixture) string { return createBody(f.open.ID, "full", 100) },
			wantStatus: http.StatusCreated,
		},
		{
			name:       "amount over cycle maximum",
			caller:     "applicant",
			body:       func(f *fixture) string { return createBody(f.open.ID, "loi", 2500001) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "per organization cap",
			caller:     "applicant",
			setup:      func(f *fixture) { f.addApp(models.KindLOI, models.StatusSubmitted) },
			body:       func(f *fixture) string { return createBody(f.open.ID, "loi", 100) },
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown cycle",
			caller:     "applicant",
			body:       func(*fixture) string { return createBody(uuid.New(), "loi", 100) },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown kind",
			caller:     "applicant",
			body:       func(f *fixture) string { return createBody(f.open.ID, "grant", 100) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no organization",
			caller:     "newcomer",
			body:       func(f *fixture) string { return createBody(f.open.ID, "loi", 100) },
			wantStatus: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			before := len(f.store.apps)
			w := f.serve(caller(tt.caller, ""), http.MethodPost, "/applications", tt.body(f))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusCreated {
				assert.Len(t, f.store.apps, before+1)
			} else {
				assert.Len(t, f.store.apps, before)
				assert.Empty(t, f.notifier.sent)
			}
		})
	}
}

func TestHandler_ListScopesApplicants(t *testing.T) {
	f := newFixture()
	f.addApp(models.KindLOI, models.StatusSubmitted)
	other := &models.Application{ID: uuid.New(), OrganizationID: uuid.New(), CycleID: f.open.ID, Kind: models.KindLOI}
	f.store.apps[other.ID] = other

	w := f.serve(caller("applicant", ""), http.MethodGet, "/applications?status=approved", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.store.filter.OrganizationID)
	assert.Equal(t, f.orgID, *f.store.filter.OrganizationID)
	assert.NotContains(t, w.Body.String(), other.ID.String())

	w = f.serve(caller("staff", identity.RoleLabelMember), http.MethodGet, "/applications?cycle_id="+f.open.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, f.store.filter.OrganizationID)
	assert.Equal(t, f.open.ID, *f.store.filter.CycleID)
	assert.Contains(t, w.Body.String(), other.ID.String())

	w = f.serve(caller("staff", identity.RoleLabelMember), http.MethodGet, "/applications?status=pending", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.serve(caller("newcomer", ""), http.MethodGet, "/applications", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestHandler_GetReviewsOnlyForReviewers(t *testing.T) {
	f := newFixture()
	app := f.addApp(models.KindFull, models.StatusUnderReview)
	f.store.reviews[app.ID] = []models.Review{{ReviewerExternalID: "r1", Score: 4}, {ReviewerExternalID: "r2", Score: 5}}
	target := "/applications/" + app.ID.String()

	w := f.serve(caller("applicant", ""), http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"reviews"`)

	w = f.serve(caller("staff", identity.RoleLabelMember), http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			ID      uuid.UUID            `json:"id"`
			Reviews models.ReviewSummary `json:"reviews"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, app.ID, body.Data.ID)
	assert.Equal(t, 2, body.Data.Reviews.Count)
	assert.Equal(t, 4.5, *body.Data.Reviews.AverageScore)

	w = f.serve(caller("outsider", ""), http.MethodGet, target, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.serve(caller("staff", identity.RoleLabelMember), http.MethodGet, "/applications/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateStatus(t *testing.T) {
	f := newFixture()
	app := f.addApp(models.KindLOI, models.StatusSubmitted)
	target := "/applications/" + app.ID.String() + "/status"
	manager := caller("staff", identity.RoleLabelManager)

	w := f.serve(manager, http.MethodPatch, target, `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.StatusSubmitted, f.store.apps[app.ID].Status)

	w = f.serve(manager, http.MethodPatch, target, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusApproved, f.store.apps[app.ID].Status)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.EmailTypeStatusChange, f.notifier.sent[0].Type)
	assert.Equal(t, "ada@harbor.org", f.notifier.sent[0].To)

	// Same status again is a no-op without a second email.
	w = f.serve(manager, http.MethodPatch, target, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.notifier.sent, 1)

	w = f.serve(manager, http.MethodPatch, "/applications/"+uuid.NewString()+"/status", `{"status":"declined"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ReviewUpsertsPerReviewer(t *testing.T) {
	f := newFixture()
	app := f.addApp(models.KindFull, models.StatusUnderReview)
	target := "/applications/" + app.ID.String() + "/review"
	reviewer := caller("staff", identity.RoleLabelMember)

	for _, score := range []int{0, 6} {
		w := f.serve(reviewer, http.MethodPut, target, `{"score":`+strconv.Itoa(score)+`}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	w := f.serve(reviewer, http.MethodPut, target, `{"score":3,"comment":"solid"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.serve(reviewer, http.MethodPut, target, `{"score":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.store.reviews[app.ID], 1)
	assert.Equal(t, 5, f.store.reviews[app.ID][0].Score)
	assert.Equal(t, "staff", f.store.reviews[app.ID][0].ReviewerExternalID)
}

func TestSummarize(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.AverageScore)
	assert.NotNil(t, s.Reviews)

	s = Summarize([]models.Review{{Score: 1}, {Score: 2}, {Score: 2}})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1.67, *s.AverageScore)
}

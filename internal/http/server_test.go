package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/config"
	"github.com/jmehdipour/lead-gateway/internal/google/googletest"
	"github.com/jmehdipour/lead-gateway/internal/http/middleware"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository/memory"
	"github.com/jmehdipour/lead-gateway/internal/service/delivery"
	"github.com/jmehdipour/lead-gateway/internal/service/grants"
	"github.com/jmehdipour/lead-gateway/internal/service/provision"
	"github.com/jmehdipour/lead-gateway/internal/service/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "admin-secret"

type acceptFunc func(ctx context.Context, tenantID string, f model.LeadFields) (string, error)

func (f acceptFunc) Accept(ctx context.Context, tenantID string, fields model.LeadFields) (string, error) {
	return f(ctx, tenantID, fields)
}

type fakeReports struct {
	gotTenant string
	gotStatus model.LeadStatus
	gotLimit  int
	leads     []model.Lead
	err       error
}

func (r *fakeReports) ListByTenant(_ context.Context, tenantID string, status model.LeadStatus, limit, _ int) ([]model.Lead, error) {
	r.gotTenant, r.gotStatus, r.gotLimit = tenantID, status, limit
	return r.leads, r.err
}

type testServer struct {
	srv    *Server
	store  *memory.Store
	grants *grants.Store
	oauth  *googletest.OAuth
	sheets *googletest.Sheets
}

func newTestServer(t *testing.T, reports *fakeReports) *testServer {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Create(context.Background(), model.Tenant{ID: "t1", PublishableKey: "pk_test_1"}))

	ts := &testServer{
		store:  store,
		grants: grants.New(store, nil),
		oauth:  googletest.NewOAuth(),
		sheets: googletest.NewSheets(),
	}
	reg := registry.New(store)
	coord := delivery.NewCoordinator(reg, ts.grants, ts.oauth, ts.sheets, nil, nil)
	codec, err := provision.NewStateCodec("s3cret", time.Minute)
	require.NoError(t, err)
	prov := provision.New(store, ts.grants, ts.oauth, ts.sheets, codec, "", nil)

	cfg := config.Config{DashboardURL: "https://dash.example.com/app"}
	cfg.Admin.APIKey = adminKey

	d := Deps{
		Tenants:  store,
		Resolver: reg,
		Leads: acceptFunc(func(ctx context.Context, tenantID string, f model.LeadFields) (string, error) {
			return "lead-1", coord.Deliver(ctx, tenantID, f)
		}),
		Provisioner: prov,
	}
	if reports != nil {
		d.Reports = reports
	}
	ts.srv = NewServer(cfg, d)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) connect(t *testing.T) {
	t.Helper()
	ts.sheets.Add("S1")
	c := model.CredentialFromToken("t1", googletest.Token("at-1", "rt-1", time.Hour))
	require.NoError(t, ts.grants.SaveGrant(context.Background(), "t1", c, model.SheetBinding{SheetID: "S1"}))
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestSubmitLead(t *testing.T) {
	ts := newTestServer(t, nil)
	key := map[string]string{middleware.HeaderPublicKey: "pk_test_1"}
	lead := `{"name":"Ann","email":"a@x.com","annualSalary":"50-75k","source":"landing"}`

	rec := ts.do(t, http.MethodPost, "/api/leads", lead, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/leads", lead, map[string]string{middleware.HeaderPublicKey: "pk_unknown"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, ts.store.CallCount("LoadActive"))

	rec = ts.do(t, http.MethodPost, "/api/leads", lead, key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not_connected", errorOf(t, rec))

	rec = ts.do(t, http.MethodPost, "/api/leads", `{"name":"Ann"}`, key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.connect(t)
	rec = ts.do(t, http.MethodPost, "/api/leads", lead, key)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rows := ts.sheets.Rows("S1")
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"Ann", "a@x.com", "", "50-75k", "landing"}, rows[0][:5])
}

func TestSubmitLeadDeliveryFailed(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.connect(t)
	ts.sheets.AppendErr = errors.New("Requested entity was not found.")

	rec := ts.do(t, http.MethodPost, "/api/leads", `{"name":"Ann","email":"a@x.com"}`,
		map[string]string{middleware.HeaderPublicKey: "pk_test_1"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Requested entity was not found.")
}

func TestOAuthFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.oauth.Codes["good"] = googletest.Token("at-1", "rt-1", time.Hour)

	rec := ts.do(t, http.MethodGet, "/api/oauth/start", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/oauth/start?tenantId=t1", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	rec = ts.do(t, http.MethodGet, "/api/oauth/google/callback?state="+url.QueryEscape(state), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing code")

	rec = ts.do(t, http.MethodGet, "/api/oauth/google/callback?code=good&state=garbage", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed_state", errorOf(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/oauth/google/callback?code=bad&state="+url.QueryEscape(state), "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "token_exchange_failed", errorOf(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/oauth/google/callback?code=good&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://dash.example.com/app?tenant=t1", rec.Header().Get("Location"))

	_, b, err := ts.grants.LoadActiveGrant(context.Background(), "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, b.SheetID)
}

func TestOAuthCallbackConsentDenied(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/oauth/google/callback?error=access_denied", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "access_denied", errorOf(t, rec))
}

func TestCreateTenant(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"buyer_email":"b@x.com","buyer_name":"Bob"}`

	rec := ts.do(t, http.MethodPost, "/api/tenants/create", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tenants/create", body, map[string]string{middleware.HeaderAdminKey: adminKey})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp createTenantResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Regexp(t, `^pk_live_[0-9a-f]{32}$`, resp.PublishableKey)

	tn, err := ts.store.GetByID(context.Background(), resp.TenantID)
	require.NoError(t, err)
	require.NotNil(t, tn)
	require.NotNil(t, tn.BuyerEmail)
	assert.Equal(t, "b@x.com", *tn.BuyerEmail)
}

func TestUpdateOrigins(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := map[string]string{middleware.HeaderAdminKey: adminKey}

	rec := ts.do(t, http.MethodPut, "/api/tenant/origins", `{"tenantId":"t1","origins":["https://a.example/"]}`, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	tn, err := ts.store.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, model.Origins{"https://a.example"}, tn.AllowedOrigins)

	rec = ts.do(t, http.MethodPut, "/api/tenant/origins", `{"tenantId":"t1"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/tenant/origins", `{"origins":[]}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/tenant/origins", `{"tenantId":"t1","origins":["not a url"]}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/tenant/origins", `{"tenantId":"nope","origins":[]}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLeads(t *testing.T) {
	admin := map[string]string{middleware.HeaderAdminKey: adminKey}

	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/admin/tenants/t1/leads", "", admin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	reports := &fakeReports{leads: []model.Lead{{ID: "L1", TenantID: "t1", Status: model.LeadDelivered}}}
	ts = newTestServer(t, reports)
	rec = ts.do(t, http.MethodGet, "/api/admin/tenants/t1/leads?status=failed&limit=10", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", reports.gotTenant)
	assert.Equal(t, model.LeadFailed, reports.gotStatus)
	assert.Equal(t, 10, reports.gotLimit)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	reports.err = errors.New("clickhouse down")
	rec = ts.do(t, http.MethodGet, "/api/admin/tenants/t1/leads", "", admin)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodOptions, "/api/leads", "", map[string]string{
		"Origin":                        "https://customer-site.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), middleware.HeaderPublicKey)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrUnauthorizedTenant, http.StatusUnauthorized},
		{apperr.ErrNotConnected, http.StatusBadRequest},
		{apperr.ErrMalformedState, http.StatusBadRequest},
		{apperr.ErrTokenExchangeFailed, http.StatusBadGateway},
		{apperr.ErrSheetSetupFailed, http.StatusBadGateway},
		{apperr.ErrDeliveryFailed, http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), "%v", tt.err)
	}
}

func TestDashboardRedirect(t *testing.T) {
	assert.Equal(t, "https://d.example/x?a=1&tenant=t+1", dashboardRedirect("https://d.example/x?a=1", "t 1"))
}

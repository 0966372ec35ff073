package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/present/rest/middleware"
	"github.com/acbops/tracker/internal/service"
	"github.com/acbops/tracker/internal/usecase"
)

// --- mocks ---

type mockUserRepo struct {
	users map[string]domain.User
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user domain.User) error { return nil }

type mockShipmentRepo struct {
	items      []map[string]any
	one        map[string]any
	oneErr     error
	casMatched bool
	casResult  map[string]any
	casIDs     []string
	uncondIDs  []string
	exists     bool
	deleteOK   bool
}

func (m *mockShipmentRepo) FindProjected(ctx context.Context, q domain.ListQuery, projection []string, searchKeys []string) ([]map[string]any, int64, error) {
	return m.items, int64(len(m.items)), nil
}

func (m *mockShipmentRepo) FindOneProjected(ctx context.Context, id string, projection []string) (map[string]any, error) {
	return m.one, m.oneErr
}

func (m *mockShipmentRepo) Insert(ctx context.Context, fields map[string]any) (string, error) {
	return "s-new", nil
}

func (m *mockShipmentRepo) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, fields map[string]any, projection []string) (map[string]any, bool, error) {
	m.casIDs = append(m.casIDs, id)
	if !m.casMatched {
		return nil, false, nil
	}
	return m.casResult, true, nil
}

func (m *mockShipmentRepo) Exists(ctx context.Context, id string) (bool, error) {
	return m.exists, nil
}

func (m *mockShipmentRepo) UnconditionalUpdate(ctx context.Context, id string, fields map[string]any) (bool, error) {
	m.uncondIDs = append(m.uncondIDs, id)
	return true, nil
}

func (m *mockShipmentRepo) SoftDelete(ctx context.Context, id string, actorID string) (bool, error) {
	return m.deleteOK, nil
}

// --- fixture ---

type fixture struct {
	e    *echo.Echo
	repo *mockShipmentRepo
	auth *service.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	users := &mockUserRepo{users: map[string]domain.User{
		"u-admin": {ID: "u-admin", Username: "admin", PasswordHash: string(hash), DisplayName: "Admin", Role: tracker.RoleAdmin, IsActive: true},
		"u-analyst": {ID: "u-analyst", Username: "analyst", PasswordHash: string(hash), DisplayName: "Analyst", Role: tracker.RoleAnalyst, IsActive: true},
	}}

	repo := &mockShipmentRepo{}
	authz := tracker.NewAuthorizer(tracker.NewCatalog())
	shipments := usecase.NewShipmentUsecase(repo, users, authz)
	auth := service.NewAuthService(users, service.NewMemoryTokenStore(), "test-secret", time.Hour)
	presence := service.NewPresenceService(2*time.Minute, 30*time.Second)

	e := echo.New()
	h := NewHandler(authz, shipments, presence, auth, 25*time.Second)
	h.RegisterRoutes(e, middleware.NewAuthMiddleware(auth))

	return &fixture{e: e, repo: repo, auth: auth}
}

func (f *fixture) login(t *testing.T, username string) string {
	t.Helper()
	token, _, err := f.auth.Login(context.Background(), username, "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return out
}

// --- tests ---

func TestRequireAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/shipments", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/shipments", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]any{"username": "admin", "password": "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["token"] == "" || body["token"] == nil {
		t.Fatalf("expected a token, got %v", body)
	}

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]any{"username": "admin", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]any{"username": "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	f := newFixture(t)
	f.repo.items = []map[string]any{{"id": "s-1", "client": "ACME", "version": float64(2)}}

	rec := f.do(t, http.MethodGet, "/shipments?page=1&limit=10", f.login(t, "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	if body["total"] != float64(1) {
		t.Fatalf("expected total 1, got %v", body["total"])
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %v", body["items"])
	}
}

func TestListOrdersFieldsByCatalog(t *testing.T) {
	f := newFixture(t)
	f.repo.items = []map[string]any{{"version": float64(1), "client": "ACME", "id": "s-1"}}

	rec := f.do(t, http.MethodGet, "/shipments", f.login(t, "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// client is declared before the system fields, so it must serialize first.
	raw := rec.Body.String()
	clientIdx := bytes.Index([]byte(raw), []byte(`"client"`))
	versionIdx := bytes.Index([]byte(raw), []byte(`"version"`))
	if clientIdx < 0 || versionIdx < 0 || clientIdx > versionIdx {
		t.Fatalf("expected catalog field order in %s", raw)
	}
}

func TestGetEndpointNotFound(t *testing.T) {
	f := newFixture(t)
	f.repo.oneErr = domain.NotFoundError{Resource: "shipment"}

	rec := f.do(t, http.MethodGet, "/shipments/s-404", f.login(t, "admin"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateEndpointRequiresVersion(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/shipments/s-1", f.login(t, "admin"),
		map[string]any{"client": "ACME"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without version, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateEndpointConflict(t *testing.T) {
	f := newFixture(t)
	f.repo.casMatched = false
	f.repo.exists = true

	rec := f.do(t, http.MethodPatch, "/shipments/s-1", f.login(t, "admin"),
		map[string]any{"client": "ACME", "version": 3})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateEndpointSuccess(t *testing.T) {
	f := newFixture(t)
	f.repo.casMatched = true
	f.repo.casResult = map[string]any{"id": "s-1", "client": "ACME", "version": float64(4)}

	rec := f.do(t, http.MethodPatch, "/shipments/s-1", f.login(t, "admin"),
		map[string]any{"client": "ACME", "version": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	item, ok := body["item"].(map[string]any)
	if !ok || item["version"] != float64(4) {
		t.Fatalf("expected the new record state, got %v", body)
	}
}

func TestBulkEndpoint(t *testing.T) {
	f := newFixture(t)
	f.repo.casMatched = true

	rec := f.do(t, http.MethodPatch, "/shipments/bulk", f.login(t, "admin"), map[string]any{
		"ids":   []string{"s-1", "s-2"},
		"patch": map[string]any{"flightStatus": "Landed"},
		// s-2's version is not an integer, so it takes the unconditional path.
		"versions": map[string]any{"s-1": 7, "s-2": "oops"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	results, ok := body["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("expected one result per id, got %v", body)
	}
	for _, raw := range results {
		result := raw.(map[string]any)
		if result["status"] != string(domain.BulkUpdated) {
			t.Fatalf("expected updated status, got %v", result)
		}
	}

	if len(f.repo.casIDs) != 1 || f.repo.casIDs[0] != "s-1" {
		t.Fatalf("expected cas only for s-1, got %v", f.repo.casIDs)
	}
	if len(f.repo.uncondIDs) != 1 || f.repo.uncondIDs[0] != "s-2" {
		t.Fatalf("expected unconditional update for s-2, got %v", f.repo.uncondIDs)
	}
}

func TestBulkEndpointForbiddenForAnalyst(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/shipments/bulk", f.login(t, "analyst"), map[string]any{
		"ids":   []string{"s-1"},
		"patch": map[string]any{"flightStatus": "Landed"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteEndpoint(t *testing.T) {
	f := newFixture(t)
	f.repo.deleteOK = true

	rec := f.do(t, http.MethodDelete, "/shipments/s-1", f.login(t, "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, "/shipments/s-1", f.login(t, "analyst"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for analyst, got %d", rec.Code)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "analyst")

	rec := f.do(t, http.MethodPost, "/presence/begin", token, map[string]any{"shipmentId": "s-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/presence/begin", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing shipmentId, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/presence/end", token, map[string]any{"shipmentId": "s-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRealtimeRejectsMissingToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/realtime", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestIntValue(t *testing.T) {
	cases := []struct {
		raw  any
		want *int64
	}{
		{float64(3), ptrInt(3)},
		{float64(3.5), nil},
		{"7", ptrInt(7)},
		{"oops", nil},
		{true, nil},
		{nil, nil},
	}
	for _, tc := range cases {
		got := intValue(tc.raw)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("intValue(%v) = %d, want nil", tc.raw, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("intValue(%v) = %v, want %d", tc.raw, got, *tc.want)
		}
	}
}

func ptrInt(v int64) *int64 { return &v }

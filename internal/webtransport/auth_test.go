package webtransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/komodore/core/internal/model"
)

func TestLoginLocalUserThenAuthenticateRoundTrips(t *testing.T) {
	s, store := newTestServer(t)
	user, err := s.deps.Facade.CreateLocalUser("alice", "hunter2", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	body := `{"type":"LoginLocalUser","params":{"username":"alice","password":"hunter2"}}`
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(body))
	rec := httptest.NewRecorder()
	authVariants.serveAnon(s, rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp jwtResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Jwt == "" {
		t.Fatal("expected non-empty jwt")
	}

	authReq := httptest.NewRequest(http.MethodPost, "/read", nil)
	authReq.Header.Set("Authorization", "Bearer "+resp.Jwt)
	got, err := s.authenticate(authReq)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.Id != user.Id {
		t.Errorf("authenticate returned user %q, want %q", got.Id, user.Id)
	}
	_ = store
}

func TestLoginLocalUserWrongPasswordUnauthorized(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.deps.Facade.CreateLocalUser("alice", "hunter2", false); err != nil {
		t.Fatalf("create user: %v", err)
	}

	body := `{"type":"LoginLocalUser","params":{"username":"alice","password":"wrong"}}`
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(body))
	rec := httptest.NewRecorder()
	authVariants.serveAnon(s, rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsMissingBearer(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/read", nil)
	if _, err := s.authenticate(req); err == nil {
		t.Fatal("expected error for missing bearer token")
	}
}

func TestAuthenticateRejectsDisabledUser(t *testing.T) {
	s, st := newTestServer(t)
	u := mustUser(t, st, false)
	u.Enabled = false
	if err := st.PutUser(u); err != nil {
		t.Fatalf("put user: %v", err)
	}
	tok, err := s.mintJwt(u.Id)
	if err != nil {
		t.Fatalf("mint jwt: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/read", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if _, err := s.authenticate(req); err == nil {
		t.Fatal("expected error for disabled user")
	} else if err.Error() == "" {
		t.Fatal("expected non-empty error")
	}
	_ = model.ErrUnauthorized
}

package webtransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/komodore/core/internal/model"
)

func doEnvelope(t *testing.T, table variantTable, s *Server, user *model.User, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+mustToken(t, s, user))
	rec := httptest.NewRecorder()
	table.serve(s, rec, req)
	return rec
}

func mustToken(t *testing.T, s *Server, user *model.User) string {
	t.Helper()
	tok, err := s.mintJwt(user.Id)
	if err != nil {
		t.Fatalf("mint jwt: %v", err)
	}
	return tok
}

func TestCreateResourceThenGetResourceRoundTrips(t *testing.T) {
	s, st := newTestServer(t)
	admin := mustUser(t, st, true)

	createBody := `{"type":"CreateResource","params":{"kind":"Server","name":"edge-1","config":{"address":"http://host:8120"}}}`
	rec := doEnvelope(t, writeVariants, s, admin, createBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created model.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created resource: %v", err)
	}

	getBody := `{"type":"GetResource","params":{"kind":"Server","id":"` + created.Id + `"}}`
	rec = doEnvelope(t, readVariants, s, admin, getBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d body = %s", rec.Code, rec.Body.String())
	}
	var got model.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode fetched resource: %v", err)
	}
	if got.Name != "edge-1" {
		t.Errorf("got name %q, want edge-1", got.Name)
	}
}

func TestNonAdminCannotListUsers(t *testing.T) {
	s, st := newTestServer(t)
	plain := mustUser(t, st, false)

	rec := doEnvelope(t, readVariants, s, plain, `{"type":"ListUsers"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRestrictiveModeHidesUnpermittedResource(t *testing.T) {
	s, st := newTestServer(t)
	admin := mustUser(t, st, true)
	plain := mustUser2(t, st, false)

	createBody := `{"type":"CreateResource","params":{"kind":"Server","name":"hidden","config":{"address":"http://host:8120"}}}`
	rec := doEnvelope(t, writeVariants, s, admin, createBody)
	var created model.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	getBody := `{"type":"GetResource","params":{"kind":"Server","id":"` + created.Id + `"}}`
	rec = doEnvelope(t, readVariants, s, plain, getBody)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for unpermitted read, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownVariantIsBadRequest(t *testing.T) {
	s, st := newTestServer(t)
	admin := mustUser(t, st, true)

	rec := doEnvelope(t, readVariants, s, admin, `{"type":"NotARealVariant"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func mustUser2(t *testing.T, s interface {
	PutUser(u *model.User) error
}, admin bool) *model.User {
	t.Helper()
	u := &model.User{
		Id:       "user-2",
		Username: "bob",
		Enabled:  true,
		Admin:    admin,
		All:      map[model.ResourceKind]model.PermissionLevelAndSpecific{},
	}
	if err := s.PutUser(u); err != nil {
		t.Fatalf("put user: %v", err)
	}
	return u
}

package logout_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	"github.com/dalemusser/giftexchange/internal/app/features/logout"
	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/dalemusser/giftexchange/internal/testutil"
	"go.uber.org/zap"
)

func newSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sm
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			return c
		}
	}
	return nil
}

func TestServeLogout_ClearsSessionCookie(t *testing.T) {
	sm := newSessionManager(t)
	h := logout.NewHandler(sm, nil, nil, zap.NewNop())

	// Sign in first so the logout request carries a real cookie.
	setup := httptest.NewRecorder()
	if err := sm.SignIn(setup, httptest.NewRequest("GET", "/setup", nil), models.Identity{ID: "u1", DisplayName: "Ada"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	req := httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(sessionCookie(setup))
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	c := sessionCookie(rec)
	if c == nil {
		t.Fatal("expected session cookie to be set for deletion")
	}
	if c.MaxAge != -1 {
		t.Errorf("cookie MaxAge: got %d, want -1 (delete)", c.MaxAge)
	}
}

func TestServeLogout_BrowserRedirectsHome(t *testing.T) {
	h := logout.NewHandler(newSessionManager(t), nil, nil, zap.NewNop())

	req := httptest.NewRequest("POST", "/logout", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want %q", loc, "/")
	}
}

func TestServeLogout_ClosesDirectories(t *testing.T) {
	store := groupstore.NewMemory()
	svc := exchange.New(store)
	h := logout.NewHandler(newSessionManager(t), nil, svc.Hub(), zap.NewNop())

	owner := testutil.Owner()
	id := owner.Identity()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	d := svc.NewDirectory()
	t.Cleanup(d.Stop)
	d.SetIdentity(ctx, &id)

	if n := svc.Hub().Count(owner.ID); n != 1 {
		t.Fatalf("hub count = %d, want 1", n)
	}

	rec := httptest.NewRecorder()
	h.ServeLogout(rec, testutil.WithUser(httptest.NewRequest("POST", "/logout", nil), owner))

	if n := svc.Hub().Count(owner.ID); n != 0 {
		t.Errorf("hub count after logout = %d, want 0", n)
	}
	if n := store.Subscribers(); n != 0 {
		t.Errorf("store subscribers after logout = %d, want 0", n)
	}
}

// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/auditlog"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/dalemusser/giftexchange/internal/app/system/normalize"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// StateTTL is how long a sign-in may take between redirect and callback.
const StateTTL = 10 * time.Minute

const (
	provider        = "google"
	identityPrefix  = "google:"
	defaultUserInfo = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// StateStore persists one-time OAuth2 state tokens. oauthstate.Store
// implements it.
type StateStore interface {
	Save(ctx context.Context, state, returnTo string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (returnTo string, ok bool, err error)
}

// Handler handles Google OAuth authentication.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	StateStore StateStore

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://gifts.example.com/auth/google/callback"

	// Endpoint and UserInfoURL default to Google's; tests point them at a
	// local server.
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	// DevLogin enables POST /auth/dev.
	DevLogin bool
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	stateStore StateStore,
	clientID, clientSecret, baseURL string,
	devLogin bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		ErrLog:       errLog,
		AuditLog:     audit,
		StateStore:   stateStore,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  defaultUserInfo,
		DevLogin:     devLogin,
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// fail logs the sign-in failure with its detail, records it, and answers
// with the stable AuthFailure message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, reason string, err error) {
	h.AuditLog.LoginFailed(r.Context(), r, provider, reason)
	if err == nil {
		err = auth.ErrAuthFailure
	} else {
		err = fmt.Errorf("%w: %s: %v", auth.ErrAuthFailure, reason, err)
	}
	h.ErrLog.Fail(w, r, "google sign-in failed", err, zap.String("reason", reason))
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Starts the flow by redirecting to Google's consent screen.                   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.fail(w, r, "not_configured", nil)
		return
	}

	state := generateState()
	returnTo := auth.SafeReturnPath(r.URL.Query().Get("return"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "save oauth state")
	defer cancel()
	if err := h.StateStore.Save(ctx, state, returnTo, StateTTL); err != nil {
		h.fail(w, r, "state_save", err)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_to", returnTo))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Consumes the state, exchanges the code, fetches the profile, signs in.       |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.fail(w, r, "denied", fmt.Errorf("provider error %q", errParam))
		return
	}

	state := q.Get("state")
	if state == "" {
		h.fail(w, r, "missing_state", nil)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "google callback")
	defer cancel()

	returnTo, ok, err := h.StateStore.Consume(ctx, state)
	if err != nil {
		h.fail(w, r, "state_lookup", err)
		return
	}
	if !ok {
		h.fail(w, r, "invalid_state", nil)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, r, "missing_code", nil)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.fail(w, r, "token_exchange", err)
		return
	}

	info, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		h.fail(w, r, "user_info", err)
		return
	}
	if info.ID == "" {
		h.fail(w, r, "user_info", fmt.Errorf("userinfo has no id"))
		return
	}

	id := info.identity()
	if err := h.SessionMgr.SignIn(w, r, id); err != nil {
		h.fail(w, r, "session", err)
		return
	}

	h.AuditLog.LoginSuccess(r.Context(), r, id.ID, provider)
	h.Log.Info("user signed in via Google", zap.String("user_id", id.ID))
	http.Redirect(w, r, auth.SafeReturnPath(returnTo), http.StatusSeeOther)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (u googleUserInfo) identity() models.Identity {
	return models.Identity{
		ID:          identityPrefix + u.ID,
		DisplayName: normalize.Name(u.Name),
		Email:       normalize.Email(u.Email),
		PhotoURL:    u.Picture,
	}
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := h.oauth2Config().Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, fmt.Errorf("decode user info: %w", err)
	}
	return info, nil
}

// generateState returns a URL-safe random token.
func generateState() string {
	return base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
}

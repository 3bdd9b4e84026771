// internal/app/features/logout/handler.go
package logout

import (
	"net/http"
	"strings"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	"github.com/dalemusser/giftexchange/internal/app/system/auditlog"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Hub        *exchange.Hub
}

// NewHandler builds a logout Handler. audit and hub may be nil.
func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, hub *exchange.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		Hub:        hub,
	}
}

// ServeLogout handles POST /logout. It expires the session cookie and
// closes the user's open group streams.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
		if h.Hub != nil {
			n := h.Hub.SignOut(u.ID)
			h.Log.Debug("signed out", zap.String("user_id", u.ID), zap.Int("streams_closed", n))
		}
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

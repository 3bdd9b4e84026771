// internal/app/features/authgoogle/devlogin.go
package authgoogle

import (
	"encoding/json"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/normalize"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.uber.org/zap"
)

type devLoginRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ServeDevLogin handles POST /auth/dev. It signs in whatever identity the
// body names and exists only so the API can be driven without Google.
//
//	{ "id": "alice", "name": "Alice" }
func (h *Handler) ServeDevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.DevLogin {
		http.NotFound(w, r)
		return
	}

	var req devLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, r, err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		h.fail(w, r, "dev_missing_id", nil)
		return
	}

	identity := models.Identity{
		ID:          "dev:" + id,
		DisplayName: normalize.Name(req.Name),
		Email:       normalize.Email(req.Email),
	}
	if err := h.SessionMgr.SignIn(w, r, identity); err != nil {
		h.fail(w, r, "session", err)
		return
	}

	h.AuditLog.LoginSuccess(r.Context(), r, identity.ID, "dev")
	h.Log.Warn("development sign-in", zap.String("user_id", identity.ID))
	uierrors.WriteJSON(w, http.StatusOK, map[string]string{"id": identity.ID, "name": identity.Name()})
}

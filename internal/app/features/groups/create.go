// internal/app/features/groups/create.go
package groups

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type createResponse struct {
	ID       string `json:"id"`
	JoinCode string `json:"join_code"`
	Name     string `json:"name"`
}

// ServeCreate handles POST /groups.
//
//	{ "name": "...", "description": "...", "custom_fields": [{"label": "...", "placeholder": "..."}] }
//
// The new group is selected in the caller's open streams.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	var in exchange.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.ErrLog.BadRequest(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create group")
	defer cancel()

	g, err := h.Svc.Create(ctx, u.Identity(), in)
	if err != nil {
		h.ErrLog.Fail(w, r, "create group failed", err, zap.String("user_id", u.ID))
		return
	}

	h.AuditLog.GroupCreated(r.Context(), r, u.ID, g.ID, g.Name, len(g.CustomFields))
	h.Svc.Hub().SelectNew(u.ID, g.ID.Hex())

	uierrors.WriteJSON(w, http.StatusCreated, createResponse{
		ID:       g.ID.Hex(),
		JoinCode: g.JoinCode(),
		Name:     g.Name,
	})
}

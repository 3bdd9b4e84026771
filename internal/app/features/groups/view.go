// internal/app/features/groups/view.go
package groups

import (
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeView handles GET /groups/{id} for members of the group.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	id, ok := groupID(r)
	if !ok {
		h.ErrLog.Fail(w, r, "bad group id", exchange.ErrNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "view group")
	defer cancel()

	g, err := h.Svc.Get(ctx, id, u.ID)
	if err != nil {
		h.ErrLog.Fail(w, r, "view group failed", err, zap.String("group_id", id.Hex()), zap.String("user_id", u.ID))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, detail(g, u.ID))
}

// ServeAssignment handles GET /groups/{id}/assignment: who the caller buys
// for. Before the first draw it answers {"drawn": false}.
func (h *Handler) ServeAssignment(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	id, ok := groupID(r)
	if !ok {
		h.ErrLog.Fail(w, r, "bad group id", exchange.ErrNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "view assignment")
	defer cancel()

	g, err := h.Svc.Get(ctx, id, u.ID)
	if err != nil {
		h.ErrLog.Fail(w, r, "view assignment failed", err, zap.String("group_id", id.Hex()), zap.String("user_id", u.ID))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, assignment(g, u.ID))
}

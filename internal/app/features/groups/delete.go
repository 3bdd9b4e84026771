// internal/app/features/groups/delete.go
package groups

import (
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeDelete handles DELETE /groups/{id}. Confirmation happens in the
// client before this is called.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	id, ok := groupID(r)
	if !ok {
		h.ErrLog.Fail(w, r, "bad group id", exchange.ErrNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete group")
	defer cancel()

	g, err := h.Svc.Delete(ctx, id, u.ID)
	if err != nil {
		h.Svc.Hub().Flash(u.ID, exchange.Flash{
			GroupID: id.Hex(),
			Kind:    exchange.FlashError,
			Message: uierrors.BodyFor(err).Message,
		})
		h.ErrLog.Fail(w, r, "delete group failed", err, zap.String("group_id", id.Hex()), zap.String("user_id", u.ID))
		return
	}

	h.AuditLog.GroupDeleted(r.Context(), r, u.ID, g.ID, g.Name)
	h.Log.Info("group deleted", zap.String("group_id", g.ID.Hex()), zap.String("user_id", u.ID))
	uierrors.WriteJSON(w, http.StatusOK, map[string]string{"deleted": g.ID.Hex()})
}

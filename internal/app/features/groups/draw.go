// internal/app/features/groups/draw.go
package groups

import (
	"net/http"
	"time"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// DrawSuccessMessage is flashed to the organizer after a committed draw.
const DrawSuccessMessage = "Names drawn! Everyone can now see who they're buying for."

type drawResponse struct {
	GroupID     string     `json:"group_id"`
	MemberCount int        `json:"member_count"`
	Redraw      bool       `json:"redraw"`
	DrawRunAt   *time.Time `json:"draw_run_at,omitempty"`
}

// ServeDraw handles POST /groups/{id}/draw. The response confirms the draw
// but does not reveal the assignment map, not even to the organizer.
func (h *Handler) ServeDraw(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	id, ok := groupID(r)
	if !ok {
		h.ErrLog.Fail(w, r, "bad group id", exchange.ErrNotFound)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "run draw")
	defer cancel()

	res, err := h.Svc.RunDraw(ctx, id, u.ID)
	if err != nil {
		h.Svc.Hub().Flash(u.ID, exchange.Flash{
			GroupID: id.Hex(),
			Kind:    exchange.FlashError,
			Message: uierrors.BodyFor(err).Message,
		})
		h.ErrLog.Fail(w, r, "draw failed", err, zap.String("group_id", id.Hex()), zap.String("user_id", u.ID))
		return
	}

	g := res.Group
	h.AuditLog.DrawRun(r.Context(), r, u.ID, g.ID, len(g.MemberIDs), res.Redraw)
	h.Svc.Hub().Flash(u.ID, exchange.Flash{
		GroupID: g.ID.Hex(),
		Kind:    exchange.FlashSuccess,
		Message: DrawSuccessMessage,
	})
	uierrors.WriteJSON(w, http.StatusOK, drawResponse{
		GroupID:     g.ID.Hex(),
		MemberCount: len(g.MemberIDs),
		Redraw:      res.Redraw,
		DrawRunAt:   g.DrawRunAt,
	})
}

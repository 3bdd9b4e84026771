// internal/app/features/groups/list.go
package groups

import (
	"encoding/json"
	"net/http"

	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/normalize"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeList handles GET /groups?selected=<id>: a one-shot directory view.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list groups")
	defer cancel()

	selected := normalize.QueryParam(r.URL.Query().Get("selected"))
	v, err := h.Svc.Snapshot(ctx, u.ID, selected)
	if err != nil {
		h.ErrLog.Fail(w, r, "list groups failed", err, zap.String("user_id", u.ID))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, directory(v, u.ID))
}

type selectRequest struct {
	GroupID string `json:"group_id"`
}

// ServeSelect handles POST /groups/select. It moves the selection of every
// stream the caller has open.
func (h *Handler) ServeSelect(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.BadRequest(w, r, err)
		return
	}
	n := h.Svc.Hub().Select(u.ID, normalize.QueryParam(req.GroupID))
	uierrors.WriteJSON(w, http.StatusOK, map[string]int{"streams": n})
}

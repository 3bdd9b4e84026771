// internal/app/features/join/routes.go
package join

import (
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /join. Joining requires sign-in.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/{code}/schema", h.ServeSchema)
	r.Post("/{code}", h.ServeJoin)
	return r
}

// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the group directory, mounted at /groups.
// Every route requires a signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Get("/stream", h.ServeStream)
	r.Post("/select", h.ServeSelect)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.ServeView)
		r.Delete("/", h.ServeDelete)
		r.Post("/draw", h.ServeDraw)
		r.Get("/assignment", h.ServeAssignment)
	})
	return r
}

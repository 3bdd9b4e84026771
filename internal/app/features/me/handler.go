// internal/app/features/me/handler.go
package me

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/system/auth"
)

// Handler reports the current identity.
type Handler struct{}

// NewHandler creates a new me handler.
func NewHandler() *Handler {
	return &Handler{}
}

type identityResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
}

// ServeMe handles GET /me. Signed-out callers get {"isAuthenticated":false}.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, ok := auth.CurrentUser(r)
	if !ok {
		_ = json.NewEncoder(w).Encode(identityResponse{})
		return
	}

	id := u.Identity()
	_ = json.NewEncoder(w).Encode(identityResponse{
		IsAuthenticated: true,
		ID:              id.ID,
		Name:            id.Name(),
		Email:           id.Email,
		Phone:           id.Phone,
		PhotoURL:        id.PhotoURL,
	})
}

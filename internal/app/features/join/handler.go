// internal/app/features/join/handler.go
package join

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/auditlog"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/dalemusser/giftexchange/internal/app/system/normalize"
	"github.com/dalemusser/giftexchange/internal/app/system/ratelimit"
	"github.com/dalemusser/giftexchange/internal/app/system/timeouts"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves join-by-code.
type Handler struct {
	Svc      *exchange.Service
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Limiter  *ratelimit.LookupLimiter
	Log      *zap.Logger
}

// NewHandler creates a join Handler. A nil limiter disables rate limiting.
func NewHandler(svc *exchange.Service, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, limiter *ratelimit.LookupLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:      svc,
		ErrLog:   errLog,
		AuditLog: audit,
		Limiter:  limiter,
		Log:      logger,
	}
}

type schemaResponse struct {
	Code         string               `json:"code"`
	CustomFields []models.CustomField `json:"custom_fields"`
}

// ServeSchema handles GET /join/{code}/schema. Clients call it as the code
// is typed, so it is rate limited, and any failure reads as "no questions".
func (h *Handler) ServeSchema(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Fail(w, r, "no signed-in user", auth.ErrAuthFailure)
		return
	}
	if h.Limiter != nil {
		allowed := h.Limiter.Check(r, u.ID)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(h.Limiter.Remaining(u.ID)))
		if !allowed {
			h.ErrLog.TooManyRequests(w, r)
			return
		}
	}

	code := normalize.JoinCode(chi.URLParam(r, "code"))
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load join schema")
	defer cancel()

	uierrors.WriteJSON(w, http.StatusOK, schemaResponse{
		Code:         code,
		CustomFields: h.Svc.LoadJoinSchema(ctx, code),
	})
}

type joinRequest struct {
	Responses map[models.FieldID]string `json:"responses"`
}

type joinResponse struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
}

// ServeJoin handles POST /join/{code}.
//
//	{ "responses": { "<field id>": "answer", ... } }
//
// An empty body is allowed for groups without questions.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Fail(w, r, "no signed-in user", auth.ErrAuthFailure)
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.ErrLog.BadRequest(w, r, err)
		return
	}

	code := normalize.JoinCode(chi.URLParam(r, "code"))
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "join group")
	defer cancel()

	g, err := h.Svc.Join(ctx, code, u.Identity(), req.Responses)
	if err != nil {
		h.ErrLog.Fail(w, r, "join failed", err, zap.String("code", code), zap.String("user_id", u.ID))
		return
	}

	h.AuditLog.MemberJoined(r.Context(), r, u.ID, g.ID)
	h.Svc.Hub().SelectNew(u.ID, g.ID.Hex())
	uierrors.WriteJSON(w, http.StatusCreated, joinResponse{GroupID: g.ID.Hex(), Name: g.Name})
}

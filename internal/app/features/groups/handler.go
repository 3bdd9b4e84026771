// internal/app/features/groups/handler.go
package groups

import (
	"net/http"
	"time"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	uierrors "github.com/dalemusser/giftexchange/internal/app/features/errors"
	"github.com/dalemusser/giftexchange/internal/app/system/auditlog"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultHeartbeat is how often an idle stream sends a comment line.
const DefaultHeartbeat = 15 * time.Second

// Handler serves the group directory and the organizer actions.
type Handler struct {
	Svc       *exchange.Service
	ErrLog    *uierrors.ErrorLogger
	AuditLog  *auditlog.Logger
	Log       *zap.Logger
	Heartbeat time.Duration
}

// NewHandler creates a groups Handler.
func NewHandler(svc *exchange.Service, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:       svc,
		ErrLog:    errLog,
		AuditLog:  audit,
		Log:       logger,
		Heartbeat: DefaultHeartbeat,
	}
}

// signedIn returns the caller. Routes are mounted behind RequireSignedIn,
// so a missing user is a wiring error reported as an auth failure.
func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Fail(w, r, "no signed-in user", auth.ErrAuthFailure)
		return nil, false
	}
	return u, true
}

// groupID parses the {id} URL parameter. An unparseable id is a missing group.
func groupID(r *http.Request) (primitive.ObjectID, bool) {
	return exchange.ParseCode(chi.URLParam(r, "id"))
}

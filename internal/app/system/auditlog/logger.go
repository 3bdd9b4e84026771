// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/giftexchange/internal/app/store/audit"
	"github.com/dalemusser/giftexchange/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration per category.
type Config struct {
	// Auth covers login_success, login_failed, logout.
	Auth string
	// Group covers group_created, member_joined, draw_run, group_deleted.
	Group string
}

// Logger writes audit events to MongoDB (via audit.Store) and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case
// "db" destinations are skipped.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.GroupID != nil {
		fields = append(fields, zap.String("group_id", event.GroupID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so tests can pass nil.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryGroup:
		setting = l.config.Group
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func requestEvent(r *http.Request, category, eventType, userID string) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		UserID:    userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a completed sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, provider string) {
	ev := requestEvent(r, audit.CategoryAuth, audit.EventLoginSuccess, userID)
	ev.Details = map[string]string{"provider": provider}
	l.Log(ctx, ev)
}

// LoginFailed logs a sign-in the provider did not complete.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, provider, reason string) {
	ev := requestEvent(r, audit.CategoryAuth, audit.EventLoginFailed, "")
	ev.Success = false
	ev.FailureReason = reason
	ev.Details = map[string]string{"provider": provider}
	l.Log(ctx, ev)
}

// Logout logs a user logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, requestEvent(r, audit.CategoryAuth, audit.EventLogout, userID))
}

// --- Group Events ---

// GroupCreated logs a new group.
func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, ownerID string, groupID primitive.ObjectID, groupName string, fieldCount int) {
	ev := requestEvent(r, audit.CategoryGroup, audit.EventGroupCreated, ownerID)
	ev.GroupID = &groupID
	ev.Details = map[string]string{
		"group_name":  groupName,
		"field_count": strconv.Itoa(fieldCount),
	}
	l.Log(ctx, ev)
}

// MemberJoined logs a successful join.
func (l *Logger) MemberJoined(ctx context.Context, r *http.Request, userID string, groupID primitive.ObjectID) {
	ev := requestEvent(r, audit.CategoryGroup, audit.EventMemberJoined, userID)
	ev.GroupID = &groupID
	l.Log(ctx, ev)
}

// DrawRun logs a committed draw.
func (l *Logger) DrawRun(ctx context.Context, r *http.Request, ownerID string, groupID primitive.ObjectID, memberCount int, redraw bool) {
	ev := requestEvent(r, audit.CategoryGroup, audit.EventDrawRun, ownerID)
	ev.GroupID = &groupID
	ev.Details = map[string]string{
		"member_count": strconv.Itoa(memberCount),
		"redraw":       strconv.FormatBool(redraw),
	}
	l.Log(ctx, ev)
}

// GroupDeleted logs a deleted group.
func (l *Logger) GroupDeleted(ctx context.Context, r *http.Request, ownerID string, groupID primitive.ObjectID, groupName string) {
	ev := requestEvent(r, audit.CategoryGroup, audit.EventGroupDeleted, ownerID)
	ev.GroupID = &groupID
	ev.Details = map[string]string{"group_name": groupName}
	l.Log(ctx, ev)
}

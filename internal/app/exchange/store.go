// internal/app/exchange/store.go
package exchange

import (
	"context"

	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupStore is the shared-state service the core runs against.
// groupstore.Store (Mongo) and groupstore.Memory both satisfy it.
//
// Watch delivers whole, sorted snapshots of userID's groups to onNext and
// failures to onError until stop is called or ctx ends. Owner-only writes
// re-check ownerID in the store so a stale read cannot authorize them.
type GroupStore interface {
	Watch(ctx context.Context, userID string, onNext func([]models.Group), onError func(error)) (stop func())
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	ListByMember(ctx context.Context, userID string) ([]models.Group, error)
	Create(ctx context.Context, g models.Group) (models.Group, error)
	AddMember(ctx context.Context, id primitive.ObjectID, userID string, profile models.MemberProfile, responses map[models.FieldID]string) error
	SetAssignments(ctx context.Context, id primitive.ObjectID, ownerID string, expectedMembers []string, assignments map[string]models.Assignment) (models.Group, error)
	Delete(ctx context.Context, id primitive.ObjectID, ownerID string) error
}

// ParseCode turns a join code (or group id) into an ObjectID. Anything that
// is not a 24-character hex string resolves to no group.
func ParseCode(code string) (primitive.ObjectID, bool) {
	if len(code) != MinCodeLength {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(code)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// MinCodeLength is the length of a join code. Shorter input is never
// looked up.
const MinCodeLength = 24

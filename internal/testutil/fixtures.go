package testutil

import (
	"context"
	"testing"

	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupWriter is the part of a group store fixtures need.
type GroupWriter interface {
	Create(ctx context.Context, g models.Group) (models.Group, error)
	AddMember(ctx context.Context, id primitive.ObjectID, userID string, profile models.MemberProfile, responses map[models.FieldID]string) error
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	store GroupWriter
	t     *testing.T
}

// NewFixtures creates a new Fixtures instance backed by store.
func NewFixtures(t *testing.T, store GroupWriter) *Fixtures {
	t.Helper()
	return &Fixtures{store: store, t: t}
}

// CreateGroup creates a group owned by owner with the given field labels.
func (f *Fixtures) CreateGroup(ctx context.Context, owner TestUser, name string, labels ...string) models.Group {
	f.t.Helper()

	fields := make([]models.CustomField, 0, len(labels))
	for i, l := range labels {
		fields = append(fields, models.CustomField{
			ID:    models.FieldID("f_fixture_" + string(rune('a'+i))),
			Label: l,
		})
	}
	g, err := f.store.Create(ctx, models.Group{
		Name:          name,
		OwnerID:       owner.ID,
		OwnerName:     owner.Name,
		OwnerPhotoURL: models.OptionalString(owner.PhotoURL),
		MemberIDs:     []string{owner.ID},
		Members:       map[string]models.MemberProfile{owner.ID: owner.Identity().Profile()},
		CustomFields:  fields,
	})
	if err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// AddMembers joins each user to the group, answering every field with "x".
func (f *Fixtures) AddMembers(ctx context.Context, g models.Group, users ...TestUser) models.Group {
	f.t.Helper()

	answers := make(map[models.FieldID]string, len(g.CustomFields))
	for _, cf := range g.CustomFields {
		answers[cf.ID] = "x"
	}
	for _, u := range users {
		if err := f.store.AddMember(ctx, g.ID, u.ID, u.Identity().Profile(), answers); err != nil {
			f.t.Fatalf("failed to add member %s: %v", u.ID, err)
		}
	}
	out, err := f.store.GetByID(ctx, g.ID)
	if err != nil {
		f.t.Fatalf("failed to reload group: %v", err)
	}
	return out
}

// internal/app/exchange/lifecycle.go
package exchange

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/dalemusser/giftexchange/internal/app/policy/grouppolicy"
	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxNameLength        = 200
	MaxDescriptionLength = 1000
)

// CreateInput is what an organizer submits to start a group.
type CreateInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Fields      []FieldInput `json:"custom_fields,omitempty"`
}

// Create stores a new group owned by owner, with owner as its only member.
// The returned group's id is its join code.
func (s *Service) Create(ctx context.Context, owner models.Identity, in CreateInput) (models.Group, error) {
	if owner.ID == "" {
		return models.Group{}, auth.ErrAuthFailure
	}
	if !groupstore.ValidUserID(owner.ID) {
		return models.Group{}, &ValidationError{Field: "user_id", Reason: "unsupported characters"}
	}

	name := plain(in.Name)
	if name == "" {
		return models.Group{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return models.Group{}, &ValidationError{Field: "name", Reason: fmt.Sprintf("at most %d characters", MaxNameLength)}
	}
	desc := plain(in.Description)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return models.Group{}, &ValidationError{Field: "description", Reason: fmt.Sprintf("at most %d characters", MaxDescriptionLength)}
	}
	fields, err := BuildFields(in.Fields)
	if err != nil {
		return models.Group{}, err
	}

	profile := owner.Profile()
	profile.DisplayName = plain(profile.DisplayName)
	if profile.DisplayName == "" {
		profile.DisplayName = models.Identity{}.Name()
	}

	g := models.Group{
		ID:              primitive.NewObjectID(),
		Name:            name,
		Description:     models.OptionalString(desc),
		OwnerID:         owner.ID,
		OwnerName:       profile.DisplayName,
		OwnerPhotoURL:   models.CloneString(profile.PhotoURL),
		MemberIDs:       []string{owner.ID},
		Members:         map[string]models.MemberProfile{owner.ID: profile},
		CustomFields:    fields,
		MemberResponses: map[string]map[models.FieldID]string{},
	}
	created, err := s.store.Create(ctx, g)
	if err != nil {
		return models.Group{}, storeErr("create group", err)
	}
	return created, nil
}

// Delete removes the group. Only the organizer may delete it. The deleted
// group is returned so callers can report what went away.
func (s *Service) Delete(ctx context.Context, groupID primitive.ObjectID, requesterID string) (models.Group, error) {
	g, err := s.store.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, storeErr("get group", err)
	}
	if !grouppolicy.CanDelete(g, requesterID) {
		return models.Group{}, ErrForbidden
	}
	if err := s.store.Delete(ctx, groupID, requesterID); err != nil {
		return models.Group{}, storeErr("delete group", err)
	}
	return g, nil
}

// Get returns the group for one of its members.
func (s *Service) Get(ctx context.Context, groupID primitive.ObjectID, viewerID string) (models.Group, error) {
	g, err := s.store.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, storeErr("get group", err)
	}
	if !grouppolicy.CanView(g, viewerID) {
		return models.Group{}, ErrForbidden
	}
	return g, nil
}

// List returns viewerID's groups newest first, without subscribing.
func (s *Service) List(ctx context.Context, viewerID string) ([]models.Group, error) {
	groups, err := s.store.ListByMember(ctx, viewerID)
	if err != nil {
		return nil, storeErr("list groups", err)
	}
	return groups, nil
}

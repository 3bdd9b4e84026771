// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/giftexchange/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound       = errors.New("group not found")
	ErrAlreadyMember  = errors.New("user is already a member of this group")
	ErrNotOwner       = errors.New("user does not own this group")
	ErrMembersChanged = errors.New("group membership changed since it was read")
	ErrDuplicateID    = errors.New("a group with this id already exists")
)

// ValidUserID reports whether id can be used as a key under members and
// member_responses. Mongo treats "." as a path separator and "$" as an operator.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, ".") && !strings.HasPrefix(id, "$")
}

// DefaultPollInterval is used by Watch when the server has no change streams.
const DefaultPollInterval = 2 * time.Second

type Store struct {
	c            *mongo.Collection
	log          *zap.Logger
	pollInterval time.Duration
}

// Option configures a Mongo Store.
type Option func(*Store)

// WithPollInterval sets how often Watch re-queries when it cannot use a
// change stream.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLogger sets the logger Watch reports stream restarts to.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{
		c:            db.Collection("groups"),
		log:          zap.NewNop(),
		pollInterval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListByMember returns every group whose member_ids contains userID,
// newest first.
func (s *Store) ListByMember(ctx context.Context, userID string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"member_ids": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	// Mongo puts a missing created_at last in descending order already, but
	// the tie-break must match the memory store.
	SortNewestFirst(out)
	return out, nil
}

// Create inserts g with a server-assigned created_at and returns the stored
// document. A zero g.ID is replaced with a new ObjectID.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	g.NameCI = text.Fold(g.Name)

	fields := bson.M{
		"name":             g.Name,
		"name_ci":          g.NameCI,
		"owner_id":         g.OwnerID,
		"owner_name":       g.OwnerName,
		"member_ids":       nonNilStrings(g.MemberIDs),
		"members":          nonNilProfiles(g.Members),
		"custom_fields":    nonNilFields(g.CustomFields),
		"member_responses": nonNilResponses(g.MemberResponses),
	}
	if g.Description != nil {
		fields["description"] = *g.Description
	}
	if g.OwnerPhotoURL != nil {
		fields["owner_photo_url"] = *g.OwnerPhotoURL
	}

	// The created_at guard keeps an existing document from matching, so a
	// reused id becomes a duplicate-key insert instead of an update.
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": g.ID, "created_at": bson.M{"$exists": false}},
		bson.M{
			"$setOnInsert": fields,
			"$currentDate": bson.M{"created_at": true},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateID
		}
		return models.Group{}, err
	}
	if res.UpsertedCount == 0 {
		return models.Group{}, ErrDuplicateID
	}
	return s.GetByID(ctx, g.ID)
}

// AddMember adds userID to the group with its profile and responses in one
// update. The filter excludes existing members, so concurrent joins by
// different users all land and a repeat join by the same user matches nothing.
func (s *Store) AddMember(ctx context.Context, id primitive.ObjectID, userID string, profile models.MemberProfile, responses map[models.FieldID]string) error {
	if !ValidUserID(userID) {
		return fmt.Errorf("add member: invalid user id %q", userID)
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "member_ids": bson.M{"$ne": userID}},
		bson.M{
			"$addToSet": bson.M{"member_ids": userID},
			"$set": bson.M{
				"members." + userID:          profile,
				"member_responses." + userID: nonNilAnswers(responses),
			},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	g, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.HasMember(userID) {
		return ErrAlreadyMember
	}
	return ErrNotFound
}

// SetAssignments replaces the assignment map and stamps draw_run_at, but only
// while ownerID still owns the group and member_ids equals expectedMembers.
// It returns the updated group.
func (s *Store) SetAssignments(ctx context.Context, id primitive.ObjectID, ownerID string, expectedMembers []string, assignments map[string]models.Assignment) (models.Group, error) {
	var g models.Group
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "owner_id": ownerID, "member_ids": nonNilStrings(expectedMembers)},
		bson.M{
			"$set":         bson.M{"assignments": assignments},
			"$currentDate": bson.M{"draw_run_at": true},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&g)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Group{}, err
	}
	if current.OwnerID != ownerID {
		return models.Group{}, ErrNotOwner
	}
	return models.Group{}, ErrMembersChanged
}

// Delete removes the group when ownerID owns it.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID, ownerID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrNotOwner
}

// SortNewestFirst orders groups by created_at descending. Groups without a
// timestamp sort last; ties fall back to id descending so the order is stable.
func SortNewestFirst(groups []models.Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].CreatedUnix(), groups[j].CreatedUnix()
		if a != b {
			return a > b
		}
		return groups[i].ID.Hex() > groups[j].ID.Hex()
	})
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilProfiles(m map[string]models.MemberProfile) map[string]models.MemberProfile {
	if m == nil {
		return map[string]models.MemberProfile{}
	}
	return m
}

func nonNilFields(f []models.CustomField) []models.CustomField {
	if f == nil {
		return []models.CustomField{}
	}
	return f
}

func nonNilResponses(m map[string]map[models.FieldID]string) map[string]map[models.FieldID]string {
	if m == nil {
		return map[string]map[models.FieldID]string{}
	}
	return m
}

func nonNilAnswers(m map[models.FieldID]string) map[models.FieldID]string {
	if m == nil {
		return map[models.FieldID]string{}
	}
	return m
}

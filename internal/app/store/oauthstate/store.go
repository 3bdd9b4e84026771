// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// State is a pending sign-in. The token doubles as the OAuth2 state
// parameter and is consumed exactly once on callback.
type State struct {
	State     string    `bson:"state"`
	ReturnTo  string    `bson:"return_to,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB. Indexes (unique state and
// a TTL on expires_at) are created by the indexes package.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{
		c:   db.Collection("oauth_states"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Save stores a state token that is valid for ttl.
func (s *Store) Save(ctx context.Context, state, returnTo string, ttl time.Duration) error {
	now := s.now()
	_, err := s.c.InsertOne(ctx, State{
		State:     state,
		ReturnTo:  returnTo,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	return err
}

// Consume deletes the token and returns its return path. ok is false when
// the token is unknown, expired, or was already used.
func (s *Store) Consume(ctx context.Context, state string) (returnTo string, ok bool, err error) {
	var st State
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": s.now()},
	}).Decode(&st)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return st.ReturnTo, true, nil
}

// CleanupExpired removes expired state tokens. The TTL monitor only runs
// about once a minute, so the cleanup worker calls this as a backstop.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": s.now()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

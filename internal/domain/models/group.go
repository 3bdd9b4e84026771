// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a gift exchange. Its ObjectID hex doubles as the join code.
//
// NOTE:
//   - Members, MemberResponses and Assignments hold copies of profile data
//     taken at join/draw time. They are never live references.
//   - CustomFields is fixed when the group is created.
type Group struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	NameCI        string             `bson:"name_ci" json:"-"`
	Description   *string            `bson:"description,omitempty" json:"description,omitempty"`
	OwnerID       string             `bson:"owner_id" json:"owner_id"`
	OwnerName     string             `bson:"owner_name" json:"owner_name"`
	OwnerPhotoURL *string            `bson:"owner_photo_url,omitempty" json:"owner_photo_url,omitempty"`

	MemberIDs       []string                      `bson:"member_ids" json:"member_ids"`
	Members         map[string]MemberProfile      `bson:"members" json:"members"`
	CustomFields    []CustomField                 `bson:"custom_fields" json:"custom_fields"`
	MemberResponses map[string]map[FieldID]string `bson:"member_responses" json:"-"`

	// Assignments is keyed by giver id. Nil until the first draw.
	Assignments map[string]Assignment `bson:"assignments,omitempty" json:"-"`

	CreatedAt *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	DrawRunAt *time.Time `bson:"draw_run_at,omitempty" json:"draw_run_at,omitempty"`
}

// MemberProfile is the display snapshot stored for each member.
type MemberProfile struct {
	DisplayName string  `bson:"display_name" json:"display_name"`
	PhotoURL    *string `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
}

// Assignment names the member a giver buys for.
type Assignment struct {
	RecipientID       string  `bson:"recipient_id" json:"recipient_id"`
	RecipientName     string  `bson:"recipient_name" json:"recipient_name"`
	RecipientPhotoURL *string `bson:"recipient_photo_url,omitempty" json:"recipient_photo_url,omitempty"`
}

// JoinCode returns the shareable code for the group.
func (g Group) JoinCode() string {
	return g.ID.Hex()
}

// HasMember reports whether userID is in MemberIDs.
func (g Group) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AssignmentFor returns the assignment where userID is the giver.
func (g Group) AssignmentFor(userID string) (Assignment, bool) {
	a, ok := g.Assignments[userID]
	return a, ok
}

// CreatedUnix is the sort key for directory ordering. Groups still waiting
// on a server timestamp sort as zero.
func (g Group) CreatedUnix() int64 {
	if g.CreatedAt == nil {
		return 0
	}
	return g.CreatedAt.UnixNano()
}

// Clone returns a deep copy so callers can hold a snapshot without aliasing
// maps or slices owned by someone else.
func (g Group) Clone() Group {
	out := g
	out.Description = CloneString(g.Description)
	out.OwnerPhotoURL = CloneString(g.OwnerPhotoURL)
	out.CreatedAt = cloneTime(g.CreatedAt)
	out.DrawRunAt = cloneTime(g.DrawRunAt)

	if g.MemberIDs != nil {
		out.MemberIDs = append([]string(nil), g.MemberIDs...)
	}
	if g.Members != nil {
		out.Members = make(map[string]MemberProfile, len(g.Members))
		for k, v := range g.Members {
			out.Members[k] = v.Clone()
		}
	}
	if g.CustomFields != nil {
		out.CustomFields = make([]CustomField, len(g.CustomFields))
		for i, f := range g.CustomFields {
			out.CustomFields[i] = f.Clone()
		}
	}
	if g.MemberResponses != nil {
		out.MemberResponses = make(map[string]map[FieldID]string, len(g.MemberResponses))
		for k, v := range g.MemberResponses {
			out.MemberResponses[k] = CloneResponses(v)
		}
	}
	if g.Assignments != nil {
		out.Assignments = make(map[string]Assignment, len(g.Assignments))
		for k, v := range g.Assignments {
			out.Assignments[k] = v.Clone()
		}
	}
	return out
}

// Clone copies the profile, including the optional photo URL.
func (p MemberProfile) Clone() MemberProfile {
	p.PhotoURL = CloneString(p.PhotoURL)
	return p
}

// Clone copies the assignment, including the optional photo URL.
func (a Assignment) Clone() Assignment {
	a.RecipientPhotoURL = CloneString(a.RecipientPhotoURL)
	return a
}

// CloneString copies an optional string so the result shares no memory
// with the input.
func CloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// OptionalString returns nil for the empty string.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value or "" when nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// internal/app/exchange/membership.go
package exchange

import (
	"context"
	"errors"

	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.uber.org/zap"
)

// Schema lookup outcomes, used as metric labels.
const (
	lookupFound   = "found"
	lookupEmpty   = "empty"
	lookupSkipped = "skipped"
	lookupError   = "error"
)

// LoadJoinSchema returns the custom fields a joiner must answer for code.
// It never fails: an implausible code, a missing group, or a store error all
// yield an empty schema. Concurrent lookups of one code share a single read.
func (s *Service) LoadJoinSchema(ctx context.Context, code string) []models.CustomField {
	id, ok := ParseCode(code)
	if !ok {
		s.metrics.ObserveSchemaLookup(lookupSkipped)
		return []models.CustomField{}
	}

	v, err, _ := s.schemaLookups.Do(id.Hex(), func() (any, error) {
		g, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return g.CustomFields, nil
	})
	switch {
	case errors.Is(err, groupstore.ErrNotFound):
		s.metrics.ObserveSchemaLookup(lookupEmpty)
		return []models.CustomField{}
	case err != nil:
		s.log.Warn("join schema lookup failed", zap.String("group_id", id.Hex()), zap.Error(err))
		s.metrics.ObserveSchemaLookup(lookupError)
		return []models.CustomField{}
	}

	shared := v.([]models.CustomField)
	if len(shared) == 0 {
		s.metrics.ObserveSchemaLookup(lookupEmpty)
		return []models.CustomField{}
	}
	s.metrics.ObserveSchemaLookup(lookupFound)
	// singleflight hands every waiter the same slice.
	out := make([]models.CustomField, len(shared))
	for i, f := range shared {
		out[i] = f.Clone()
	}
	return out
}

// Join adds who to the group at code. Every custom field in the group's
// current schema needs a non-blank answer; answers to unknown fields are
// dropped. Membership, profile and answers are written in one update.
func (s *Service) Join(ctx context.Context, code string, who models.Identity, responses map[models.FieldID]string) (models.Group, error) {
	g, err := s.join(ctx, code, who, responses)
	s.metrics.ObserveJoin(string(Classify(err)))
	return g, err
}

func (s *Service) join(ctx context.Context, code string, who models.Identity, responses map[models.FieldID]string) (models.Group, error) {
	if who.ID == "" {
		return models.Group{}, auth.ErrAuthFailure
	}
	if !groupstore.ValidUserID(who.ID) {
		return models.Group{}, &ValidationError{Field: "user_id", Reason: "unsupported characters"}
	}
	id, ok := ParseCode(code)
	if !ok {
		return models.Group{}, ErrNotFound
	}

	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.Group{}, storeErr("get group", err)
	}
	if g.HasMember(who.ID) {
		return models.Group{}, ErrAlreadyMember
	}

	answers, missing := collectAnswers(g.CustomFields, responses)
	if len(missing) > 0 {
		return models.Group{}, &IncompleteResponsesError{Labels: missing}
	}

	profile := who.Profile()
	profile.DisplayName = plain(profile.DisplayName)
	if profile.DisplayName == "" {
		profile.DisplayName = models.Identity{}.Name()
	}
	if err := s.store.AddMember(ctx, id, who.ID, profile, answers); err != nil {
		return models.Group{}, storeErr("add member", err)
	}

	joined, err := s.store.GetByID(ctx, id)
	if err != nil {
		// The join landed; only the follow-up read failed.
		s.log.Warn("re-read after join failed", zap.String("group_id", id.Hex()), zap.Error(err))
		g.MemberIDs = append(g.MemberIDs, who.ID)
		if g.Members == nil {
			g.Members = make(map[string]models.MemberProfile)
		}
		g.Members[who.ID] = profile
		if g.MemberResponses == nil {
			g.MemberResponses = make(map[string]map[models.FieldID]string)
		}
		g.MemberResponses[who.ID] = answers
		return g, nil
	}
	return joined, nil
}

// collectAnswers keeps the trimmed plain-text answer for every schema field
// and returns the labels of those left blank, in schema order.
func collectAnswers(fields []models.CustomField, responses map[models.FieldID]string) (map[models.FieldID]string, []string) {
	answers := make(map[models.FieldID]string, len(fields))
	var missing []string
	for _, f := range fields {
		v := plain(responses[f.ID])
		if v == "" {
			missing = append(missing, f.Label)
			continue
		}
		answers[f.ID] = v
	}
	return answers, missing
}

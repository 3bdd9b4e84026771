// internal/app/exchange/draw.go
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/giftexchange/internal/app/policy/grouppolicy"
	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Assign builds the assignments for a shuffled member order: the member at
// position i gives to the member at position (i+1) mod n. The result is one
// cycle through every member, so nobody draws themselves when n >= 2.
// Recipient display data is copied out of members.
func Assign(order []string, members map[string]models.MemberProfile) map[string]models.Assignment {
	n := len(order)
	out := make(map[string]models.Assignment, n)
	for i, giver := range order {
		recipient := order[(i+1)%n]
		p, ok := members[recipient]
		if !ok {
			p = models.MemberProfile{DisplayName: models.Identity{}.Name()}
		}
		out[giver] = models.Assignment{
			RecipientID:       recipient,
			RecipientName:     p.DisplayName,
			RecipientPhotoURL: models.CloneString(p.PhotoURL),
		}
	}
	return out
}

// DrawResult is a committed draw.
type DrawResult struct {
	Group models.Group
	// Redraw is true when the group already had assignments.
	Redraw bool
}

// RunDraw shuffles the group's members and commits a fresh assignment map,
// replacing any earlier one. Only the organizer may draw, and the group
// needs at least two members. The commit only applies to the exact member
// list that was shuffled; if someone joins in between, the draw starts over.
func (s *Service) RunDraw(ctx context.Context, groupID primitive.ObjectID, requesterID string) (DrawResult, error) {
	start := s.now()
	res, err := s.runDraw(ctx, groupID, requesterID)
	s.metrics.ObserveDraw(string(Classify(err)), s.now().Sub(start).Seconds())
	if err != nil && Classify(err) == CategoryStoreUnavailable {
		s.log.Error("draw failed", zap.String("group_id", groupID.Hex()), zap.String("user_id", requesterID), zap.Error(err))
	}
	return res, err
}

func (s *Service) runDraw(ctx context.Context, groupID primitive.ObjectID, requesterID string) (DrawResult, error) {
	// Ownership is settled before the in-flight guard, so a non-owner is
	// refused the same way whether or not a draw is running.
	g, err := s.store.GetByID(ctx, groupID)
	if err != nil {
		return DrawResult{}, storeErr("get group", err)
	}
	if !grouppolicy.CanDraw(g, requesterID) {
		return DrawResult{}, ErrForbidden
	}

	if !s.beginDraw(groupID) {
		return DrawResult{}, ErrDrawInProgress
	}
	defer s.endDraw(groupID)

	for attempt := 1; attempt <= s.attempts; attempt++ {
		g, err := s.store.GetByID(ctx, groupID)
		if err != nil {
			return DrawResult{}, storeErr("get group", err)
		}
		if !grouppolicy.CanDraw(g, requesterID) {
			return DrawResult{}, ErrForbidden
		}
		if len(g.MemberIDs) < 2 {
			return DrawResult{}, ErrInsufficientMembers
		}

		order := append([]string(nil), g.MemberIDs...)
		s.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		updated, err := s.store.SetAssignments(ctx, groupID, requesterID, g.MemberIDs, Assign(order, g.Members))
		if errors.Is(err, groupstore.ErrMembersChanged) {
			s.log.Debug("members changed during draw, retrying",
				zap.String("group_id", groupID.Hex()), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return DrawResult{}, storeErr("set assignments", err)
		}
		return DrawResult{Group: updated, Redraw: g.Assignments != nil}, nil
	}
	return DrawResult{}, &StoreError{
		Op:  "set assignments",
		Err: fmt.Errorf("membership kept changing after %d attempts: %w", s.attempts, groupstore.ErrMembersChanged),
	}
}

// beginDraw marks groupID as drawing. It reports false when a draw for the
// group is already in flight.
func (s *Service) beginDraw(groupID primitive.ObjectID) bool {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()
	if _, busy := s.drawing[groupID]; busy {
		return false
	}
	s.drawing[groupID] = struct{}{}
	return true
}

func (s *Service) endDraw(groupID primitive.ObjectID) {
	s.drawMu.Lock()
	delete(s.drawing, groupID)
	s.drawMu.Unlock()
}

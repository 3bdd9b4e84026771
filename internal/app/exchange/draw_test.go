package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/app/system/metrics"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/dalemusser/giftexchange/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// assertSingleCycle checks that assignments pair every member with exactly
// one other member and that the giver chain visits everyone once.
func assertSingleCycle(t *testing.T, memberIDs []string, assignments map[string]models.Assignment) {
	t.Helper()
	if len(assignments) != len(memberIDs) {
		t.Fatalf("got %d assignments for %d members", len(assignments), len(memberIDs))
	}
	received := make(map[string]bool, len(memberIDs))
	for _, giver := range memberIDs {
		a, ok := assignments[giver]
		if !ok {
			t.Fatalf("member %s has no assignment", giver)
		}
		if a.RecipientID == giver {
			t.Fatalf("member %s drew themselves", giver)
		}
		if received[a.RecipientID] {
			t.Fatalf("member %s receives twice", a.RecipientID)
		}
		received[a.RecipientID] = true
	}

	start := memberIDs[0]
	seen := map[string]bool{start: true}
	cur := start
	for i := 1; i < len(memberIDs); i++ {
		cur = assignments[cur].RecipientID
		if seen[cur] {
			t.Fatalf("chain from %s closed after %d of %d members", start, i, len(memberIDs))
		}
		seen[cur] = true
	}
	if assignments[cur].RecipientID != start {
		t.Fatalf("chain does not return to %s", start)
	}
}

func seededShuffle(seed uint64) ShuffleFunc {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Shuffle
}

func TestAssign_FixedOrder(t *testing.T) {
	members := map[string]models.MemberProfile{
		"a": {DisplayName: "Ann"},
		"b": {DisplayName: "Ben", PhotoURL: models.OptionalString("https://img.test/b.png")},
		"c": {DisplayName: "Cy"},
	}
	got := Assign([]string{"a", "b", "c"}, members)

	want := map[string]string{"a": "b", "b": "c", "c": "a"}
	for giver, recipient := range want {
		if got[giver].RecipientID != recipient {
			t.Errorf("%s -> %s, want %s", giver, got[giver].RecipientID, recipient)
		}
	}
	if got["a"].RecipientName != "Ben" || models.Deref(got["a"].RecipientPhotoURL) != "https://img.test/b.png" {
		t.Errorf("recipient profile not captured: %+v", got["a"])
	}

	// Assignments are snapshots: later profile edits do not leak in.
	*members["b"].PhotoURL = "https://img.test/changed.png"
	members["b"] = models.MemberProfile{DisplayName: "Benjamin"}
	if got["a"].RecipientName != "Ben" || models.Deref(got["a"].RecipientPhotoURL) != "https://img.test/b.png" {
		t.Errorf("assignment changed with the profile: %+v", got["a"])
	}
}

func TestRunDraw_SingleCycleForAllSizes(t *testing.T) {
	for n := 2; n <= 12; n++ {
		for seed := uint64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("n=%d/seed=%d", n, seed), func(t *testing.T) {
				svc, store := newService(t, WithShuffle(seededShuffle(seed)))
				ctx := testCtx(t)
				fx := testutil.NewFixtures(t, store)

				owner := testutil.Owner()
				g := fx.CreateGroup(ctx, owner, "Office Party")
				guests := make([]testutil.TestUser, 0, n-1)
				for i := 0; i < n-1; i++ {
					guests = append(guests, testutil.Guest(i))
				}
				g = fx.AddMembers(ctx, g, guests...)

				res, err := svc.RunDraw(ctx, g.ID, owner.ID)
				if err != nil {
					t.Fatalf("RunDraw failed: %v", err)
				}
				assertSingleCycle(t, g.MemberIDs, res.Group.Assignments)
				if res.Group.DrawRunAt == nil {
					t.Error("draw_run_at not set")
				}
			})
		}
	}
}

func TestRunDraw_ThreeMembersOnlyValidCycles(t *testing.T) {
	valid := map[string]bool{"a>b b>c c>a": true, "a>c b>a c>b": true}
	members := map[string]models.MemberProfile{"a": {}, "b": {}, "c": {}}

	r := rand.New(rand.NewPCG(42, 7))
	for i := 0; i < 200; i++ {
		order := []string{"a", "b", "c"}
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		got := Assign(order, members)
		key := fmt.Sprintf("a>%s b>%s c>%s", got["a"].RecipientID, got["b"].RecipientID, got["c"].RecipientID)
		if !valid[key] {
			t.Fatalf("invalid assignment %q from order %v", key, order)
		}
	}
}

func TestRunDraw_OneMemberIsInsufficient(t *testing.T) {
	svc, store := newService(t)
	ctx := testCtx(t)
	owner := testutil.Owner()
	g := testutil.NewFixtures(t, store).CreateGroup(ctx, owner, "Solo")

	_, err := svc.RunDraw(ctx, g.ID, owner.ID)
	if !errors.Is(err, ErrInsufficientMembers) {
		t.Fatalf("expected ErrInsufficientMembers, got %v", err)
	}

	after, _ := store.GetByID(ctx, g.ID)
	if after.Assignments != nil || after.DrawRunAt != nil {
		t.Errorf("failed draw mutated the group: %+v", after)
	}
}

func TestRunDraw_NonOwnerForbidden(t *testing.T) {
	svc, store := newService(t)
	ctx := testCtx(t)
	fx := testutil.NewFixtures(t, store)
	owner, guest := testutil.Owner(), testutil.Guest(0)
	g := fx.AddMembers(ctx, fx.CreateGroup(ctx, owner, "Office Party"), guest, testutil.Guest(1))

	for _, requester := range []string{guest.ID, "google:stranger", ""} {
		t.Run(requester, func(t *testing.T) {
			_, err := svc.RunDraw(ctx, g.ID, requester)
			if !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}

	after, _ := store.GetByID(ctx, g.ID)
	if after.Assignments != nil || after.DrawRunAt != nil {
		t.Errorf("forbidden draw mutated the group")
	}
}

func TestRunDraw_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RunDraw(testCtx(t), primitive.NewObjectID(), "google:owner")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunDraw_ReRollReplacesAssignments(t *testing.T) {
	svc, store := newService(t, WithShuffle(seededShuffle(3)))
	ctx := testCtx(t)
	fx := testutil.NewFixtures(t, store)
	owner := testutil.Owner()
	g := fx.AddMembers(ctx, fx.CreateGroup(ctx, owner, "Office Party"),
		testutil.Guest(0), testutil.Guest(1), testutil.Guest(2))

	first, err := svc.RunDraw(ctx, g.ID, owner.ID)
	if err != nil {
		t.Fatalf("first draw failed: %v", err)
	}
	if first.Redraw {
		t.Error("first draw reported as redraw")
	}

	second, err := svc.RunDraw(ctx, g.ID, owner.ID)
	if err != nil {
		t.Fatalf("second draw failed: %v", err)
	}
	if !second.Redraw {
		t.Error("second draw not reported as redraw")
	}
	assertSingleCycle(t, g.MemberIDs, second.Group.Assignments)
	if !second.Group.DrawRunAt.After(*first.Group.DrawRunAt) {
		t.Errorf("draw_run_at not advanced: %v then %v", first.Group.DrawRunAt, second.Group.DrawRunAt)
	}
}

// gatedStore blocks SetAssignments until release is closed.
type gatedStore struct {
	*groupstore.Memory
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) SetAssignments(ctx context.Context, id primitive.ObjectID, ownerID string, expected []string, a map[string]models.Assignment) (models.Group, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.Memory.SetAssignments(ctx, id, ownerID, expected, a)
}

func TestRunDraw_RejectsConcurrentDraw(t *testing.T) {
	mem := newMemoryStore()
	store := &gatedStore{Memory: mem, entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := New(store)
	ctx := testCtx(t)
	fx := testutil.NewFixtures(t, mem)
	owner := testutil.Owner()
	g := fx.AddMembers(ctx, fx.CreateGroup(ctx, owner, "Office Party"), testutil.Guest(0))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = svc.RunDraw(ctx, g.ID, owner.ID)
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first draw never reached the store")
	}

	if _, err := svc.RunDraw(ctx, g.ID, owner.ID); !errors.Is(err, ErrDrawInProgress) {
		t.Errorf("expected ErrDrawInProgress, got %v", err)
	}
	if _, err := svc.RunDraw(ctx, g.ID, testutil.Guest(0).ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-owner during a draw: expected ErrForbidden, got %v", err)
	}

	close(store.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first draw failed: %v", firstErr)
	}

	// Once the first commit resolves, re-rolling works again.
	go func() { <-store.entered }()
	if _, err := svc.RunDraw(ctx, g.ID, owner.ID); err != nil {
		t.Errorf("draw after completion failed: %v", err)
	}
}

// joiningStore lets a new member in right before each commit.
type joiningStore struct {
	*groupstore.Memory
	joinsLeft int
	joined    int
}

func (s *joiningStore) SetAssignments(ctx context.Context, id primitive.ObjectID, ownerID string, expected []string, a map[string]models.Assignment) (models.Group, error) {
	if s.joinsLeft > 0 {
		s.joinsLeft--
		u := testutil.Guest(10 + s.joined)
		s.joined++
		if err := s.Memory.AddMember(ctx, id, u.ID, u.Identity().Profile(), nil); err != nil {
			return models.Group{}, err
		}
	}
	return s.Memory.SetAssignments(ctx, id, ownerID, expected, a)
}

func TestRunDraw_RetriesWhenMembersChange(t *testing.T) {
	mem := newMemoryStore()
	store := &joiningStore{Memory: mem, joinsLeft: 1}
	svc := New(store)
	ctx := testCtx(t)
	fx := testutil.NewFixtures(t, mem)
	owner := testutil.Owner()
	g := fx.AddMembers(ctx, fx.CreateGroup(ctx, owner, "Office Party"), testutil.Guest(0))

	res, err := svc.RunDraw(ctx, g.ID, owner.ID)
	if err != nil {
		t.Fatalf("RunDraw failed: %v", err)
	}
	if len(res.Group.MemberIDs) != 3 {
		t.Fatalf("expected the late joiner to be included, members = %v", res.Group.MemberIDs)
	}
	assertSingleCycle(t, res.Group.MemberIDs, res.Group.Assignments)
}

func TestRunDraw_GivesUpWhenMembersKeepChanging(t *testing.T) {
	mem := newMemoryStore()
	store := &joiningStore{Memory: mem, joinsLeft: DefaultDrawAttempts}
	svc := New(store)
	ctx := testCtx(t)
	fx := testutil.NewFixtures(t, mem)
	owner := testutil.Owner()
	g := fx.AddMembers(ctx, fx.CreateGroup(ctx, owner, "Office Party"), testutil.Guest(0))

	_, err := svc.RunDraw(ctx, g.ID, owner.ID)
	if Classify(err) != CategoryStoreUnavailable || !errors.Is(err, groupstore.ErrMembersChanged) {
		t.Fatalf("expected store failure wrapping ErrMembersChanged, got %v", err)
	}
	after, _ := mem.GetByID(ctx, g.ID)
	if after.Assignments != nil {
		t.Error("abandoned draw left assignments behind")
	}
}

func TestRunDraw_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc, store := newService(t, WithMetrics(metrics.New(reg)))
	ctx := testCtx(t)
	fx := testutil.NewFixtures(t, store)
	owner := testutil.Owner()
	g := fx.AddMembers(ctx, fx.CreateGroup(ctx, owner, "Office Party"), testutil.Guest(0))

	if _, err := svc.RunDraw(ctx, g.ID, owner.ID); err != nil {
		t.Fatalf("RunDraw failed: %v", err)
	}
	_, _ = svc.RunDraw(ctx, g.ID, testutil.Guest(0).ID)

	want := `
# HELP giftexchange_draws_total Draw attempts by outcome.
# TYPE giftexchange_draws_total counter
giftexchange_draws_total{outcome="forbidden"} 1
giftexchange_draws_total{outcome="ok"} 1
`
	if err := promtest.GatherAndCompare(reg, strings.NewReader(want), "giftexchange_draws_total"); err != nil {
		t.Error(err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "giftexchange_draw_duration_seconds" {
			continue
		}
		if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
			t.Errorf("draw duration observations = %d, want 1 (successful draws only)", got)
		}
		return
	}
	t.Error("draw duration histogram not registered")
}

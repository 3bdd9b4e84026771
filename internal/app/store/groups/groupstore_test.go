package groupstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/dalemusser/giftexchange/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// contractStore is the method set shared by Store and Memory.
type contractStore interface {
	Watch(ctx context.Context, userID string, onNext func([]models.Group), onError func(error)) (stop func())
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	ListByMember(ctx context.Context, userID string) ([]models.Group, error)
	Create(ctx context.Context, g models.Group) (models.Group, error)
	AddMember(ctx context.Context, id primitive.ObjectID, userID string, profile models.MemberProfile, responses map[models.FieldID]string) error
	SetAssignments(ctx context.Context, id primitive.ObjectID, ownerID string, expectedMembers []string, assignments map[string]models.Assignment) (models.Group, error)
	Delete(ctx context.Context, id primitive.ObjectID, ownerID string) error
}

func stores(t *testing.T) map[string]func(t *testing.T) contractStore {
	return map[string]func(t *testing.T) contractStore{
		"memory": func(t *testing.T) contractStore { return groupstore.NewMemory() },
		"mongo": func(t *testing.T) contractStore {
			db := testutil.SetupTestDB(t)
			return groupstore.New(db, groupstore.WithPollInterval(50*time.Millisecond))
		},
	}
}

func newGroup(owner string) models.Group {
	return models.Group{
		Name:      "Office Party",
		OwnerID:   owner,
		OwnerName: "Owner " + owner,
		MemberIDs: []string{owner},
		Members: map[string]models.MemberProfile{
			owner: {DisplayName: "Owner " + owner},
		},
		CustomFields: []models.CustomField{
			{ID: "f_size", Label: "Shirt size"},
		},
	}
}

func TestStore_Create(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			created, err := s.Create(ctx, newGroup("owner"))
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if created.ID.IsZero() {
				t.Error("expected ID to be assigned")
			}
			if created.CreatedAt == nil {
				t.Error("expected server-assigned CreatedAt")
			}
			if created.NameCI == "" {
				t.Error("expected NameCI to be set")
			}
			if created.Assignments != nil {
				t.Error("expected no assignments on a new group")
			}
			if created.DrawRunAt != nil {
				t.Error("expected no draw time on a new group")
			}

			got, err := s.GetByID(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			if got.Name != "Office Party" || len(got.MemberIDs) != 1 || got.MemberIDs[0] != "owner" {
				t.Errorf("unexpected stored group: %+v", got)
			}
			if len(got.CustomFields) != 1 || got.CustomFields[0].ID != "f_size" {
				t.Errorf("custom fields not stored: %+v", got.CustomFields)
			}
		})
	}
}

func TestStore_Create_DuplicateID(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g := newGroup("owner")
			g.ID = primitive.NewObjectID()
			if _, err := s.Create(ctx, g); err != nil {
				t.Fatalf("first Create failed: %v", err)
			}
			if _, err := s.Create(ctx, g); !errors.Is(err, groupstore.ErrDuplicateID) {
				t.Errorf("expected ErrDuplicateID, got %v", err)
			}
		})
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			if _, err := s.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, groupstore.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_AddMember(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g, err := s.Create(ctx, newGroup("owner"))
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			profile := models.MemberProfile{DisplayName: "Guest"}
			answers := map[models.FieldID]string{"f_size": "M"}
			if err := s.AddMember(ctx, g.ID, "guest", profile, answers); err != nil {
				t.Fatalf("AddMember failed: %v", err)
			}

			got, _ := s.GetByID(ctx, g.ID)
			if !got.HasMember("guest") {
				t.Fatal("expected guest to be a member")
			}
			if got.Members["guest"].DisplayName != "Guest" {
				t.Errorf("profile not stored: %+v", got.Members["guest"])
			}
			if got.MemberResponses["guest"]["f_size"] != "M" {
				t.Errorf("responses not stored: %+v", got.MemberResponses["guest"])
			}

			if err := s.AddMember(ctx, g.ID, "guest", profile, answers); !errors.Is(err, groupstore.ErrAlreadyMember) {
				t.Errorf("expected ErrAlreadyMember, got %v", err)
			}
			if err := s.AddMember(ctx, primitive.NewObjectID(), "guest", profile, nil); !errors.Is(err, groupstore.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_AddMember_ConcurrentJoinsAllLand(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g, err := s.Create(ctx, newGroup("owner"))
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			const joiners = 8
			var wg sync.WaitGroup
			errs := make(chan error, joiners*2)
			for i := 0; i < joiners; i++ {
				uid := fmt.Sprintf("user%d", i)
				// Each user joins twice at once; exactly one attempt may win.
				for j := 0; j < 2; j++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						errs <- s.AddMember(ctx, g.ID, uid, models.MemberProfile{DisplayName: uid}, nil)
					}()
				}
			}
			wg.Wait()
			close(errs)

			var ok, already int
			for err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, groupstore.ErrAlreadyMember):
					already++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			if ok != joiners || already != joiners {
				t.Errorf("ok=%d already=%d, want %d each", ok, already, joiners)
			}

			got, _ := s.GetByID(ctx, g.ID)
			if len(got.MemberIDs) != joiners+1 {
				t.Errorf("member count = %d, want %d", len(got.MemberIDs), joiners+1)
			}
			for _, id := range got.MemberIDs {
				if _, ok := got.Members[id]; !ok {
					t.Errorf("member %s has no profile", id)
				}
			}
		})
	}
}

func TestStore_SetAssignments(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g, _ := s.Create(ctx, newGroup("owner"))
			_ = s.AddMember(ctx, g.ID, "guest", models.MemberProfile{DisplayName: "Guest"}, nil)
			members := []string{"owner", "guest"}
			assignments := map[string]models.Assignment{
				"owner": {RecipientID: "guest", RecipientName: "Guest"},
				"guest": {RecipientID: "owner", RecipientName: "Owner owner"},
			}

			if _, err := s.SetAssignments(ctx, g.ID, "guest", members, assignments); !errors.Is(err, groupstore.ErrNotOwner) {
				t.Errorf("expected ErrNotOwner, got %v", err)
			}
			if _, err := s.SetAssignments(ctx, g.ID, "owner", []string{"owner"}, assignments); !errors.Is(err, groupstore.ErrMembersChanged) {
				t.Errorf("expected ErrMembersChanged, got %v", err)
			}

			got, err := s.SetAssignments(ctx, g.ID, "owner", members, assignments)
			if err != nil {
				t.Fatalf("SetAssignments failed: %v", err)
			}
			if got.DrawRunAt == nil {
				t.Error("expected DrawRunAt to be set")
			}
			if got.Assignments["owner"].RecipientID != "guest" {
				t.Errorf("unexpected assignments: %+v", got.Assignments)
			}

			// A re-roll replaces the map wholesale.
			reroll := map[string]models.Assignment{
				"owner": {RecipientID: "guest", RecipientName: "Guest v2"},
				"guest": {RecipientID: "owner", RecipientName: "Owner v2"},
			}
			got, err = s.SetAssignments(ctx, g.ID, "owner", members, reroll)
			if err != nil {
				t.Fatalf("re-roll failed: %v", err)
			}
			if got.Assignments["owner"].RecipientName != "Guest v2" || len(got.Assignments) != 2 {
				t.Errorf("re-roll did not replace assignments: %+v", got.Assignments)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g, _ := s.Create(ctx, newGroup("owner"))

			if err := s.Delete(ctx, g.ID, "intruder"); !errors.Is(err, groupstore.ErrNotOwner) {
				t.Errorf("expected ErrNotOwner, got %v", err)
			}
			if _, err := s.GetByID(ctx, g.ID); err != nil {
				t.Fatalf("group should survive a non-owner delete: %v", err)
			}
			if err := s.Delete(ctx, g.ID, "owner"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := s.Delete(ctx, g.ID, "owner"); !errors.Is(err, groupstore.ErrNotFound) {
				t.Errorf("expected ErrNotFound on second delete, got %v", err)
			}
		})
	}
}

func TestStore_ListByMember_NewestFirst(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			first, _ := s.Create(ctx, newGroup("u1"))
			time.Sleep(5 * time.Millisecond)
			second, _ := s.Create(ctx, newGroup("u1"))
			_, _ = s.Create(ctx, newGroup("someone-else"))

			list, err := s.ListByMember(ctx, "u1")
			if err != nil {
				t.Fatalf("ListByMember failed: %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("expected 2 groups, got %d", len(list))
			}
			if list[0].ID != second.ID || list[1].ID != first.ID {
				t.Errorf("expected newest first, got %s then %s", list[0].ID.Hex(), list[1].ID.Hex())
			}
		})
	}
}

func TestStore_Watch_DeliversChanges(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			updates := make(chan []models.Group, 16)
			stop := s.Watch(ctx, "u1", func(gs []models.Group) { updates <- gs }, func(error) {})
			defer stop()

			waitFor(t, updates, func(gs []models.Group) bool { return len(gs) == 0 })

			g, _ := s.Create(ctx, newGroup("u1"))
			waitFor(t, updates, func(gs []models.Group) bool { return len(gs) == 1 && gs[0].ID == g.ID })

			_ = s.Delete(ctx, g.ID, "u1")
			waitFor(t, updates, func(gs []models.Group) bool { return len(gs) == 0 })

			stop()
			stop()
		})
	}
}

func waitFor(t *testing.T, ch <-chan []models.Group, match func([]models.Group) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case gs := <-ch:
			if match(gs) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for watch delivery")
		}
	}
}

func TestMemory_FailNextReachesWatchers(t *testing.T) {
	m := groupstore.NewMemory()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	errCh := make(chan error, 1)
	stop := m.Watch(ctx, "u1", func([]models.Group) {}, func(err error) { errCh <- err })
	defer stop()

	boom := errors.New("store offline")
	m.FailNext(boom)

	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not receive error")
	}
	if _, err := m.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, boom) {
		t.Errorf("expected next call to fail with boom, got %v", err)
	}
}

func TestMemory_WatchStopsOnContextCancel(t *testing.T) {
	m := groupstore.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	m.Watch(ctx, "u1", func([]models.Group) {}, func(error) {})
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for m.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := m.Subscribers(); n != 0 {
		t.Errorf("expected watcher removed after cancel, %d remain", n)
	}
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	m := groupstore.NewMemory()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g, _ := m.Create(ctx, newGroup("owner"))
	g.Members["owner"] = models.MemberProfile{DisplayName: "mutated"}
	g.MemberIDs[0] = "mutated"

	got, _ := m.GetByID(ctx, g.ID)
	if got.Members["owner"].DisplayName != "Owner owner" || got.MemberIDs[0] != "owner" {
		t.Error("mutating a returned group changed the store")
	}
}

func TestValidUserID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"google:12345", true},
		{"", false},
		{"a.b", false},
		{"$where", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := groupstore.ValidUserID(tt.id); got != tt.want {
				t.Errorf("ValidUserID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIsChangeStreamUnsupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"replica set only", mongo.CommandError{Code: 40573, Message: "The $changeStream stage is only supported on replica sets"}, true},
		{"command not supported", mongo.CommandError{Code: 115, Message: "CommandNotSupported"}, true},
		{"other command error", mongo.CommandError{Code: 100, Message: "Some other error"}, false},
		{"message only", errors.New("Change Stream is not supported on this deployment"), true},
		{"change stream transient", errors.New("change stream cursor killed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := groupstore.IsChangeStreamUnsupported(tt.err); got != tt.want {
				t.Errorf("IsChangeStreamUnsupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

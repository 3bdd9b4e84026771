package exchange

import (
	"context"
	"sync"
	"testing"
	"time"

	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/dalemusser/giftexchange/internal/testutil"
)

// steppedClock hands out strictly increasing times so created_at ordering
// in tests is deterministic.
type steppedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newSteppedClock() *steppedClock {
	return &steppedClock{t: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newMemoryStore() *groupstore.Memory {
	m := groupstore.NewMemory()
	m.SetClock(newSteppedClock().Now)
	return m
}

func newService(t *testing.T, opts ...Option) (*Service, *groupstore.Memory) {
	t.Helper()
	store := newMemoryStore()
	return New(store, opts...), store
}

func identity(u testutil.TestUser) *models.Identity {
	id := u.Identity()
	return &id
}

// waitView reads directory updates until match succeeds.
func waitView(t *testing.T, d *Directory, match func(View) bool) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if v := d.View(); match(v) {
			return v
		}
		select {
		case v := <-d.Updates():
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for view; last view: %+v", d.View())
		}
	}
}

func groupIDs(groups []models.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.ID.Hex()
	}
	return out
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	return c
}

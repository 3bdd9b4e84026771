// internal/app/store/groups/memory.go
package groupstore

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/giftexchange/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process group store with the same contract as Store.
// Every read and write copies, so callers never share maps with it.
type Memory struct {
	mu     sync.Mutex
	groups map[primitive.ObjectID]models.Group
	subs   map[*memorySub]struct{}
	now    func() time.Time

	// failNext, when set, is returned by the next store call. Tests use it
	// to simulate an unavailable store.
	failNext error
}

type memorySub struct {
	userID  string
	onNext  func([]models.Group)
	onError func(error)
	dirty   chan struct{}
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		groups: make(map[primitive.ObjectID]models.Group),
		subs:   make(map[*memorySub]struct{}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for created_at and draw_run_at.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailNext makes the next store call return err, and reports err to every
// live watcher.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	subs := m.snapshotSubs()
	m.mu.Unlock()

	for _, s := range subs {
		select {
		case s.errs <- err:
		default:
		}
	}
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Memory) snapshotSubs() []*memorySub {
	out := make([]*memorySub, 0, len(m.subs))
	for s := range m.subs {
		out = append(out, s)
	}
	return out
}

// notify marks every watcher dirty. Watchers re-read on their own goroutine,
// so a burst of writes collapses into one delivery. Callers hold m.mu.
func (m *Memory) notify() {
	for s := range m.subs {
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}
}

func (m *Memory) listLocked(userID string) []models.Group {
	out := []models.Group{}
	for _, g := range m.groups {
		if g.HasMember(userID) {
			out = append(out, g.Clone())
		}
	}
	SortNewestFirst(out)
	return out
}

// Watch delivers the user's groups now and after every change.
func (m *Memory) Watch(ctx context.Context, userID string, onNext func([]models.Group), onError func(error)) (stop func()) {
	s := &memorySub{
		userID:  userID,
		onNext:  onNext,
		onError: onError,
		dirty:   make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	s.dirty <- struct{}{}

	m.mu.Lock()
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	stopFn := func() {
		s.once.Do(func() {
			m.mu.Lock()
			delete(m.subs, s)
			m.mu.Unlock()
			close(s.done)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				stopFn()
				return
			case <-s.done:
				return
			case err := <-s.errs:
				s.onError(err)
			case <-s.dirty:
				m.mu.Lock()
				groups := m.listLocked(s.userID)
				m.mu.Unlock()
				select {
				case <-s.done:
					return
				default:
				}
				s.onNext(groups)
			}
		}
	}()
	return stopFn
}

// Subscribers returns the number of live watchers.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Group{}, err
	}
	g, ok := m.groups[id]
	if !ok {
		return models.Group{}, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) ListByMember(ctx context.Context, userID string) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.listLocked(userID), nil
}

func (m *Memory) Create(ctx context.Context, g models.Group) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Group{}, err
	}
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	if _, exists := m.groups[g.ID]; exists {
		return models.Group{}, ErrDuplicateID
	}

	g = g.Clone()
	g.NameCI = text.Fold(g.Name)
	g.MemberIDs = nonNilStrings(g.MemberIDs)
	g.Members = nonNilProfiles(g.Members)
	g.CustomFields = nonNilFields(g.CustomFields)
	g.MemberResponses = nonNilResponses(g.MemberResponses)
	g.Assignments = nil
	g.DrawRunAt = nil
	now := m.now()
	g.CreatedAt = &now

	m.groups[g.ID] = g
	m.notify()
	return g.Clone(), nil
}

func (m *Memory) AddMember(ctx context.Context, id primitive.ObjectID, userID string, profile models.MemberProfile, responses map[models.FieldID]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	g, ok := m.groups[id]
	if !ok {
		return ErrNotFound
	}
	if g.HasMember(userID) {
		return ErrAlreadyMember
	}

	g = g.Clone()
	g.MemberIDs = append(g.MemberIDs, userID)
	if g.Members == nil {
		g.Members = map[string]models.MemberProfile{}
	}
	g.Members[userID] = profile.Clone()
	if g.MemberResponses == nil {
		g.MemberResponses = map[string]map[models.FieldID]string{}
	}
	g.MemberResponses[userID] = nonNilAnswers(models.CloneResponses(responses))

	m.groups[id] = g
	m.notify()
	return nil
}

func (m *Memory) SetAssignments(ctx context.Context, id primitive.ObjectID, ownerID string, expectedMembers []string, assignments map[string]models.Assignment) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Group{}, err
	}
	g, ok := m.groups[id]
	if !ok {
		return models.Group{}, ErrNotFound
	}
	if g.OwnerID != ownerID {
		return models.Group{}, ErrNotOwner
	}
	if !sameOrder(g.MemberIDs, expectedMembers) {
		return models.Group{}, ErrMembersChanged
	}

	g = g.Clone()
	g.Assignments = make(map[string]models.Assignment, len(assignments))
	for k, v := range assignments {
		g.Assignments[k] = v.Clone()
	}
	now := m.now()
	g.DrawRunAt = &now

	m.groups[id] = g
	m.notify()
	return g.Clone(), nil
}

func (m *Memory) Delete(ctx context.Context, id primitive.ObjectID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	g, ok := m.groups[id]
	if !ok {
		return ErrNotFound
	}
	if g.OwnerID != ownerID {
		return ErrNotOwner
	}
	delete(m.groups, id)
	m.notify()
	return nil
}

// sameOrder mirrors Mongo's exact array match on member_ids.
func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

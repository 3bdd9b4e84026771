// internal/app/exchange/directory.go
package exchange

import (
	"context"
	"sync"

	"github.com/dalemusser/giftexchange/internal/app/system/metrics"
	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.uber.org/zap"
)

// BannerStoreUnavailable is shown while the live group list cannot be read.
const BannerStoreUnavailable = "We can't reach your groups right now. Retrying..."

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot action result scoped to one group.
type Flash struct {
	GroupID string `json:"group_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// View is one consistent picture of a user's directory. Groups is newest
// first and must be treated as read-only.
type View struct {
	UserID     string         `json:"-"`
	Groups     []models.Group `json:"groups"`
	SelectedID string         `json:"selected_id,omitempty"`
	Selected   *models.Group  `json:"-"`
	Banner     string         `json:"banner,omitempty"`
	Flash      *Flash         `json:"flash,omitempty"`
	Loaded     bool           `json:"loaded"`
}

// Directory owns the live list of groups one signed-in user belongs to and
// the user's current selection. It subscribes when an identity is set and
// unsubscribes when the identity is cleared or changes.
type Directory struct {
	store   GroupStore
	log     *zap.Logger
	metrics *metrics.Metrics
	hub     *Hub

	mu       sync.Mutex
	userID   string
	gen      uint64
	stop     func()
	groups   []models.Group
	selected string
	pending  string
	awaiting string
	banner   string
	flash    *Flash
	loaded   bool

	updates chan View
}

// NewDirectory returns a directory with no identity. Call SetIdentity to
// start it and Stop when done.
func (s *Service) NewDirectory() *Directory {
	return &Directory{
		store:   s.store,
		log:     s.log,
		metrics: s.metrics,
		hub:     s.hub,
		updates: make(chan View, 1),
	}
}

// SetIdentity starts, restarts or stops the subscription for who. Setting
// the identity that is already active does nothing; nil stops the directory.
func (d *Directory) SetIdentity(ctx context.Context, who *models.Identity) {
	d.mu.Lock()
	if who != nil && who.ID == d.userID {
		d.mu.Unlock()
		return
	}
	prevStop := d.stop
	if d.userID != "" {
		d.hub.unregister(d.userID, d)
	}
	d.gen++
	gen := d.gen
	d.reset()
	if who != nil {
		d.userID = who.ID
		d.hub.register(who.ID, d)
	}
	d.publish()
	d.mu.Unlock()

	if prevStop != nil {
		prevStop()
		d.metrics.SubscriberRemoved()
	}
	if who == nil {
		return
	}

	stop := d.store.Watch(ctx, who.ID,
		func(groups []models.Group) { d.deliver(gen, groups) },
		func(err error) { d.fail(gen, err) },
	)

	d.mu.Lock()
	if d.gen != gen {
		// Another SetIdentity or Stop ran while Watch was starting.
		d.mu.Unlock()
		stop()
		return
	}
	d.stop = stop
	d.metrics.SubscriberAdded()
	d.mu.Unlock()
}

// Stop ends the subscription. It is safe to call more than once.
func (d *Directory) Stop() {
	d.SetIdentity(context.Background(), nil)
}

// reset clears per-identity state. d.mu must be held.
func (d *Directory) reset() {
	d.userID = ""
	d.stop = nil
	d.groups = nil
	d.selected = ""
	d.pending = ""
	d.awaiting = ""
	d.banner = ""
	d.flash = nil
	d.loaded = false
}

func (d *Directory) deliver(gen uint64, groups []models.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}

	want := d.selected
	if !d.loaded {
		want = d.pending
		d.pending = ""
	}
	if d.awaiting != "" && containsGroup(groups, d.awaiting) {
		want = d.awaiting
		d.awaiting = ""
	}
	d.groups = groups
	d.banner = ""
	d.loaded = true
	d.applySelection(want)
	d.publish()
}

func (d *Directory) fail(gen uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.log.Warn("group directory subscription failed", zap.String("user_id", d.userID), zap.Error(err))
	d.banner = BannerStoreUnavailable
	d.publish()
}

// SelectGroup selects id, or the newest group when id is not in the list,
// or nothing when the list is empty. Before the first delivery the request
// is held and applied to it.
func (d *Directory) SelectGroup(id string) View {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.awaiting = ""
	if !d.loaded {
		d.pending = id
		return d.view()
	}
	d.applySelection(id)
	d.publish()
	return d.view()
}

// SelectNew selects id, a group the user has just created or joined. The
// group may not have been delivered yet, so the request stays open until a
// delivery contains it or SelectGroup replaces it.
func (d *Directory) SelectNew(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded && containsGroup(d.groups, id) {
		d.awaiting = ""
		d.applySelection(id)
		d.publish()
		return
	}
	d.awaiting = id
}

// applySelection resolves want against the current list. Any change of
// selection drops the flash, which belonged to the old one. d.mu must be held.
func (d *Directory) applySelection(want string) {
	next := resolveSelection(want, d.groups)
	if next != d.selected {
		d.flash = nil
	}
	d.selected = next
}

func resolveSelection(want string, groups []models.Group) string {
	if containsGroup(groups, want) {
		return want
	}
	if len(groups) == 0 {
		return ""
	}
	return groups[0].ID.Hex()
}

func containsGroup(groups []models.Group, id string) bool {
	for _, g := range groups {
		if g.ID.Hex() == id {
			return true
		}
	}
	return false
}

// SetFlash shows f while f.GroupID is selected. It reports whether the
// flash was kept.
func (d *Directory) SetFlash(f Flash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded || f.GroupID == "" || f.GroupID != d.selected {
		return false
	}
	d.flash = &f
	d.publish()
	return true
}

// View returns the current picture.
func (d *Directory) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view()
}

// Updates yields a view after every change. Only the newest view is kept,
// so a slow reader skips intermediate ones.
func (d *Directory) Updates() <-chan View {
	return d.updates
}

// view builds a View. d.mu must be held.
func (d *Directory) view() View {
	v := View{
		UserID:     d.userID,
		Groups:     d.groups,
		SelectedID: d.selected,
		Banner:     d.banner,
		Loaded:     d.loaded,
	}
	if v.Groups == nil {
		v.Groups = []models.Group{}
	}
	if d.flash != nil {
		f := *d.flash
		v.Flash = &f
	}
	for i := range d.groups {
		if d.groups[i].ID.Hex() == d.selected {
			v.Selected = &d.groups[i]
			break
		}
	}
	return v
}

// publish replaces whatever view is waiting in updates. d.mu must be held,
// which makes this the only sender.
func (d *Directory) publish() {
	v := d.view()
	select {
	case <-d.updates:
	default:
	}
	select {
	case d.updates <- v:
	default:
	}
}

// Snapshot builds a one-shot view of userID's groups without subscribing,
// resolving selected the same way SelectGroup does.
func (s *Service) Snapshot(ctx context.Context, userID, selected string) (View, error) {
	groups, err := s.List(ctx, userID)
	if err != nil {
		return View{}, err
	}
	v := View{
		UserID:     userID,
		Groups:     groups,
		SelectedID: resolveSelection(selected, groups),
		Loaded:     true,
	}
	for i := range v.Groups {
		if v.Groups[i].ID.Hex() == v.SelectedID {
			v.Selected = &v.Groups[i]
			break
		}
	}
	return v, nil
}

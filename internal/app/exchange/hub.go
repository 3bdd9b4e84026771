// internal/app/exchange/hub.go
package exchange

import "sync"

// Hub tracks the live directories of each user so an action taken over one
// request can reach every stream that user has open.
type Hub struct {
	mu   sync.Mutex
	dirs map[string]map[*Directory]struct{}
}

func newHub() *Hub {
	return &Hub{dirs: make(map[string]map[*Directory]struct{})}
}

func (h *Hub) register(userID string, d *Directory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.dirs[userID]
	if !ok {
		set = make(map[*Directory]struct{})
		h.dirs[userID] = set
	}
	set[d] = struct{}{}
}

func (h *Hub) unregister(userID string, d *Directory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.dirs[userID]
	delete(set, d)
	if len(set) == 0 {
		delete(h.dirs, userID)
	}
}

// snapshot copies userID's directories so they are used without h.mu held.
// Directories take h.mu while holding their own lock, never the reverse.
func (h *Hub) snapshot(userID string) []*Directory {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Directory, 0, len(h.dirs[userID]))
	for d := range h.dirs[userID] {
		out = append(out, d)
	}
	return out
}

// Flash posts f to every open directory of userID. Directories that do not
// have f.GroupID selected ignore it. It returns how many kept it.
func (h *Hub) Flash(userID string, f Flash) int {
	kept := 0
	for _, d := range h.snapshot(userID) {
		if d.SetFlash(f) {
			kept++
		}
	}
	return kept
}

// Select changes the selection of every open directory of userID.
func (h *Hub) Select(userID, groupID string) int {
	dirs := h.snapshot(userID)
	for _, d := range dirs {
		d.SelectGroup(groupID)
	}
	return len(dirs)
}

// SelectNew selects a group userID has just created or joined in every open
// directory, as soon as each one has received it.
func (h *Hub) SelectNew(userID, groupID string) int {
	dirs := h.snapshot(userID)
	for _, d := range dirs {
		d.SelectNew(groupID)
	}
	return len(dirs)
}

// Count returns how many directories userID has open.
func (h *Hub) Count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dirs[userID])
}

// SignOut stops every open directory of userID. Their streams see a view
// with no user and close.
func (h *Hub) SignOut(userID string) int {
	dirs := h.snapshot(userID)
	for _, d := range dirs {
		d.Stop()
	}
	return len(dirs)
}

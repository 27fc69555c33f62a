package chain

import "sync"

// LinkID is the dense, zero-based identifier of a distinct Link within one run.
type LinkID int64

// Link represents an ordered pair of adjacent words (From precedes To)
type Link struct {
	From, To string
}

// LinkDef pairs a Link with its assigned ID.
type LinkDef struct {
	ID LinkID
	Link
}

// Registry assigns LinkIDs in first-seen order. IDs form 0..Len()-1 with no
// gaps and are never reassigned. One Registry is shared by every user compiled
// in a run.
type Registry struct {
	mu    sync.Mutex
	ids   map[Link]LinkID
	links []Link // indexed by LinkID
}

// NewRegistry creates an empty link registry
func NewRegistry() *Registry {
	return &Registry{
		ids: make(map[Link]LinkID),
	}
}

// Resolve returns the ID of link, assigning the next sequential ID the first
// time link is seen.
func (r *Registry) Resolve(link Link) LinkID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[link]; ok {
		return id
	}
	id := LinkID(len(r.links))
	r.ids[link] = id
	r.links = append(r.links, link)
	return id
}

// Lookup returns the ID of link without assigning one.
func (r *Registry) Lookup(link Link) (LinkID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.ids[link]
	return id, ok
}

// Len returns the number of distinct links registered
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

// Links returns every registered link in ID order.
func (r *Registry) Links() []LinkDef {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := make([]LinkDef, len(r.links))
	for i, l := range r.links {
		defs[i] = LinkDef{ID: LinkID(i), Link: l}
	}
	return defs
}

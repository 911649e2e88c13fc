// Package crdt defines the substrate the workspace engine is built on:
// shared arrays, maps, text, and xml-fragments living inside a document,
// mutated only inside transactions that fire a single coalesced update
// event per commit. It is the foundation layer of the engine — an
// in-memory reference provider standing in for a real CRDT library
// (Yjs-style) so the rest of the engine can be exercised end to end.
package crdt

import (
	"sync"
)

// UpdateEvent describes one committed transaction.
type UpdateEvent struct {
	// Origin tags the actor that caused the change (local write, a sync
	// peer, persistence replay, ...). Observers use it to avoid
	// reacting to their own writes.
	Origin string
	// Touched lists the named shared values mutated during the
	// transaction (array/map/text/xml names), for observers that only
	// care about a subset.
	Touched []string
}

// Doc is one CRDT document: the unit of replication. A workspace owns
// one Doc for its tables+KV, and the filesystem core owns one Doc per
// live file's content timeline.
type Doc struct {
	mu   sync.Mutex
	guid string

	arrays map[string]any
	maps   map[string]any
	texts  map[string]*Text
	xmls   map[string]*XMLFragment

	observers map[int]func(UpdateEvent)
	nextObsID int

	txDepth int
	touched map[string]struct{}
	origin  string

	destroyed bool
}

// NewDoc allocates a document identified by guid. guid is the sync/
// persistence key (workspace id, or a filesystem FileId for content
// docs).
func NewDoc(guid string) *Doc {
	return &Doc{
		guid:      guid,
		arrays:    make(map[string]any),
		maps:      make(map[string]any),
		texts:     make(map[string]*Text),
		xmls:      make(map[string]*XMLFragment),
		observers: make(map[int]func(UpdateEvent)),
	}
}

// GUID returns the document's identity.
func (d *Doc) GUID() string { return d.guid }

// Tx is the handle passed to a Transact callback. It exists so call
// sites read as "this mutation happened inside a transaction" even
// though, in this in-memory provider, shared values are mutated
// directly — a real substrate would route writes through Tx.
type Tx struct {
	doc *Doc
}

// Transact runs fn under a single logical transaction; all mutations
// performed on shared values retrieved from d during fn are coalesced
// into exactly one UpdateEvent delivered to observers after fn
// returns (or after the outermost nested Transact returns).
func (d *Doc) Transact(origin string, fn func(tx *Tx)) {
	d.mu.Lock()
	top := d.txDepth == 0
	if top {
		d.touched = make(map[string]struct{})
		d.origin = origin
	}
	d.txDepth++
	d.mu.Unlock()

	fn(&Tx{doc: d})

	d.mu.Lock()
	d.txDepth--
	var ev UpdateEvent
	fire := false
	if d.txDepth == 0 {
		fire = len(d.touched) > 0
		ev = UpdateEvent{Origin: d.origin, Touched: keys(d.touched)}
	}
	obs := make([]func(UpdateEvent), 0, len(d.observers))
	for _, o := range d.observers {
		obs = append(obs, o)
	}
	d.mu.Unlock()

	if fire {
		for _, o := range obs {
			o(ev)
		}
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (d *Doc) markTouched(name string) {
	d.mu.Lock()
	if d.touched != nil {
		d.touched[name] = struct{}{}
	}
	d.mu.Unlock()
}

// Observe registers a handler invoked once per committed transaction
// that touched at least one shared value. It returns an unobserve
// function.
func (d *Doc) Observe(fn func(UpdateEvent)) (unobserve func()) {
	d.mu.Lock()
	id := d.nextObsID
	d.nextObsID++
	d.observers[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// Destroy disposes the document. Idempotent.
func (d *Doc) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.arrays = nil
	d.maps = nil
	d.texts = nil
	d.xmls = nil
	d.observers = nil
}

// Destroyed reports whether Destroy has been called.
func (d *Doc) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

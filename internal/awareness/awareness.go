// Package awareness implements the presence/awareness helper (spec
// §3.7, §4.7): each connected client publishes a small, schema-checked
// local state blob; peers observe the union of everyone's state,
// keyed by client id, with invalid states silently omitted.
package awareness

import (
	"sync"

	"github.com/loomhq/workspace/internal/schema"
)

// ChangeKind classifies one peer's transition in an Observe callback.
type ChangeKind int

const (
	Added ChangeKind = iota
	Updated
	Removed
)

// Change is one peer's awareness transition.
type Change struct {
	Kind     ChangeKind
	ClientID string
	State    map[string]any
}

// Awareness tracks local and remote presence state for one workspace
// client connection. It is not itself CRDT-replicated — an ephemeral,
// last-writer-wins side channel keyed by client id.
type Awareness struct {
	localID string
	fields  *schema.RowSchema

	mu    sync.RWMutex
	local map[string]any
	peers map[string]map[string]any

	obsMu   sync.Mutex
	obs     map[int]func([]Change)
	nextObs int
}

// New creates an Awareness channel for localID. fields, if non-nil,
// makes ApplyRemote drop a remote state that fails validation and
// GetAll omit any stored state that fails it. SetLocal stores and
// publishes its state without validating it.
func New(localID string, fields *schema.RowSchema) *Awareness {
	return &Awareness{
		localID: localID,
		fields:  fields,
		local:   map[string]any{},
		peers:   map[string]map[string]any{},
		obs:     map[int]func([]Change){},
	}
}

// validate checks state against each declared field. An awareness
// state is a plain map, not a table row, so unlike
// schema.RowSchema.Validate there is no implicit required `id`.
func (a *Awareness) validate(state map[string]any) bool {
	if a.fields == nil {
		return true
	}
	for _, f := range a.fields.Fields {
		v, present := state[f.Name]
		if !present || v == nil {
			if f.Required && !f.Nullable {
				return false
			}
			continue
		}
		if schema.ValidateValue(f, v) != "" {
			return false
		}
	}
	return true
}

// SetLocal replaces the local client's published state and fans the
// change out to observers, including this client's own — every
// connected client, local or remote, appears in GetAll.
func (a *Awareness) SetLocal(state map[string]any) {
	a.mu.Lock()
	a.local = state
	_, existed := a.peers[a.localID]
	a.peers[a.localID] = state
	a.mu.Unlock()

	kind := Updated
	if !existed {
		kind = Added
	}
	a.fire([]Change{{Kind: kind, ClientID: a.localID, State: state}})
}

// GetLocal returns the local client's last-published state.
func (a *Awareness) GetLocal() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.local
}

// ApplyRemote merges a remote peer's state (from the sync layer).
// Invalid states are dropped rather than stored.
func (a *Awareness) ApplyRemote(clientID string, state map[string]any) {
	if clientID == a.localID {
		return
	}
	if !a.validate(state) {
		a.removeRemote(clientID)
		return
	}
	a.mu.Lock()
	_, existed := a.peers[clientID]
	a.peers[clientID] = state
	a.mu.Unlock()

	kind := Updated
	if !existed {
		kind = Added
	}
	a.fire([]Change{{Kind: kind, ClientID: clientID, State: state}})
}

// RemoveRemote drops a peer (e.g. on disconnect timeout).
func (a *Awareness) RemoveRemote(clientID string) { a.removeRemote(clientID) }

func (a *Awareness) removeRemote(clientID string) {
	a.mu.Lock()
	_, existed := a.peers[clientID]
	delete(a.peers, clientID)
	a.mu.Unlock()
	if existed {
		a.fire([]Change{{Kind: Removed, ClientID: clientID}})
	}
}

// GetAll returns every currently-known peer's state, keyed by client
// id, restricted to states that pass validation.
func (a *Awareness) GetAll() map[string]map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]map[string]any, len(a.peers))
	for id, st := range a.peers {
		if a.validate(st) {
			out[id] = st
		}
	}
	return out
}

// Observe registers a handler invoked once per SetLocal/ApplyRemote/
// RemoveRemote call that changes the peer set; removing a peer that is
// not known fires nothing.
func (a *Awareness) Observe(fn func([]Change)) (unobserve func()) {
	a.obsMu.Lock()
	id := a.nextObs
	a.nextObs++
	a.obs[id] = fn
	a.obsMu.Unlock()
	return func() {
		a.obsMu.Lock()
		delete(a.obs, id)
		a.obsMu.Unlock()
	}
}

func (a *Awareness) fire(changes []Change) {
	a.obsMu.Lock()
	fns := make([]func([]Change), 0, len(a.obs))
	for _, fn := range a.obs {
		fns = append(fns, fn)
	}
	a.obsMu.Unlock()
	for _, fn := range fns {
		fn(changes)
	}
}

// Package kv implements the LWW key/value log: an append-only sequence
// of (key, value, ts) entries inside a CRDT array, with a re-derived
// in-memory index giving "last writer wins" lookup and
// insertion-ordered iteration of live entries.
package kv

import (
	"sort"
	"sync"

	"github.com/loomhq/workspace/internal/crdt"
)

// Entry is one record in the append-only log. A Tomb entry with a nil
// Val represents a delete.
type Entry struct {
	Key  string
	Val  any
	Ts   int64
	Tomb bool
}

// ChangeKind classifies a Delta.
type ChangeKind int

const (
	Add ChangeKind = iota
	Update
	Delete
)

// Delta is one per-key change reported to observers after a commit.
type Delta struct {
	Kind     ChangeKind
	Key      string
	OldValue any
	NewValue any
}

// Clock supplies monotonically non-decreasing timestamps for local
// writes. Swappable so tests and the sync extension can control
// ordering deterministically — ts is the conflict-resolution axis; a
// substrate without a stable insertion order would need this plus an
// explicit (actorID, seqNo) tie-break.
type Clock interface {
	Now() int64
}

type systemClock struct {
	mu   sync.Mutex
	last int64
	real func() int64
}

func (c *systemClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.real()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}

// Log is the LWW KV log over one named CRDT array.
type Log struct {
	doc   *crdt.Doc
	name  string
	arr   *crdt.Array[Entry]
	clock Clock

	mu      sync.Mutex
	live    map[string]int // key -> winning raw index into arr
	values  map[string]any // key -> cached winning value (nil means tombstoned or absent)
	order   []string       // insertion order of currently-live keys
	// committed is the values map as of the last commit; observers get
	// Deltas against it, while values also reflects pending writes.
	committed map[string]any
	unobs   func()
	obs     map[int]func([]Delta)
	nextObs int
	writes  int
	gcEvery int
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source (default: a monotonic
// wall-clock counter).
func WithClock(c Clock) Option { return func(l *Log) { l.clock = c } }

// WithGCEvery sets how many local writes elapse between automatic
// array compactions (default 32). GC never runs less than once per
// rebuild correctness requires, only its cadence changes.
func WithGCEvery(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.gcEvery = n
		}
	}
}

// New opens (or creates) the LWW KV log named name inside doc.
func New(doc *crdt.Doc, name string, opts ...Option) *Log {
	l := &Log{
		doc:     doc,
		name:    name,
		arr:     crdt.GetArray[Entry](doc, name),
		clock:   &systemClock{real: nowNano},
		live:    make(map[string]int),
		values:  make(map[string]any),
		obs:     make(map[int]func([]Delta)),
		gcEvery: 32,
	}
	l.rebuild(nil)
	l.committed = l.values
	l.unobs = doc.Observe(func(ev crdt.UpdateEvent) {
		if !touches(ev, name) {
			return
		}
		deltas := l.rebuild(l.committed)
		l.mu.Lock()
		l.committed = l.values
		l.mu.Unlock()
		l.notify(deltas)
	})
	return l
}

func touches(ev crdt.UpdateEvent, name string) bool {
	for _, t := range ev.Touched {
		if t == name {
			return true
		}
	}
	return false
}

// Doc returns the backing document, for callers (table/KV helpers)
// that need to open their own transactions spanning multiple log
// operations.
func (l *Log) Doc() *crdt.Doc { return l.doc }

// Close stops observing the backing document.
func (l *Log) Close() {
	if l.unobs != nil {
		l.unobs()
	}
}

// Set writes key to v with a fresh timestamp, superseding any prior
// live entry for key.
func (l *Log) Set(key string, v any) {
	l.doc.Transact("local", func(tx *crdt.Tx) {
		l.arr.Push(Entry{Key: key, Val: v, Ts: l.clock.Now()})
		l.maybeGC()
		l.rebuild(nil)
	})
}

// Delete appends a tombstone entry for key. A no-op if key has no live
// value, so repeated deletes don't grow the log.
func (l *Log) Delete(key string) {
	if !l.Has(key) {
		return
	}
	l.doc.Transact("local", func(tx *crdt.Tx) {
		l.arr.Push(Entry{Key: key, Ts: l.clock.Now(), Tomb: true})
		l.maybeGC()
		l.rebuild(nil)
	})
}

func (l *Log) maybeGC() {
	l.mu.Lock()
	l.writes++
	due := l.writes >= l.gcEvery
	if due {
		l.writes = 0
	}
	l.mu.Unlock()
	if due {
		l.arr.GC()
	}
}

// Get returns the live value for key.
func (l *Log) Get(key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.values[key]
	return v, ok
}

// Has reports whether key currently has a live value.
func (l *Log) Has(key string) bool {
	_, ok := l.Get(key)
	return ok
}

// Entries returns live (key, value) pairs in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, Entry{Key: k, Val: l.values[k], Ts: l.tsOf(k)})
	}
	return out
}

func (l *Log) tsOf(key string) int64 {
	raw := l.arr.AllRaw()
	idx, ok := l.live[key]
	if !ok || idx >= len(raw) {
		return 0
	}
	return raw[idx].Ts
}

// Len returns the number of live keys.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Observe registers a handler invoked once per commit that changed
// this log's keys, with one Delta per changed key. Returns an
// unobserve function.
func (l *Log) Observe(fn func([]Delta)) (unobserve func()) {
	l.mu.Lock()
	id := l.nextObs
	l.nextObs++
	l.obs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.obs, id)
		l.mu.Unlock()
	}
}

func (l *Log) notify(deltas []Delta) {
	if len(deltas) == 0 {
		return
	}
	l.mu.Lock()
	fns := make([]func([]Delta), 0, len(l.obs))
	for _, fn := range l.obs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(deltas)
	}
}

// ApplyRemote appends entries as if received from a peer (used by the
// sync/relay extension and by convergence tests). The winner per key
// is re-derived exactly as for local writes.
func (l *Log) ApplyRemote(entries []Entry) {
	l.doc.Transact("remote", func(tx *crdt.Tx) {
		for _, e := range entries {
			l.arr.Push(e)
		}
		l.rebuild(nil)
	})
}

// rebuild re-derives the live index from the backing array: for each
// key the entry with the greatest Ts wins; ties are broken by later
// insertion order. Superseded raw entries are tombstoned in the array
// so GC can reclaim them. prevValues, if non-nil, is diffed against
// the new winners to produce Deltas.
func (l *Log) rebuild(prevValues map[string]any) []Delta {
	raw := l.arr.AllRaw()

	type winner struct {
		idx   int
		entry Entry
	}
	winners := make(map[string]winner)
	firstSeen := make(map[string]int) // key -> first raw index seen, for stable order

	for i, e := range raw {
		if _, ok := firstSeen[e.Key]; !ok {
			firstSeen[e.Key] = i
		}
		cur, ok := winners[e.Key]
		if !ok || e.Ts >= cur.entry.Ts {
			winners[e.Key] = winner{idx: i, entry: e}
		}
	}

	// Tombstone every raw slot that isn't the current winner for its key.
	won := make(map[string]int, len(winners))
	for k, w := range winners {
		won[k] = w.idx
	}
	for i, e := range raw {
		if won[e.Key] != i {
			l.arr.Tombstone(i)
		}
	}

	newLive := make(map[string]int)
	newValues := make(map[string]any)
	for k, w := range winners {
		if w.entry.Tomb {
			continue
		}
		newLive[k] = w.idx
		newValues[k] = w.entry.Val
	}

	// Insertion order: by first-seen raw index among currently-live keys.
	order := make([]string, 0, len(newLive))
	for k := range newLive {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool {
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	var deltas []Delta
	if prevValues != nil {
		for k, nv := range newValues {
			ov, existed := prevValues[k]
			if !existed {
				deltas = append(deltas, Delta{Kind: Add, Key: k, NewValue: nv})
			} else if !equalAny(ov, nv) {
				deltas = append(deltas, Delta{Kind: Update, Key: k, OldValue: ov, NewValue: nv})
			}
		}
		for k, ov := range prevValues {
			if _, stillLive := newValues[k]; !stillLive {
				deltas = append(deltas, Delta{Kind: Delete, Key: k, OldValue: ov})
			}
		}
	}

	l.mu.Lock()
	l.live = newLive
	l.values = newValues
	l.order = order
	l.mu.Unlock()

	return deltas
}

func equalAny(a, b any) bool {
	return fastEq(a, b)
}

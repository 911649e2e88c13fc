package dynamic

import (
	"sort"
	"strings"
	"sync"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/platform"
)

// RowMeta is a dynamic-workspace row's metadata entry.
type RowMeta struct {
	TableID   string
	RowID     string
	Order     int64
	DeletedAt *int64
}

func (r RowMeta) isDeleted() bool { return r.DeletedAt != nil }

func (r RowMeta) toMap() map[string]any {
	return map[string]any{"order": r.Order, "deletedAt": r.DeletedAt}
}

func rowMetaFromMap(tableID, rowID string, m map[string]any) RowMeta {
	return RowMeta{
		TableID:   tableID,
		RowID:     rowID,
		Order:     asInt64(m["order"], 0),
		DeletedAt: asInt64Ptr(m["deletedAt"]),
	}
}

// RowsStore is the `tableId:rowId` substore.
type RowsStore struct {
	log *kv.Log

	mu         sync.Mutex
	pendingMax map[string]int64 // tableID -> next order to hand out, valid only mid-batch
}

// NewRowsStore opens the rows substore over doc.
func NewRowsStore(doc *crdt.Doc) *RowsStore {
	s := &RowsStore{log: kv.New(doc, "dyn:rows"), pendingMax: make(map[string]int64)}
	s.log.Observe(func(deltas []kv.Delta) {
		// A commit landed: the true live order is now reflected in the
		// log, so drop cached pending counters and let the next Create
		// re-derive order from committed state.
		s.mu.Lock()
		s.pendingMax = make(map[string]int64)
		s.mu.Unlock()
	})
	return s
}

// Create adds a row to tableID. If rowID is empty, a uuid is
// generated. If order is nil, it is auto-assigned as
// max(live order)+1, scanning both committed and not-yet-committed
// (same open transaction) rows so that creating N rows in one Batch
// yields N strictly-increasing orders.
func (s *RowsStore) Create(tableID, rowID string, order *int64) string {
	validateID(tableID)
	if rowID == "" {
		rowID = platform.NewID()
	}
	validateID(rowID)
	key := rowKey(tableID, rowID)
	if _, ok := s.log.Get(key); ok {
		panic(&ErrAlreadyExists{Kind: "row", ID: key})
	}

	var o int64
	if order != nil {
		o = *order
	} else {
		o = s.nextOrder(tableID)
	}
	s.log.Set(key, RowMeta{TableID: tableID, RowID: rowID, Order: o}.toMap())
	return rowID
}

func (s *RowsStore) nextOrder(tableID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.pendingMax[tableID]; ok {
		s.pendingMax[tableID] = n + 1
		return n
	}
	max := int64(-1)
	prefix := tableID + sep
	for _, e := range s.log.Entries() {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		m, ok := e.Val.(map[string]any)
		if !ok {
			continue
		}
		if o := asInt64(m["order"], 0); o > max {
			max = o
		}
	}
	next := max + 1
	s.pendingMax[tableID] = next + 1
	return next
}

// Get returns a row's metadata.
func (s *RowsStore) Get(tableID, rowID string) (RowMeta, bool) {
	raw, ok := s.log.Get(rowKey(tableID, rowID))
	if !ok {
		return RowMeta{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return RowMeta{}, false
	}
	return rowMetaFromMap(tableID, rowID, m), true
}

// Reorder sets a row's order explicitly.
func (s *RowsStore) Reorder(tableID, rowID string, order int64) bool {
	return s.update(tableID, rowID, func(r *RowMeta) { r.Order = order })
}

// Delete soft-deletes a row.
func (s *RowsStore) Delete(tableID, rowID string) bool {
	return s.update(tableID, rowID, func(r *RowMeta) { now := nowMillis(); r.DeletedAt = &now })
}

// Restore clears a row's delete marker.
func (s *RowsStore) Restore(tableID, rowID string) bool {
	return s.update(tableID, rowID, func(r *RowMeta) { r.DeletedAt = nil })
}

func (s *RowsStore) update(tableID, rowID string, mutate func(r *RowMeta)) bool {
	r, ok := s.Get(tableID, rowID)
	if !ok {
		return false
	}
	mutate(&r)
	s.log.Set(rowKey(tableID, rowID), r.toMap())
	return true
}

// ListByTable returns every live row of tableID, sorted by
// (order, id).
func (s *RowsStore) ListByTable(tableID string) []RowMeta {
	prefix := tableID + sep
	var out []RowMeta
	for _, e := range s.log.Entries() {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		tid, rid, ok := splitFieldKey(e.Key)
		if !ok || tid != tableID {
			continue
		}
		m, ok := e.Val.(map[string]any)
		if !ok {
			continue
		}
		r := rowMetaFromMap(tid, rid, m)
		if !r.isDeleted() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].RowID < out[j].RowID
	})
	return out
}

// Observe forwards raw key-level deltas for the rows substore.
func (s *RowsStore) Observe(fn func([]kv.Delta)) func() { return s.log.Observe(fn) }

// Doc returns the backing document, for callers composing a Batch
// across multiple substores.
func (s *RowsStore) Doc() *crdt.Doc { return s.log.Doc() }

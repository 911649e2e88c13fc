package dynamic

import (
	"sort"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
)

// Table is a dynamic-workspace table entity.
type Table struct {
	ID          string
	Name        string
	Description string
	Icon        string
	DeletedAt   *int64
}

func (t Table) isDeleted() bool { return t.DeletedAt != nil }

func (t Table) toMap() map[string]any {
	return map[string]any{
		"id": t.ID, "name": t.Name, "description": t.Description,
		"icon": t.Icon, "deletedAt": t.DeletedAt,
	}
}

func tableFromMap(m map[string]any) Table {
	t := Table{}
	if v, ok := m["id"].(string); ok {
		t.ID = v
	}
	if v, ok := m["name"].(string); ok {
		t.Name = v
	}
	if v, ok := m["description"].(string); ok {
		t.Description = v
	}
	if v, ok := m["icon"].(string); ok {
		t.Icon = v
	}
	t.DeletedAt = asInt64Ptr(m["deletedAt"])
	return t
}

// TablesStore is the `tables` substore.
type TablesStore struct {
	log *kv.Log
}

// NewTablesStore opens the tables substore over doc.
func NewTablesStore(doc *crdt.Doc) *TablesStore {
	return &TablesStore{log: kv.New(doc, "dyn:tables")}
}

// Create adds a new table. Panics with *ErrAlreadyExists if id is
// already live, or *ErrIDCollision if id contains ':'.
func (s *TablesStore) Create(id, name, description, icon string) {
	validateID(id)
	if _, ok := s.log.Get(id); ok {
		panic(&ErrAlreadyExists{Kind: "table", ID: id})
	}
	s.log.Set(id, Table{ID: id, Name: name, Description: description, Icon: icon}.toMap())
}

// Get returns the table, including soft-deleted ones.
func (s *TablesStore) Get(id string) (Table, bool) {
	raw, ok := s.log.Get(id)
	if !ok {
		return Table{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Table{}, false
	}
	return tableFromMap(m), true
}

// Update merges partial fields into the table's stored shape.
func (s *TablesStore) Update(id string, mutate func(t *Table)) bool {
	t, ok := s.Get(id)
	if !ok {
		return false
	}
	mutate(&t)
	s.log.Set(id, t.toMap())
	return true
}

// Delete soft-deletes the table.
func (s *TablesStore) Delete(id string) bool {
	return s.Update(id, func(t *Table) { now := nowMillis(); t.DeletedAt = &now })
}

// Restore clears a table's delete marker.
func (s *TablesStore) Restore(id string) bool {
	return s.Update(id, func(t *Table) { t.DeletedAt = nil })
}

// List returns every live (non-soft-deleted) table.
func (s *TablesStore) List() []Table {
	var out []Table
	for _, e := range s.log.Entries() {
		m, ok := e.Val.(map[string]any)
		if !ok {
			continue
		}
		t := tableFromMap(m)
		if !t.isDeleted() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Observe forwards raw key-level deltas for the tables substore.
func (s *TablesStore) Observe(fn func([]kv.Delta)) func() { return s.log.Observe(fn) }

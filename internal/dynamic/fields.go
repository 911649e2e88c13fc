package dynamic

import (
	"sort"
	"strings"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/schema"
)

// Field is a dynamic-workspace field entity.
type Field struct {
	TableID     string
	ID          string
	Kind        schema.FieldKind
	Name        string
	Description string
	Icon        string
	Order       int64
	Nullable    bool
	Default     any
	Options     []string // select/tags vocabulary
	DeletedAt   *int64
}

func (f Field) isDeleted() bool { return f.DeletedAt != nil }

func (f Field) toMap() map[string]any {
	return map[string]any{
		"tableId": f.TableID, "id": f.ID, "type": string(f.Kind), "name": f.Name,
		"description": f.Description, "icon": f.Icon, "order": f.Order,
		"nullable": f.Nullable, "default": f.Default, "options": f.Options,
		"deletedAt": f.DeletedAt,
	}
}

func fieldFromMap(tableID, fieldID string, m map[string]any) Field {
	f := Field{TableID: tableID, ID: fieldID}
	if v, ok := m["type"].(string); ok {
		f.Kind = schema.FieldKind(v)
	}
	if v, ok := m["name"].(string); ok {
		f.Name = v
	}
	if v, ok := m["description"].(string); ok {
		f.Description = v
	}
	if v, ok := m["icon"].(string); ok {
		f.Icon = v
	}
	f.Order = asInt64(m["order"], 0)
	if v, ok := m["nullable"].(bool); ok {
		f.Nullable = v
	}
	f.Default = m["default"]
	if v, ok := m["options"].([]string); ok {
		f.Options = v
	}
	f.DeletedAt = asInt64Ptr(m["deletedAt"])
	return f
}

// FieldsStore is the `tableId:fieldId` substore.
type FieldsStore struct {
	log *kv.Log
}

// NewFieldsStore opens the fields substore over doc.
func NewFieldsStore(doc *crdt.Doc) *FieldsStore {
	return &FieldsStore{log: kv.New(doc, "dyn:fields")}
}

// Create adds a field to a table. id must not be "id" (reserved for
// the synthetic primary identifier) nor contain ':'.
func (s *FieldsStore) Create(f Field) {
	validateID(f.TableID)
	validateID(f.ID)
	if f.ID == "id" {
		panic(`dynamic: field id "id" is reserved for the row identifier`)
	}
	key := fieldKey(f.TableID, f.ID)
	if _, ok := s.log.Get(key); ok {
		panic(&ErrAlreadyExists{Kind: "field", ID: key})
	}
	s.log.Set(key, f.toMap())
}

// Get returns the field.
func (s *FieldsStore) Get(tableID, fieldID string) (Field, bool) {
	raw, ok := s.log.Get(fieldKey(tableID, fieldID))
	if !ok {
		return Field{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Field{}, false
	}
	return fieldFromMap(tableID, fieldID, m), true
}

// Update mutates a field in place.
func (s *FieldsStore) Update(tableID, fieldID string, mutate func(f *Field)) bool {
	f, ok := s.Get(tableID, fieldID)
	if !ok {
		return false
	}
	mutate(&f)
	s.log.Set(fieldKey(tableID, fieldID), f.toMap())
	return true
}

// Delete soft-deletes a field.
func (s *FieldsStore) Delete(tableID, fieldID string) bool {
	return s.Update(tableID, fieldID, func(f *Field) { now := nowMillis(); f.DeletedAt = &now })
}

// Restore clears a field's delete marker.
func (s *FieldsStore) Restore(tableID, fieldID string) bool {
	return s.Update(tableID, fieldID, func(f *Field) { f.DeletedAt = nil })
}

// ListByTable returns every live field of tableID, sorted by
// (order, id).
func (s *FieldsStore) ListByTable(tableID string) []Field {
	prefix := tableID + sep
	var out []Field
	for _, e := range s.log.Entries() {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		tid, fid, ok := splitFieldKey(e.Key)
		if !ok || tid != tableID {
			continue
		}
		m, ok := e.Val.(map[string]any)
		if !ok {
			continue
		}
		f := fieldFromMap(tid, fid, m)
		if !f.isDeleted() {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Observe forwards raw key-level deltas for the fields substore.
func (s *FieldsStore) Observe(fn func([]kv.Delta)) func() { return s.log.Observe(fn) }

package dynamic

import (
	"strings"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
)

// CellsStore is the `tableId:rowId:fieldId` substore. Cells carry no
// tombstone of their own — they are filtered by their row's and
// field's soft-delete state by the derived views.
type CellsStore struct {
	log *kv.Log
}

// NewCellsStore opens the cells substore over doc.
func NewCellsStore(doc *crdt.Doc) *CellsStore {
	return &CellsStore{log: kv.New(doc, "dyn:cells")}
}

// Set writes a cell value.
func (s *CellsStore) Set(tableID, rowID, fieldID string, v any) {
	validateID(tableID)
	validateID(rowID)
	validateID(fieldID)
	s.log.Set(cellKey(tableID, rowID, fieldID), v)
}

// Get reads a cell value.
func (s *CellsStore) Get(tableID, rowID, fieldID string) (any, bool) {
	return s.log.Get(cellKey(tableID, rowID, fieldID))
}

// Has reports whether a cell has a value.
func (s *CellsStore) Has(tableID, rowID, fieldID string) bool {
	_, ok := s.Get(tableID, rowID, fieldID)
	return ok
}

// Delete removes a cell value outright (distinct from a row's soft
// delete, which leaves cell values in place).
func (s *CellsStore) Delete(tableID, rowID, fieldID string) {
	s.log.Delete(cellKey(tableID, rowID, fieldID))
}

// GetByRow returns the cell values of rowID restricted to fieldIDs.
func (s *CellsStore) GetByRow(tableID, rowID string, fieldIDs []string) map[string]any {
	out := make(map[string]any, len(fieldIDs))
	for _, fid := range fieldIDs {
		if v, ok := s.Get(tableID, rowID, fid); ok {
			out[fid] = v
		}
	}
	return out
}

// FieldIDsOfRow returns every field id that currently has a live cell
// value for rowID, by scanning the raw key namespace — used by the
// row-ops wrapper's Delete to clean up a row's cells.
func (s *CellsStore) FieldIDsOfRow(tableID, rowID string) []string {
	prefix := tableID + sep + rowID + sep
	var out []string
	for _, e := range s.log.Entries() {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		out = append(out, strings.TrimPrefix(e.Key, prefix))
	}
	return out
}

// Observe forwards raw key-level deltas for the cells substore.
func (s *CellsStore) Observe(fn func([]kv.Delta)) func() { return s.log.Observe(fn) }

// Doc returns the backing document.
func (s *CellsStore) Doc() *crdt.Doc { return s.log.Doc() }

package dynamic

import (
	"github.com/loomhq/workspace/internal/crdt"
)

// Workspace bundles the four dynamic-workspace substores and the
// derived reconstruction views built from them.
type Workspace struct {
	doc    *crdt.Doc
	Tables *TablesStore
	Fields *FieldsStore
	Rows   *RowsStore
	Cells  *CellsStore
}

// NewWorkspace opens all four substores over doc.
func NewWorkspace(doc *crdt.Doc) *Workspace {
	return &Workspace{
		doc:    doc,
		Tables: NewTablesStore(doc),
		Fields: NewFieldsStore(doc),
		Rows:   NewRowsStore(doc),
		Cells:  NewCellsStore(doc),
	}
}

// Batch opens a single substrate transaction spanning calls to any of
// the four substores, so observers coalesce into one notification
// each.
func (w *Workspace) Batch(fn func(ws *Workspace)) {
	w.doc.Transact("local", func(tx *crdt.Tx) { fn(w) })
}

// TableWithFields is the derived view reconstructing a table together
// with its live fields.
type TableWithFields struct {
	Table  Table
	Fields []Field
}

// GetTableWithFields returns the live table plus its live fields
// sorted by (order, id).
func (w *Workspace) GetTableWithFields(tableID string) (TableWithFields, bool) {
	t, ok := w.Tables.Get(tableID)
	if !ok || t.isDeleted() {
		return TableWithFields{}, false
	}
	return TableWithFields{Table: t, Fields: w.Fields.ListByTable(tableID)}, true
}

// RowWithCells is the derived view reconstructing a row together with
// its live cell values.
type RowWithCells struct {
	ID    string
	Cells map[string]any
}

// GetRowsWithCells reconstructs every live row of tableID (sorted by
// (order, id)) restricted to currently-live field ids.
func (w *Workspace) GetRowsWithCells(tableID string) []RowWithCells {
	fields := w.Fields.ListByTable(tableID)
	fieldIDs := make([]string, len(fields))
	for i, f := range fields {
		fieldIDs[i] = f.ID
	}

	rows := w.Rows.ListByTable(tableID)
	out := make([]RowWithCells, 0, len(rows))
	for _, r := range rows {
		out = append(out, RowWithCells{
			ID:    r.RowID,
			Cells: w.Cells.GetByRow(tableID, r.RowID, fieldIDs),
		})
	}
	return out
}

// RowOps is the optional row-ops wrapper over a cell store: merge/
// delete operating at the row level instead of the raw cell level.
type RowOps struct {
	ws *Workspace
}

// NewRowOps builds a RowOps wrapper over ws.
func NewRowOps(ws *Workspace) *RowOps { return &RowOps{ws: ws} }

// Merge sets only the provided fields of rowID; the row is implicitly
// created (with an auto-assigned order) if it doesn't already exist.
func (r *RowOps) Merge(tableID, rowID string, partial map[string]any) {
	r.ws.Batch(func(ws *Workspace) {
		if _, ok := ws.Rows.Get(tableID, rowID); !ok {
			ws.Rows.Create(tableID, rowID, nil)
		}
		for fieldID, v := range partial {
			ws.Cells.Set(tableID, rowID, fieldID, v)
		}
	})
}

// Delete soft-deletes rowID and removes its known cell values.
func (r *RowOps) Delete(tableID, rowID string) {
	r.ws.Batch(func(ws *Workspace) {
		for _, fieldID := range ws.Cells.FieldIDsOfRow(tableID, rowID) {
			ws.Cells.Delete(tableID, rowID, fieldID)
		}
		ws.Rows.Delete(tableID, rowID)
	})
}

// Batch runs fn in one transaction, so a Merge followed by a Delete
// (or vice versa) inside fn commits atomically without losing
// newly-written fields.
func (r *RowOps) Batch(fn func(ops *RowOps)) {
	r.ws.Batch(func(ws *Workspace) { fn(r) })
}

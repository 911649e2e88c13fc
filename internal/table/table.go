// Package table implements the table helper: a schema-validated,
// ordered row collection layered over the LWW KV log, with versioned
// schemas + read-time migration and soft delete.
package table

import (
	"errors"
	"fmt"
	"time"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/schema"
)

// ErrNotFound is returned by Update/Delete when the target row has no
// entry at all. A soft-deleted row keeps its entry, so Update, Delete
// and Restore still succeed on it; only a row that was never written
// fails with not_found.
var ErrNotFound = errors.New("table: row not found")

// ErrInvalid is returned by strict-mode Set when the row fails
// validation against the latest schema.
var ErrInvalid = errors.New("table: row failed validation")

// Status is the tag of a Result.
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusNotFound Status = "not_found"
)

// Result is the sum type every read operation returns.
type Result struct {
	Status Status
	ID     string
	Row    map[string]any
	Errors []schema.ValidationError
}

// MigrateFunc takes any historical row shape and returns the latest
// shape. Required whenever a Definition carries more than one schema
// version.
type MigrateFunc func(raw map[string]any) map[string]any

// Definition is a table's schema (or schema history + migration).
type Definition struct {
	Schemas []*schema.RowSchema
	Migrate MigrateFunc
	// Strict validates on write in addition to on read.
	Strict bool
}

func (d *Definition) latest() *schema.RowSchema {
	return d.Schemas[len(d.Schemas)-1]
}

// Change is one row-level change reported to observers.
type Change struct {
	Kind   kv.ChangeKind
	ID     string
	Before Result
	After  Result
}

// Table is a schema-validated row collection.
type Table struct {
	def  *Definition
	log  *kv.Log
	name string
}

// New opens (or creates) the table named name over doc.
func New(doc *crdt.Doc, name string, def *Definition) *Table {
	if len(def.Schemas) == 0 {
		panic("table: Definition needs at least one schema")
	}
	if len(def.Schemas) > 1 && def.Migrate == nil {
		panic("table: Definition with multiple schema versions needs a Migrate func")
	}
	return &Table{def: def, log: kv.New(doc, "table:"+name), name: name}
}

// Get reads and validates row id.
func (t *Table) Get(id string) Result {
	raw, ok := t.log.Get(id)
	if !ok {
		return Result{Status: StatusNotFound, ID: id}
	}
	return t.validate(id, raw)
}

// Parse validates an arbitrary decoded value as if it were row id,
// without writing anything — used for previewing migrations/errors.
func (t *Table) Parse(id string, raw any) Result {
	return t.validate(id, raw)
}

func (t *Table) validate(id string, raw any) Result {
	if raw == nil {
		return Result{Status: StatusNotFound, ID: id}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Result{Status: StatusInvalid, ID: id, Errors: []schema.ValidationError{{Field: "*", Message: "row is not an object"}}}
	}
	if errs := t.def.latest().Validate(m); len(errs) == 0 {
		return Result{Status: StatusValid, ID: id, Row: m}
	}
	if t.def.Migrate == nil {
		return Result{Status: StatusInvalid, ID: id, Errors: t.def.latest().Validate(m)}
	}
	migrated := t.def.Migrate(m)
	if errs := t.def.latest().Validate(migrated); len(errs) == 0 {
		return Result{Status: StatusValid, ID: id, Row: migrated}
	} else {
		return Result{Status: StatusInvalid, ID: id, Errors: errs}
	}
}

// GetAll returns every live row in insertion order, validated.
func (t *Table) GetAll() []Result {
	entries := t.log.Entries()
	out := make([]Result, 0, len(entries))
	for _, e := range entries {
		out = append(out, t.validate(e.Key, e.Val))
	}
	return out
}

// GetAllValid returns only the valid rows from GetAll.
func (t *Table) GetAllValid() []Result {
	var out []Result
	for _, r := range t.GetAll() {
		if r.Status == StatusValid {
			out = append(out, r)
		}
	}
	return out
}

// GetAllInvalid returns only the invalid rows from GetAll.
func (t *Table) GetAllInvalid() []Result {
	var out []Result
	for _, r := range t.GetAll() {
		if r.Status == StatusInvalid {
			out = append(out, r)
		}
	}
	return out
}

// GetAllActive returns valid rows whose `deletedAt` field is absent or
// nil, excluding soft-deleted rows from active listings.
func (t *Table) GetAllActive() []Result {
	var out []Result
	for _, r := range t.GetAllValid() {
		if !isDeleted(r.Row) {
			out = append(out, r)
		}
	}
	return out
}

func isDeleted(row map[string]any) bool {
	v, ok := row["deletedAt"]
	return ok && v != nil
}

// Set overwrites (or creates) row by its `id` field. In strict mode,
// an invalid row is rejected with ErrInvalid and not written.
func (t *Table) Set(row map[string]any) error {
	id, _ := row["id"].(string)
	if id == "" {
		return fmt.Errorf("table: row id must be a non-empty string")
	}
	if t.def.Strict {
		if errs := t.def.latest().Validate(row); len(errs) > 0 {
			return fmt.Errorf("%w: %v", ErrInvalid, errs)
		}
	}
	t.log.Set(id, row)
	return nil
}

// Update performs a read-modify-write, merging partial into the
// current row. Fails with ErrNotFound if id has no live entry.
func (t *Table) Update(id string, partial map[string]any) (Result, error) {
	raw, ok := t.log.Get(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	current, _ := raw.(map[string]any)
	merged := make(map[string]any, len(current)+len(partial))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	merged["id"] = id
	if t.def.Strict {
		if errs := t.def.latest().Validate(merged); len(errs) > 0 {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalid, errs)
		}
	}
	t.log.Set(id, merged)
	return t.validate(id, merged), nil
}

// Delete stamps deletedAt on the row (soft delete). Fails with
// ErrNotFound if id has no live entry.
func (t *Table) Delete(id string) error {
	_, err := t.Update(id, map[string]any{"deletedAt": time.Now().UnixMilli()})
	return err
}

// Restore clears deletedAt, re-including the row in active listings.
func (t *Table) Restore(id string) error {
	_, err := t.Update(id, map[string]any{"deletedAt": nil})
	return err
}

// Count returns the number of live rows.
func (t *Table) Count() int { return t.log.Len() }

// Clear removes every live row.
func (t *Table) Clear() {
	for _, e := range t.log.Entries() {
		t.log.Delete(e.Key)
	}
}

// Batch wraps fn so that any number of Set/Update/Delete calls it
// performs are committed as one substrate transaction — Observe fires
// exactly once.
func (t *Table) Batch(fn func(tbl *Table)) {
	t.log.Doc().Transact("local", func(tx *crdt.Tx) {
		fn(t)
	})
}

// Observe registers a handler invoked once per commit with one Change
// per row touched.
func (t *Table) Observe(fn func([]Change)) (unobserve func()) {
	return t.log.Observe(func(deltas []kv.Delta) {
		changes := make([]Change, 0, len(deltas))
		for _, d := range deltas {
			changes = append(changes, Change{
				Kind:   d.Kind,
				ID:     d.Key,
				Before: t.validate(d.Key, d.OldValue),
				After:  t.validate(d.Key, d.NewValue),
			})
		}
		fn(changes)
	})
}

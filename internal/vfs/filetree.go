package vfs

import (
	"time"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/platform"
	"github.com/loomhq/workspace/internal/schema"
	"github.com/loomhq/workspace/internal/table"
)

// FileRow is one entry of the files metadata table. Type is "file" or
// "folder"; ParentID nil means a filesystem root entry. TrashedAt is
// the files-specific soft-delete marker, independent of the table
// helper's own `deletedAt` bookkeeping.
type FileRow struct {
	ID        string
	Name      string
	ParentID  *string
	Type      string
	Size      int64
	CreatedAt int64
	UpdatedAt int64
	TrashedAt *int64
}

func (f FileRow) isTrashed() bool { return f.TrashedAt != nil }
func (f FileRow) isFolder() bool  { return f.Type == "folder" }

func filesSchema() *schema.RowSchema {
	return &schema.RowSchema{Fields: []schema.FieldSpec{
		{Name: "name", Kind: schema.KindText, Required: true},
		{Name: "parentId", Kind: schema.KindText, Nullable: true},
		{Name: "type", Kind: schema.KindSelect, Required: true, Enum: []string{"file", "folder"}},
		{Name: "size", Kind: schema.KindInteger, Required: true},
		{Name: "createdAt", Kind: schema.KindInteger, Required: true},
		{Name: "updatedAt", Kind: schema.KindInteger, Required: true},
		{Name: "trashedAt", Kind: schema.KindInteger, Nullable: true},
	}}
}

func (f FileRow) toRow() map[string]any {
	return map[string]any{
		"id":        f.ID,
		"name":      f.Name,
		"parentId":  ptrToAny(f.ParentID),
		"type":      f.Type,
		"size":      f.Size,
		"createdAt": f.CreatedAt,
		"updatedAt": f.UpdatedAt,
		"trashedAt": int64PtrToAny(f.TrashedAt),
	}
}

func fileRowFromMap(m map[string]any) FileRow {
	return FileRow{
		ID:        asString(m["id"]),
		Name:      asString(m["name"]),
		ParentID:  asStringPtr(m["parentId"]),
		Type:      asString(m["type"]),
		Size:      asInt64(m["size"]),
		CreatedAt: asInt64(m["createdAt"]),
		UpdatedAt: asInt64(m["updatedAt"]),
		TrashedAt: asInt64Ptr(m["trashedAt"]),
	}
}

// FileTree owns the files metadata table and the derived path index
// rebuilt from it on every change.
type FileTree struct {
	tbl   *table.Table
	index *PathIndex
	clock func() int64

	unobserve func()
}

// NewFileTree opens (or creates) the files table over doc and performs
// the initial index build.
func NewFileTree(doc *crdt.Doc, clock func() int64) *FileTree {
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	tbl := table.New(doc, "files", &table.Definition{Schemas: []*schema.RowSchema{filesSchema()}})
	ft := &FileTree{tbl: tbl, clock: clock}
	ft.index = ft.rebuildIndex()
	ft.unobserve = tbl.Observe(func([]table.Change) {
		idx, repairs := ft.computeIndex()
		ft.index = idx
		if len(repairs) > 0 {
			go ft.applyRepairs(repairs)
		}
	})
	return ft
}

// Close stops observing the files table.
func (ft *FileTree) Close() {
	if ft.unobserve != nil {
		ft.unobserve()
	}
}

func (ft *FileTree) liveRows() []FileRow {
	var out []FileRow
	for _, r := range ft.tbl.GetAllValid() {
		fr := fileRowFromMap(r.Row)
		if !fr.isTrashed() {
			out = append(out, fr)
		}
	}
	return out
}

func (ft *FileTree) rebuildIndex() *PathIndex {
	idx, repairs := ft.computeIndex()
	if len(repairs) > 0 {
		ft.applyRepairs(repairs)
		idx, _ = ft.computeIndex()
	}
	return idx
}

func (ft *FileTree) computeIndex() (*PathIndex, []repair) {
	return buildPathIndex(ft.liveRows())
}

func (ft *FileTree) applyRepairs(repairs []repair) {
	for _, r := range repairs {
		ft.tbl.Update(r.id, map[string]any{"parentId": nil})
	}
}

// Index returns the current (already-built) path index.
func (ft *FileTree) Index() *PathIndex { return ft.index }

// Create inserts a new file or folder row under parentID (nil for a
// root entry) and returns it.
func (ft *FileTree) Create(name string, parentID *string, fileType string) FileRow {
	now := ft.clock()
	row := FileRow{
		ID:        platform.NewID(),
		Name:      name,
		ParentID:  parentID,
		Type:      fileType,
		Size:      0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ft.tbl.Set(row.toRow()); err != nil {
		panic(err)
	}
	return row
}

// Get returns a live (non-trashed, valid) file row.
func (ft *FileTree) Get(id string) (FileRow, bool) {
	res := ft.tbl.Get(id)
	if res.Status != table.StatusValid {
		return FileRow{}, false
	}
	fr := fileRowFromMap(res.Row)
	if fr.isTrashed() {
		return FileRow{}, false
	}
	return fr, true
}

// Move reparents and/or renames id.
func (ft *FileTree) Move(id string, newParentID *string, newName string) error {
	if _, ok := ft.Get(id); !ok {
		return errNoEnt(id)
	}
	_, err := ft.tbl.Update(id, map[string]any{
		"parentId":  ptrToAny(newParentID),
		"name":      newName,
		"updatedAt": ft.clock(),
	})
	return err
}

// Touch updates a file's byte size and bumps updatedAt.
func (ft *FileTree) Touch(id string, size int64) error {
	_, err := ft.tbl.Update(id, map[string]any{"size": size, "updatedAt": ft.clock()})
	return err
}

// SoftDelete moves id to the trash.
func (ft *FileTree) SoftDelete(id string) error {
	now := ft.clock()
	_, err := ft.tbl.Update(id, map[string]any{"trashedAt": now, "updatedAt": now})
	return err
}

// Restore clears id's trash marker.
func (ft *FileTree) Restore(id string) error {
	_, err := ft.tbl.Update(id, map[string]any{"trashedAt": nil, "updatedAt": ft.clock()})
	return err
}

// ActiveChildren returns the live children of parentID (nil = roots),
// ordered by (createdAt, id).
func (ft *FileTree) ActiveChildren(parentID *string) []FileRow {
	ids := ft.index.ChildrenOf(parentID)
	out := make([]FileRow, 0, len(ids))
	for _, id := range ids {
		if fr, ok := ft.Get(id); ok {
			out = append(out, fr)
		}
	}
	return out
}

// DescendantIds returns every live descendant id of id (pre-order).
func (ft *FileTree) DescendantIds(id string) []string {
	var out []string
	var walk func(string)
	walk = func(cur string) {
		for _, c := range ft.index.ChildrenOf(&cur) {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// ResolveID looks up the file id at path, or ENOENT.
func (ft *FileTree) ResolveID(path string) (string, error) {
	id, ok := ft.index.PathToID()[normalizePath(path)]
	if !ok {
		return "", errNoEnt(path)
	}
	return id, nil
}

// Exists reports whether path resolves to a live entry.
func (ft *FileTree) Exists(path string) bool {
	_, ok := ft.index.PathToID()[normalizePath(path)]
	return ok
}

func ptrToAny(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64PtrToAny(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringPtr(v any) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asInt64Ptr(v any) *int64 {
	if v == nil {
		return nil
	}
	n := asInt64(v)
	return &n
}

package vfs

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/loomhq/workspace/internal/crdt"
)

// DirEntry is one entry returned by ReadDirWithFileTypes.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Filesystem is the POSIX-like surface composing the files metadata
// tree, the path index it derives, and the per-file content-doc pool.
// Symlinks and hard links aren't modeled — every path names exactly
// one file or folder.
type Filesystem struct {
	tree    *FileTree
	content *ContentDocStore
	clock   func() int64
}

// NewFilesystem builds a filesystem rooted at metaDoc's files table.
func NewFilesystem(metaDoc *crdt.Doc, clock func() int64, factories ...ProviderFactory) *Filesystem {
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	return &Filesystem{
		tree:    NewFileTree(metaDoc, clock),
		content: NewContentDocStore(factories...),
		clock:   clock,
	}
}

// Close releases the filesystem's observers and pooled content docs.
func (fs *Filesystem) Close(ctx context.Context) error {
	fs.tree.Close()
	return fs.content.DestroyAll(ctx)
}

func splitPath(p string) (parent, name string) {
	p = normalizePath(p)
	if p == "/" {
		return "", ""
	}
	idx := strings.LastIndex(p, "/")
	parent = p[:idx]
	if parent == "" {
		parent = "/"
	}
	return parent, p[idx+1:]
}

// resolveParentID resolves the folder id that should contain path's
// final segment, or nil for a root-level path.
func (fs *Filesystem) resolveParentID(path string) (*string, error) {
	parent, _ := splitPath(path)
	if parent == "" {
		return nil, errIsDir(path) // path itself is "/"
	}
	if parent == "/" {
		return nil, nil
	}
	pid, err := fs.tree.ResolveID(parent)
	if err != nil {
		return nil, errNoEnt(parent)
	}
	row, _ := fs.tree.Get(pid)
	if !row.isFolder() {
		return nil, errNotDir(parent)
	}
	return &pid, nil
}

// Stat returns the metadata of the file or folder at path.
func (fs *Filesystem) Stat(path string) (FileRow, error) {
	id, err := fs.tree.ResolveID(path)
	if err != nil {
		return FileRow{}, errNoEnt(path)
	}
	row, ok := fs.tree.Get(id)
	if !ok {
		return FileRow{}, errNoEnt(path)
	}
	return row, nil
}

// Lstat is Stat — no symlinks are modeled, so there is nothing to
// distinguish.
func (fs *Filesystem) Lstat(path string) (FileRow, error) { return fs.Stat(path) }

// Exists reports whether path resolves to a live entry.
func (fs *Filesystem) Exists(path string) bool { return fs.tree.Exists(path) }

// Realpath normalizes path and confirms it resolves.
func (fs *Filesystem) Realpath(path string) (string, error) {
	norm := normalizePath(path)
	if norm == "/" {
		return "/", nil
	}
	if !fs.tree.Exists(norm) {
		return "", errNoEnt(path)
	}
	return norm, nil
}

// Mkdir creates a folder at path. If recursive is true, missing
// ancestor folders are created as needed and an existing folder at
// path is not an error.
func (fs *Filesystem) Mkdir(path string, recursive bool) (FileRow, error) {
	norm := normalizePath(path)
	if id, err := fs.tree.ResolveID(norm); err == nil {
		row, _ := fs.tree.Get(id)
		if recursive && row.isFolder() {
			return row, nil
		}
		return FileRow{}, errExist(path)
	}

	parent, name := splitPath(norm)
	var parentID *string
	if parent != "/" && parent != "" {
		pid, err := fs.tree.ResolveID(parent)
		if err != nil {
			if !recursive {
				return FileRow{}, errNoEnt(parent)
			}
			if _, err := fs.Mkdir(parent, true); err != nil {
				return FileRow{}, err
			}
			pid, _ = fs.tree.ResolveID(parent)
		}
		parentID = &pid
	}
	return fs.tree.Create(name, parentID, "folder"), nil
}

// ReadDir lists the names of path's live children.
func (fs *Filesystem) ReadDir(path string) ([]string, error) {
	entries, err := fs.ReadDirWithFileTypes(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// ReadDirWithFileTypes lists path's live children with their kind.
func (fs *Filesystem) ReadDirWithFileTypes(path string) ([]DirEntry, error) {
	var parentID *string
	norm := normalizePath(path)
	if norm != "/" {
		id, err := fs.tree.ResolveID(norm)
		if err != nil {
			return nil, errNoEnt(path)
		}
		row, _ := fs.tree.Get(id)
		if !row.isFolder() {
			return nil, errNotDir(path)
		}
		parentID = &id
	}
	children := fs.tree.ActiveChildren(parentID)
	out := make([]DirEntry, 0, len(children))
	for _, c := range children {
		p, _ := fs.tree.index.PathOf(c.ID)
		_, name := splitPath(p)
		out = append(out, DirEntry{Name: name, IsDir: c.isFolder()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (fs *Filesystem) timelineFor(ctx context.Context, fileID string) (*Timeline, error) {
	doc, err := fs.content.Ensure(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return NewTimeline(doc), nil
}

// WriteFile creates path (if missing, its parent must already exist)
// or overwrites its content, then updates its metadata size.
func (fs *Filesystem) WriteFile(ctx context.Context, path string, data any) error {
	norm := normalizePath(path)
	id, err := fs.tree.ResolveID(norm)
	if err != nil {
		parentID, perr := fs.resolveParentID(norm)
		if perr != nil {
			return perr
		}
		_, name := splitPath(norm)
		row := fs.tree.Create(name, parentID, "file")
		id = row.ID
	} else {
		row, _ := fs.tree.Get(id)
		if row.isFolder() {
			return errIsDir(path)
		}
	}

	tl, err := fs.timelineFor(ctx, id)
	if err != nil {
		return err
	}
	size, err := tl.Write(data)
	if err != nil {
		return err
	}
	return fs.tree.Touch(id, size)
}

// AppendFile extends path's content, falling back to a full write if
// there is nothing to append to yet.
func (fs *Filesystem) AppendFile(ctx context.Context, path string, data any) error {
	id, err := fs.tree.ResolveID(normalizePath(path))
	if err != nil {
		return fs.WriteFile(ctx, path, data)
	}
	row, _ := fs.tree.Get(id)
	if row.isFolder() {
		return errIsDir(path)
	}
	tl, err := fs.timelineFor(ctx, id)
	if err != nil {
		return err
	}
	size, ok := tl.Append(data)
	if !ok {
		return fs.WriteFile(ctx, path, data)
	}
	return fs.tree.Touch(id, size)
}

// ReadFile returns path's content projected to a string.
func (fs *Filesystem) ReadFile(ctx context.Context, path string) (string, error) {
	id, err := fs.resolveFileID(path)
	if err != nil {
		return "", err
	}
	tl, err := fs.timelineFor(ctx, id)
	if err != nil {
		return "", err
	}
	return tl.Read()
}

// ReadFileBuffer returns path's content as raw bytes.
func (fs *Filesystem) ReadFileBuffer(ctx context.Context, path string) ([]byte, error) {
	id, err := fs.resolveFileID(path)
	if err != nil {
		return nil, err
	}
	tl, err := fs.timelineFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return tl.ReadBuffer()
}

func (fs *Filesystem) resolveFileID(path string) (string, error) {
	id, err := fs.tree.ResolveID(normalizePath(path))
	if err != nil {
		return "", errNoEnt(path)
	}
	row, _ := fs.tree.Get(id)
	if row.isFolder() {
		return "", errIsDir(path)
	}
	return id, nil
}

// Remove deletes path. A non-empty folder requires recursive=true,
// which soft-deletes the whole subtree.
func (fs *Filesystem) Remove(ctx context.Context, path string, recursive bool) error {
	id, err := fs.tree.ResolveID(normalizePath(path))
	if err != nil {
		return errNoEnt(path)
	}
	row, _ := fs.tree.Get(id)
	descendants := fs.tree.DescendantIds(id)
	if row.isFolder() && len(descendants) > 0 && !recursive {
		return errNotEmpty(path)
	}
	for _, d := range descendants {
		if err := fs.tree.SoftDelete(d); err != nil {
			return err
		}
		_ = fs.content.Destroy(ctx, d)
	}
	if err := fs.tree.SoftDelete(id); err != nil {
		return err
	}
	return fs.content.Destroy(ctx, id)
}

// Move renames and/or reparents the entry at from to to.
func (fs *Filesystem) Move(from, to string) error {
	id, err := fs.tree.ResolveID(normalizePath(from))
	if err != nil {
		return errNoEnt(from)
	}
	if fs.tree.Exists(normalizePath(to)) {
		return errExist(to)
	}
	parentID, err := fs.resolveParentID(to)
	if err != nil {
		return err
	}
	_, name := splitPath(normalizePath(to))
	return fs.tree.Move(id, parentID, name)
}

// Copy duplicates the file or folder tree at from into to, including
// file content.
func (fs *Filesystem) Copy(ctx context.Context, from, to string) error {
	id, err := fs.tree.ResolveID(normalizePath(from))
	if err != nil {
		return errNoEnt(from)
	}
	if fs.tree.Exists(normalizePath(to)) {
		return errExist(to)
	}
	parentID, err := fs.resolveParentID(to)
	if err != nil {
		return err
	}
	_, name := splitPath(normalizePath(to))
	return fs.copyNode(ctx, id, parentID, name)
}

func (fs *Filesystem) copyNode(ctx context.Context, srcID string, destParent *string, destName string) error {
	row, _ := fs.tree.Get(srcID)
	newRow := fs.tree.Create(destName, destParent, row.Type)
	if !row.isFolder() {
		buf, err := func() ([]byte, error) {
			tl, err := fs.timelineFor(ctx, srcID)
			if err != nil {
				return nil, err
			}
			return tl.ReadBuffer()
		}()
		if err != nil {
			return err
		}
		destTl, err := fs.timelineFor(ctx, newRow.ID)
		if err != nil {
			return err
		}
		size, err := destTl.Write(buf)
		if err != nil {
			return err
		}
		return fs.tree.Touch(newRow.ID, size)
	}
	for _, child := range fs.tree.ActiveChildren(&srcID) {
		if err := fs.copyNode(ctx, child.ID, &newRow.ID, child.Name); err != nil {
			return err
		}
	}
	return nil
}

// Chmod is a no-op: this engine does not model permission bits.
func (fs *Filesystem) Chmod(path string, mode int) error {
	if !fs.tree.Exists(normalizePath(path)) {
		return errNoEnt(path)
	}
	return nil
}

// Utimes sets path's recorded modification time.
func (fs *Filesystem) Utimes(path string, mtime int64) error {
	id, err := fs.tree.ResolveID(normalizePath(path))
	if err != nil {
		return errNoEnt(path)
	}
	_, err = fs.tree.tbl.Update(id, map[string]any{"updatedAt": mtime})
	return err
}

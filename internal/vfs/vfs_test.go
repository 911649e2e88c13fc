package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
)

func newFS(t *testing.T) *Filesystem {
	t.Helper()
	doc := crdt.NewDoc("meta")
	var now int64 = 1000
	clock := func() int64 { now++; return now }
	return NewFilesystem(doc, clock)
}

func TestNestedPathIndexing(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/notes.txt", "hi"))
	_, err := fs.Mkdir("/docs", false)
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(ctx, "/docs/readme.md", "hello"))

	require.True(t, fs.Exists("/notes.txt"))
	require.True(t, fs.Exists("/docs/readme.md"))

	entries, err := fs.ReadDir("/docs")
	require.NoError(t, err)
	require.Equal(t, []string{"readme.md"}, entries)

	content, err := fs.ReadFile(ctx, "/docs/readme.md")
	require.NoError(t, err)
	require.Equal(t, "hello", content)
}

func TestNameDisambiguation(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/a.txt", "1"))
	// A second root-level file sharing the same raw name must be
	// disambiguated in the path index without touching the original.
	fs.tree.Create("a.txt", nil, "file")

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "a (1).txt"}, entries)
}

func TestOrphanRepair(t *testing.T) {
	fs := newFS(t)

	parent, err := fs.Mkdir("/parent", false)
	require.NoError(t, err)
	child := fs.tree.Create("child", &parent.ID, "folder")

	// Simulate the parent having been concurrently deleted out from
	// under child: trash the parent directly, leaving child's parentId
	// dangling without going through FileTree.Move.
	require.NoError(t, fs.tree.SoftDelete(parent.ID))

	idx, _ := fs.tree.computeIndex()
	// child should now resolve as a root, not vanish from the index.
	path, ok := idx.PathOf(child.ID)
	require.True(t, ok)
	require.Equal(t, "/child", path)
}

func TestReactiveRename(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "/old.txt", "x"))

	require.NoError(t, fs.Move("/old.txt", "/new.txt"))

	require.False(t, fs.Exists("/old.txt"))
	require.True(t, fs.Exists("/new.txt"))
	content, err := fs.ReadFile(ctx, "/new.txt")
	require.NoError(t, err)
	require.Equal(t, "x", content)
}

func TestMkdirRecursiveCreatesAncestors(t *testing.T) {
	fs := newFS(t)
	_, err := fs.Mkdir("/a/b/c", true)
	require.NoError(t, err)
	require.True(t, fs.Exists("/a"))
	require.True(t, fs.Exists("/a/b"))
	require.True(t, fs.Exists("/a/b/c"))
}

func TestRemoveNonEmptyRequiresRecursive(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	_, err := fs.Mkdir("/dir", false)
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(ctx, "/dir/f.txt", "x"))

	err = fs.Remove(ctx, "/dir", false)
	var fsErr *FsError
	require.ErrorAs(t, err, &fsErr)
	require.Equal(t, ENOTEMPTY, fsErr.Code)

	require.NoError(t, fs.Remove(ctx, "/dir", true))
	require.False(t, fs.Exists("/dir"))
	require.False(t, fs.Exists("/dir/f.txt"))
}

func TestAppendFallsBackToWriteOnEmptyTimeline(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	require.NoError(t, fs.AppendFile(ctx, "/log.txt", "first"))
	require.NoError(t, fs.AppendFile(ctx, "/log.txt", " second"))

	content, err := fs.ReadFile(ctx, "/log.txt")
	require.NoError(t, err)
	require.Equal(t, "first second", content)
}

func TestAppendStringOnBinaryDecodesAndSwitchesToText(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "/b.dat", []byte("abc")))

	id, err := fs.resolveFileID("/b.dat")
	require.NoError(t, err)
	tl, err := fs.timelineFor(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ModeBinary, tl.CurrentMode())

	require.NoError(t, fs.AppendFile(ctx, "/b.dat", "def"))
	tl2, err := fs.timelineFor(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ModeText, tl2.CurrentMode())
	content, err := fs.ReadFile(ctx, "/b.dat")
	require.NoError(t, err)
	require.Equal(t, "abcdef", content)
}

func TestCopyDuplicatesSubtreeAndContent(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	_, err := fs.Mkdir("/src", false)
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(ctx, "/src/a.txt", "content-a"))

	require.NoError(t, fs.Copy(ctx, "/src", "/dst"))

	require.True(t, fs.Exists("/src/a.txt"))
	require.True(t, fs.Exists("/dst/a.txt"))
	content, err := fs.ReadFile(ctx, "/dst/a.txt")
	require.NoError(t, err)
	require.Equal(t, "content-a", content)
}

func TestWriteFileRequiresExistingParent(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	err := fs.WriteFile(ctx, "/missing/child.txt", "x")
	var fsErr *FsError
	require.ErrorAs(t, err, &fsErr)
	require.Equal(t, ENOENT, fsErr.Code)
}

func TestIncrementalTextEditPreservesPrefixSuffix(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	require.NoError(t, fs.WriteFile(ctx, "/f.txt", "hello world"))
	require.NoError(t, fs.WriteFile(ctx, "/f.txt", "hello there"))

	id, err := fs.resolveFileID("/f.txt")
	require.NoError(t, err)
	tl, err := fs.timelineFor(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ModeText, tl.CurrentMode())
	content, err := tl.Read()
	require.NoError(t, err)
	require.Equal(t, "hello there", content)
}

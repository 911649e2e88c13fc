package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
)

func TestWriteSheetProjectsToCSV(t *testing.T) {
	doc := crdt.NewDoc("content")
	tl := NewTimeline(doc)

	size := tl.WriteSheet(
		[]string{"name", "qty"},
		[][]string{{"apples", "3"}, {"pears", "5"}},
	)
	require.Equal(t, ModeSheet, tl.CurrentMode())
	require.Positive(t, size)

	got, err := tl.Read()
	require.NoError(t, err)
	require.Equal(t, "name,qty\napples,3\npears,5\n", got)

	buf, err := tl.ReadBuffer()
	require.NoError(t, err)
	require.Equal(t, got, string(buf))
}

func TestWriteSheetShorterRowLeavesTrailingCellsBlank(t *testing.T) {
	doc := crdt.NewDoc("content")
	tl := NewTimeline(doc)

	tl.WriteSheet([]string{"a", "b", "c"}, [][]string{{"x"}})

	got, err := tl.Read()
	require.NoError(t, err)
	require.Equal(t, "a,b,c\nx,,\n", got)
}

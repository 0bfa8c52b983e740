package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryUniqueness(t *testing.T) {
	h := NewHistory(1)
	h.Push(2)
	h.Push(2)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Cursor())
}

func TestHistoryTruncation(t *testing.T) {
	h := NewHistory("a")
	h.Push("b")
	h.Back()
	h.Push("c")
	h.Forward() // no-op: truncated history has nothing beyond cursor

	assert.Equal(t, []string{"a", "c"}, h.Entries())
	assert.Equal(t, 1, h.Cursor())
}

func TestHistoryBackForwardSaturate(t *testing.T) {
	h := NewHistory(1)
	h.Back()
	h.Back()
	assert.Equal(t, 0, h.Cursor())

	h.Push(2)
	h.Push(3)
	h.Forward()
	h.Forward()
	assert.Equal(t, 2, h.Cursor())
}

func TestFromEntriesRejectsBadCursor(t *testing.T) {
	_, ok := FromEntries([]int{1, 2}, 5)
	assert.False(t, ok)

	_, ok = FromEntries([]int{}, 0)
	assert.False(t, ok)

	h, ok := FromEntries([]int{1, 2}, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, h.Current())
}

func TestParentNavigation(t *testing.T) {
	// Folders F1={c1,c2} (folder index 0), orphan cipher c3 -> "No folder"
	// (folder index 1).
	folderOf := func(c CipherIndex) FolderIndex {
		if c == 0 || c == 1 {
			return 0
		}
		return 1
	}

	v := NewList(List{Kind: ListAll})
	v = NewCipher(0) // simulate ok_alt into c1
	v = v.Parent(folderOf)
	assert.True(t, v.IsFolder())
	assert.Equal(t, FolderIndex(0), v.Folder())

	v = v.Parent(folderOf)
	assert.True(t, v.IsList())
	assert.Equal(t, ListFolders, v.List().Kind)

	v = v.Parent(folderOf)
	assert.True(t, v.IsList())
	assert.Equal(t, ListFolders, v.List().Kind, "List(Folders) is a fixed point")
}

func TestParentTrashFixedPoint(t *testing.T) {
	v := NewList(List{Kind: ListTrash})
	assert.Equal(t, v, v.Parent(nil))
}

package cache

import (
	"errors"
	"testing"

	"github.com/rfratto/fdserve/internal/fine"
	"github.com/stretchr/testify/require"
)

type testCloser struct{ closed int }

func (tc *testCloser) Close() error {
	tc.closed++
	return nil
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("close failed") }

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(nil, &testCloser{}, make(NodeTable), make(HandleTable))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresEmptyTables(t *testing.T) {
	nodes := make(NodeTable)
	nodes[5] = &cachedNode{}

	_, err := New(nil, &testCloser{}, nodes, make(HandleTable))
	require.EqualError(t, err, "node table is not empty (1 entries)")

	handles := make(HandleTable)
	handles[1] = &cachedHandle{}
	_, err = New(nil, &testCloser{}, make(NodeTable), handles)
	require.EqualError(t, err, "handle table is not empty (1 entries)")

	_, err = New(nil, &testCloser{}, nil, make(HandleTable))
	require.Error(t, err)
}

func TestCache_RootNode(t *testing.T) {
	c := newTestCache(t)

	info, _, err := c.GetNode(fine.RootNode)
	require.NoError(t, err)
	require.Equal(t, fine.RootNode, info.ID)

	path, err := c.NodePath(fine.RootNode)
	require.NoError(t, err)
	require.Equal(t, "/", path)
}

func TestCache_AddNode(t *testing.T) {
	c := newTestCache(t)

	dir, err := c.AddNode(fine.RootNode, "dir", &testCloser{})
	require.NoError(t, err)
	file, err := c.AddNode(dir.ID, "file.txt", &testCloser{})
	require.NoError(t, err)

	path, err := c.NodePath(file.ID)
	require.NoError(t, err)
	require.Equal(t, "/dir/file.txt", path)

	// Adding the same key returns the same node.
	again, err := c.AddNode(dir.ID, "file.txt", &testCloser{})
	require.NoError(t, err)
	require.Equal(t, file, again)

	_, err = c.AddNode(1234, "orphan", &testCloser{})
	require.ErrorIs(t, err, fine.ErrorStale)
}

func TestCache_ReleaseNode(t *testing.T) {
	c := newTestCache(t)

	node := &testCloser{}
	info, err := c.AddNode(fine.RootNode, "a", node)
	require.NoError(t, err)
	_, err = c.AddNode(fine.RootNode, "a", nil)
	require.NoError(t, err)

	// Two lookups; the first release keeps the node alive.
	require.NoError(t, c.ReleaseNode(info.ID, 1))
	_, _, err = c.GetNode(info.ID)
	require.NoError(t, err)
	require.Equal(t, 0, node.closed)

	require.NoError(t, c.ReleaseNode(info.ID, 1))
	_, _, err = c.GetNode(info.ID)
	require.ErrorIs(t, err, fine.ErrorStale)
	require.Equal(t, 1, node.closed)

	require.ErrorIs(t, c.ReleaseNode(info.ID, 1), fine.ErrorStale)
}

func TestCache_ReleaseNode_MoreThanHeld(t *testing.T) {
	c := newTestCache(t)

	info, err := c.AddNode(fine.RootNode, "a", &testCloser{})
	require.NoError(t, err)
	require.NoError(t, c.ReleaseNode(info.ID, 10))

	nodes, _ := c.Len()
	require.Equal(t, 1, nodes)
}

func TestCache_RenameNode(t *testing.T) {
	c := newTestCache(t)

	dir, err := c.AddNode(fine.RootNode, "dir", &testCloser{})
	require.NoError(t, err)
	file, err := c.AddNode(fine.RootNode, "old", &testCloser{})
	require.NoError(t, err)

	require.NoError(t, c.RenameNode(fine.RootNode, "old", dir.ID, "new"))

	path, err := c.NodePath(file.ID)
	require.NoError(t, err)
	require.Equal(t, "/dir/new", path)

	err = c.RenameNode(fine.RootNode, "old", dir.ID, "other")
	require.ErrorIs(t, err, fine.ErrorNotExist)
}

func TestCache_Handles(t *testing.T) {
	c := newTestCache(t)

	first := &testCloser{}
	hi, err := c.AddHandle(first)
	require.NoError(t, err)
	require.Equal(t, fine.Handle(1), hi.ID)

	_, got, err := c.GetHandle(hi.ID)
	require.NoError(t, err)
	require.Same(t, first, got)

	require.NoError(t, c.ReleaseHandle(hi.ID))
	require.Equal(t, 1, first.closed)
	require.ErrorIs(t, c.ReleaseHandle(hi.ID), fine.ErrorBadHandle)

	// Released IDs are reused.
	reused, err := c.AddHandle(&testCloser{})
	require.NoError(t, err)
	require.Equal(t, hi.ID, reused.ID)
}

func TestCache_Close(t *testing.T) {
	c := newTestCache(t)

	var (
		node   = &testCloser{}
		handle = &testCloser{}
	)
	_, err := c.AddNode(fine.RootNode, "a", node)
	require.NoError(t, err)
	_, err = c.AddHandle(handle)
	require.NoError(t, err)
	_, err = c.AddHandle(failingCloser{})
	require.NoError(t, err)

	err = c.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "close failed")

	require.Equal(t, 1, node.closed)
	require.Equal(t, 1, handle.closed)

	nodes, handles := c.Len()
	require.Equal(t, 1, nodes, "root node should survive Close")
	require.Equal(t, 0, handles)
}

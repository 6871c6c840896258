// Package cache tracks the nodes and open handles a session has handed out.
package cache

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/rfratto/fdserve/internal/fine"
	"go.uber.org/atomic"
)

// NodeTable maps node IDs to cached nodes. The zero value is not usable;
// create one with make.
type NodeTable map[fine.Node]*cachedNode

// HandleTable maps handle IDs to open handles. The zero value is not usable;
// create one with make.
type HandleTable map[fine.Handle]*cachedHandle

// Cache implements a cache of nodes and handles that a Handler can use.
type Cache struct {
	log log.Logger

	mut        sync.RWMutex
	nodes      NodeTable
	nodeKeys   map[Key]*cachedNode
	nextID     uint64
	generation uint64

	handleMut    sync.RWMutex
	handles      HandleTable
	availHandles []fine.Handle
	nextHandle   fine.Handle
}

type cachedNode struct {
	Node Node
	Info NodeInfo

	refs atomic.Uint64
}

type cachedHandle struct {
	Handle Handle
	Info   HandleInfo
}

// Node is a value stored alongside a node ID.
type Node interface {
	// Close is called when the Node is fully removed from the cache.
	Close() error
}

// Handle is a value stored alongside a handle ID.
type Handle interface {
	// Close is called when the Handle is fully removed from the cache.
	Close() error
}

type NodeInfo struct {
	ID         fine.Node // ID of the Node
	Generation uint64    // Generation of the ID
	Key        Key       // Key used to identify the node
}

// Key identifies a node by its name within its parent.
type Key struct {
	Parent fine.Node
	Name   string
}

type HandleInfo struct {
	ID fine.Handle
}

// New creates a cache backed by nodes and handles, pre-populated with a root
// node. Both tables must be empty; a table that already holds entries belongs
// to someone else.
func New(l log.Logger, rootNode Node, nodes NodeTable, handles HandleTable) (*Cache, error) {
	switch {
	case nodes == nil || handles == nil:
		return nil, fmt.Errorf("cache tables must not be nil")
	case len(nodes) != 0:
		return nil, fmt.Errorf("node table is not empty (%d entries)", len(nodes))
	case len(handles) != 0:
		return nil, fmt.Errorf("handle table is not empty (%d entries)", len(handles))
	}
	if l == nil {
		l = log.NewNopLogger()
	}

	c := &Cache{
		log:      l,
		nodes:    nodes,
		nodeKeys: make(map[Key]*cachedNode),
		handles:  handles,
	}
	info, err := c.AddNode(0, "/", rootNode)
	if err != nil {
		return nil, err
	}
	if info.ID != fine.RootNode {
		return nil, fmt.Errorf("root node assigned ID %d", info.ID)
	}
	return c, nil
}

// AddNode stores a new node. If the named node already exists, the node
// argument is ignored and the reference count of the existing node increases.
func (c *Cache) AddNode(parent fine.Node, name string, node Node) (info NodeInfo, err error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	key := Key{Parent: parent, Name: name}
	if n, found := c.nodeKeys[key]; found {
		n.refs.Inc()
		return n.Info, nil
	}

	if parent != 0 {
		if _, exist := c.nodes[parent]; !exist {
			return info, fmt.Errorf("could not find parent node %d: %w", parent, fine.ErrorStale)
		}
	}

	c.nextID++
	if c.nextID == 0 {
		// IDs wrapped around; start a new generation. Exhausting the
		// generations too leaves the counters where they were so every later
		// call fails the same way.
		if c.generation+1 == 0 {
			c.nextID--
			return info, fmt.Errorf("exhausted node ID space: %w", fine.ErrorNoMemory)
		}
		c.generation++
		c.nextID = 1
	}

	n := &cachedNode{
		Node: node,
		Info: NodeInfo{
			ID:         fine.Node(c.nextID),
			Generation: c.generation,
			Key:        key,
		},
	}
	n.refs.Store(1)

	c.nodes[n.Info.ID] = n
	c.nodeKeys[key] = n
	return n.Info, nil
}

// RenameNode moves a cached node from oldName in parent to newName in newDir.
// Returns ErrorNotExist if the source isn't currently cached.
func (c *Cache) RenameNode(parent fine.Node, oldName string, newDir fine.Node, newName string) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	var (
		sourceKey = Key{Parent: parent, Name: oldName}
		targetKey = Key{Parent: newDir, Name: newName}
	)

	if _, ok := c.nodes[newDir]; !ok {
		return fmt.Errorf("target directory %d does not exist: %w", newDir, fine.ErrorStale)
	}
	n, found := c.nodeKeys[sourceKey]
	if !found {
		return fmt.Errorf("source file %s does not exist: %w", oldName, fine.ErrorNotExist)
	}

	n.Info.Key = targetKey
	delete(c.nodeKeys, sourceKey)
	c.nodeKeys[targetKey] = n
	return nil
}

// ReleaseNode subtracts refs from the reference count of a node. The node is
// removed and closed once its count reaches 0.
func (c *Cache) ReleaseNode(id fine.Node, refs uint64) error {
	c.mut.Lock()
	n, ok := c.nodes[id]
	if !ok {
		c.mut.Unlock()
		return fine.ErrorStale
	}
	if cur := n.refs.Load(); refs < cur {
		n.refs.Sub(refs)
		c.mut.Unlock()
		return nil
	}
	c.removeNodeLocked(n)
	c.mut.Unlock()

	// Close outside of the lock.
	return c.closeNode(n)
}

// removeNodeLocked drops n from both indexes. mut must be held.
func (c *Cache) removeNodeLocked(n *cachedNode) {
	delete(c.nodes, n.Info.ID)

	// A rename may have put another node under the same key.
	if found := c.nodeKeys[n.Info.Key]; found == n {
		delete(c.nodeKeys, n.Info.Key)
	}
}

func (c *Cache) closeNode(n *cachedNode) error {
	if n.Node == nil {
		return nil
	}
	if err := n.Node.Close(); err != nil {
		level.Error(c.log).Log("msg", "error when closing stale cache node", "id", n.Info.ID, "err", err)
		return err
	}
	return nil
}

// GetNode returns the node for ID.
func (c *Cache) GetNode(id fine.Node) (NodeInfo, Node, error) {
	c.mut.RLock()
	defer c.mut.RUnlock()

	n, ok := c.nodes[id]
	if !ok {
		return NodeInfo{}, nil, fine.ErrorStale
	}
	return n.Info, n.Node, nil
}

// NodePath returns the path of a node relative to the root. The root itself
// is "/".
func (c *Cache) NodePath(id fine.Node) (string, error) {
	c.mut.RLock()
	defer c.mut.RUnlock()

	cur, ok := c.nodes[id]
	if !ok {
		return "", fine.ErrorStale
	}

	var names []string
	for {
		names = append(names, cur.Info.Key.Name)

		parent := cur.Info.Key.Parent
		if parent == 0 {
			break
		}
		next, ok := c.nodes[parent]
		if !ok {
			return "", fmt.Errorf("could not find parent %d: %w", parent, fine.ErrorStale)
		}
		cur = next
	}

	// names was built leaf first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return filepath.Join(names...), nil
}

// Len returns the number of cached nodes and open handles.
func (c *Cache) Len() (nodes, handles int) {
	c.mut.RLock()
	nodes = len(c.nodes)
	c.mut.RUnlock()

	c.handleMut.RLock()
	handles = len(c.handles)
	c.handleMut.RUnlock()
	return
}

// AddHandle stores a new handle.
func (c *Cache) AddHandle(handle Handle) (HandleInfo, error) {
	c.handleMut.Lock()
	defer c.handleMut.Unlock()

	h := &cachedHandle{Handle: handle}

	if numAvail := len(c.availHandles); numAvail > 0 {
		h.Info.ID = c.availHandles[numAvail-1]
		c.availHandles = c.availHandles[:numAvail-1]
	} else {
		c.nextHandle++
		if c.nextHandle == 0 {
			// Every handle ID is in use until something is released.
			c.nextHandle--
			return HandleInfo{}, fine.ErrorNoMemory
		}
		h.Info.ID = c.nextHandle
	}

	c.handles[h.Info.ID] = h
	return h.Info, nil
}

// GetHandle returns the Handle for a Handle ID.
func (c *Cache) GetHandle(id fine.Handle) (HandleInfo, Handle, error) {
	c.handleMut.RLock()
	defer c.handleMut.RUnlock()

	h, ok := c.handles[id]
	if !ok {
		return HandleInfo{}, nil, fine.ErrorBadHandle
	}
	return h.Info, h.Handle, nil
}

// ReleaseHandle removes and closes an open handle. Its ID becomes available
// for reuse.
func (c *Cache) ReleaseHandle(id fine.Handle) error {
	c.handleMut.Lock()
	h, ok := c.handles[id]
	if !ok {
		c.handleMut.Unlock()
		return fine.ErrorBadHandle
	}
	delete(c.handles, id)
	c.availHandles = append(c.availHandles, id)
	c.handleMut.Unlock()

	if h.Handle == nil {
		return nil
	}
	if err := h.Handle.Close(); err != nil {
		level.Error(c.log).Log("msg", "error when closing stale cache handle", "id", id, "err", err)
		return err
	}
	return nil
}

// Close releases every handle and every node other than the root. The cache
// remains usable afterwards.
func (c *Cache) Close() error {
	var errs error

	c.handleMut.Lock()
	handles := make([]*cachedHandle, 0, len(c.handles))
	for id, h := range c.handles {
		handles = append(handles, h)
		delete(c.handles, id)
	}
	c.availHandles = nil
	c.nextHandle = 0
	c.handleMut.Unlock()

	for _, h := range handles {
		if h.Handle == nil {
			continue
		}
		if err := h.Handle.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing handle %d: %w", h.Info.ID, err))
		}
	}

	c.mut.Lock()
	var nodes []*cachedNode
	for id, n := range c.nodes {
		if id == fine.RootNode {
			continue
		}
		nodes = append(nodes, n)
		c.removeNodeLocked(n)
	}
	c.mut.Unlock()

	for _, n := range nodes {
		if err := c.closeNode(n); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing node %d: %w", n.Info.ID, err))
		}
	}
	return errs
}

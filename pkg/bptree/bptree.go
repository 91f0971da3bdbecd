// Package bptree implements an in-memory B+tree with linked leaves for ordered scans.
package bptree

import (
	"cmp"
	"slices"
	"sync"
)

// DefaultOrder is the fallback branching factor if a user-supplied order is too small.
const DefaultOrder = 32

// findChildIndex returns the child to descend into for searchKey. Keys equal to a
// separator live in the right subtree.
func findChildIndex[K cmp.Ordered](keys []K, searchKey K) int {
	i, found := slices.BinarySearch(keys, searchKey)
	if found {
		return i + 1
	}
	return i
}

// BPlusTree maps ordered keys to values. A tree-wide RWMutex guards it; readers
// run in parallel and writers are exclusive.
//
// Deletes remove entries from leaves without rebalancing. Separators left in
// internal nodes stay valid routing keys, so lookups and scans remain correct;
// a tree that shrinks a lot simply keeps sparse leaves.
type BPlusTree[K cmp.Ordered, V any] struct {
	root   *node[K, V]
	order  int
	height int
	size   int
	m      sync.RWMutex
}

type node[K cmp.Ordered, V any] struct {
	isLeaf   bool
	keys     []K
	children []*node[K, V] // used if !isLeaf
	values   []V           // used if isLeaf
	parent   *node[K, V]
	next     *node[K, V] // leaf-link pointer, for range scans
}

// NewBPlusTree creates and returns a B+Tree with the given order.
// If the specified order < 3, we fall back to DefaultOrder.
func NewBPlusTree[K cmp.Ordered, V any](order int) *BPlusTree[K, V] {
	if order < 3 {
		order = DefaultOrder
	}
	return &BPlusTree[K, V]{
		root:   newLeaf[K, V](order),
		order:  order,
		height: 1,
	}
}

func newLeaf[K cmp.Ordered, V any](order int) *node[K, V] {
	return &node[K, V]{
		isLeaf: true,
		keys:   make([]K, 0, order+1),
		values: make([]V, 0, order+1),
	}
}

// Height returns the number of levels, 1 for a tree that is a single leaf.
func (tree *BPlusTree[K, V]) Height() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.height
}

// Len returns the number of stored keys.
func (tree *BPlusTree[K, V]) Len() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.size
}

func (tree *BPlusTree[K, V]) findLeaf(key K) *node[K, V] {
	current := tree.root
	for !current.isLeaf {
		current = current.children[findChildIndex(current.keys, key)]
	}
	return current
}

// Search locates the value associated with key.
func (tree *BPlusTree[K, V]) Search(key K) (V, bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(key)
	if i, ok := slices.BinarySearch(leaf.keys, key); ok {
		return leaf.values[i], true
	}
	var zero V
	return zero, false
}

// Insert adds or replaces key. It reports whether the key was new.
func (tree *BPlusTree[K, V]) Insert(key K, value V) bool {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	i, found := slices.BinarySearch(leaf.keys, key)
	if found {
		leaf.values[i] = value
		return false
	}
	leaf.keys = slices.Insert(leaf.keys, i, key)
	leaf.values = slices.Insert(leaf.values, i, value)
	tree.size++

	if len(leaf.keys) > tree.order {
		tree.splitLeaf(leaf)
	}
	return true
}

// Delete removes key and returns its previous value.
func (tree *BPlusTree[K, V]) Delete(key K) (V, bool) {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	i, found := slices.BinarySearch(leaf.keys, key)
	if !found {
		var zero V
		return zero, false
	}
	old := leaf.values[i]
	leaf.keys = slices.Delete(leaf.keys, i, i+1)
	leaf.values = slices.Delete(leaf.values, i, i+1)
	tree.size--
	return old, true
}

// Ascend calls fn for every key >= from in ascending order until fn returns false.
func (tree *BPlusTree[K, V]) Ascend(from K, fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(from)
	i, _ := slices.BinarySearch(leaf.keys, from)
	tree.walk(leaf, i, fn)
}

// AscendAll calls fn for every key in ascending order until fn returns false.
func (tree *BPlusTree[K, V]) AscendAll(fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	current := tree.root
	for !current.isLeaf {
		current = current.children[0]
	}
	tree.walk(current, 0, fn)
}

func (tree *BPlusTree[K, V]) walk(leaf *node[K, V], start int, fn func(K, V) bool) {
	for ; leaf != nil; leaf = leaf.next {
		for ; start < len(leaf.keys); start++ {
			if !fn(leaf.keys[start], leaf.values[start]) {
				return
			}
		}
		start = 0
	}
}

// Clear drops every entry.
func (tree *BPlusTree[K, V]) Clear() {
	tree.m.Lock()
	defer tree.m.Unlock()
	tree.root = newLeaf[K, V](tree.order)
	tree.height = 1
	tree.size = 0
}

// splitLeaf moves the upper half of an overflowing leaf into a new right sibling.
func (tree *BPlusTree[K, V]) splitLeaf(leaf *node[K, V]) {
	mid := len(leaf.keys) / 2

	right := &node[K, V]{
		isLeaf: true,
		keys:   append(make([]K, 0, tree.order+1), leaf.keys[mid:]...),
		values: append(make([]V, 0, tree.order+1), leaf.values[mid:]...),
		next:   leaf.next,
		parent: leaf.parent,
	}

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.next = right

	tree.insertIntoParent(leaf, right.keys[0], right)
}

// insertIntoParent links right after left under their parent, growing a new root
// when left was the root.
func (tree *BPlusTree[K, V]) insertIntoParent(left *node[K, V], key K, right *node[K, V]) {
	parent := left.parent
	if parent == nil {
		root := &node[K, V]{
			keys:     []K{key},
			children: []*node[K, V]{left, right},
		}
		left.parent = root
		right.parent = root
		tree.root = root
		tree.height++
		return
	}

	idx := slices.Index(parent.children, left)
	parent.keys = slices.Insert(parent.keys, idx, key)
	parent.children = slices.Insert(parent.children, idx+1, right)
	right.parent = parent

	if len(parent.keys) > tree.order {
		tree.splitInternal(parent)
	}
}

// splitInternal promotes the middle separator of an overflowing internal node.
func (tree *BPlusTree[K, V]) splitInternal(internal *node[K, V]) {
	mid := len(internal.keys) / 2
	splitKey := internal.keys[mid]

	right := &node[K, V]{
		keys:     append([]K{}, internal.keys[mid+1:]...),
		children: append([]*node[K, V]{}, internal.children[mid+1:]...),
		parent:   internal.parent,
	}
	for _, child := range right.children {
		child.parent = right
	}

	internal.keys = internal.keys[:mid]
	internal.children = internal.children[:mid+1]

	tree.insertIntoParent(internal, splitKey, right)
}

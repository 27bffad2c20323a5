package trie

import (
	"fmt"
	"sort"
	"strings"
)

/*
Arena-based Scope Trie

Scope selectors such as "string.quoted.double" are stored as paths of their
dot-separated segments. A lookup walks a scope's segments from the root and
keeps the value of the deepest node that carries one, so "string.quoted"
styles "string.quoted.double.go" unless a longer selector exists.

Nodes live in a single slice and refer to their children by index, so a
theme with many selectors costs one growing allocation instead of one per
node.
*/

// NodeIndex represents the index of a trie node.
type NodeIndex int

// Arena is a memory pool that stores all trie nodes.
type Arena[V any] struct {
	nodes []arenaNode[V]
}

type arenaNode[V any] struct {
	// children maps a path segment to the index of the child node.
	children map[string]NodeIndex
	value    V
	hasValue bool
}

// NewArena creates an arena holding only the root node.
func NewArena[V any]() *Arena[V] {
	arena := &Arena[V]{
		nodes: make([]arenaNode[V], 0, 64),
	}
	arena.newNode()
	return arena
}

func (a *Arena[V]) newNode() NodeIndex {
	idx := NodeIndex(len(a.nodes))
	a.nodes = append(a.nodes, arenaNode[V]{children: make(map[string]NodeIndex)})
	return idx
}

// Insert stores value at the path given by segments, replacing any value
// already there. An empty path stores the value at the root.
func (a *Arena[V]) Insert(segments []string, value V) {
	current := NodeIndex(0)

	for _, part := range segments {
		childIdx, exists := a.nodes[current].children[part]
		if !exists {
			childIdx = a.newNode()
			a.nodes[current].children[part] = childIdx
		}
		current = childIdx
	}

	a.nodes[current].value = value
	a.nodes[current].hasValue = true
}

// LongestPrefix returns the value of the longest stored path that is a
// prefix of segments, and the length of that path.
func (a *Arena[V]) LongestPrefix(segments []string) (value V, depth int, ok bool) {
	current := NodeIndex(0)
	if root := a.nodes[0]; root.hasValue {
		value, ok = root.value, true
	}

	for i, part := range segments {
		next, exists := a.nodes[current].children[part]
		if !exists {
			break
		}
		current = next
		if node := a.nodes[current]; node.hasValue {
			value, depth, ok = node.value, i+1, true
		}
	}
	return value, depth, ok
}

// Len returns the number of stored values.
func (a *Arena[V]) Len() int {
	n := 0
	for _, node := range a.nodes {
		if node.hasValue {
			n++
		}
	}
	return n
}

// Equal checks whether two tries hold the same paths. Values are compared
// with their default formatting.
func (a *Arena[V]) Equal(b *Arena[V]) bool {
	if len(a.nodes) != len(b.nodes) {
		return false
	}
	return a.equalNodes(0, b, 0)
}

func (a *Arena[V]) equalNodes(aIdx NodeIndex, b *Arena[V], bIdx NodeIndex) bool {
	nodeA := a.nodes[aIdx]
	nodeB := b.nodes[bIdx]

	if nodeA.hasValue != nodeB.hasValue || len(nodeA.children) != len(nodeB.children) {
		return false
	}
	if nodeA.hasValue && fmt.Sprint(nodeA.value) != fmt.Sprint(nodeB.value) {
		return false
	}

	for _, key := range sortedKeys(nodeA.children) {
		childB, exists := nodeB.children[key]
		if !exists || !a.equalNodes(nodeA.children[key], b, childB) {
			return false
		}
	}
	return true
}

// DebugString returns a string representation of the trie for debugging purposes.
func (a *Arena[V]) DebugString() string {
	return a.debugStringNode(0)
}

func (a *Arena[V]) debugStringNode(idx NodeIndex) string {
	node := a.nodes[idx]
	var sb strings.Builder

	if node.hasValue {
		fmt.Fprintf(&sb, "=%v", node.value)
	}
	for _, key := range sortedKeys(node.children) {
		sb.WriteString(key)
		sb.WriteString("(")
		sb.WriteString(a.debugStringNode(node.children[key]))
		sb.WriteString(")")
	}
	return sb.String()
}

func sortedKeys(m map[string]NodeIndex) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Trie maps dotted scope selectors to values.
type Trie[V any] struct {
	arena *Arena[V]
}

// New returns an empty Trie.
func New[V any]() *Trie[V] {
	return &Trie[V]{arena: NewArena[V]()}
}

// Segments splits a scope or selector into its dot-separated parts.
func Segments(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Split(scope, ".")
}

// Insert stores value under selector.
func (t *Trie[V]) Insert(selector string, value V) {
	t.arena.Insert(Segments(selector), value)
}

// Lookup returns the value of the longest selector that prefixes scope.
func (t *Trie[V]) Lookup(scope string) (value V, depth int, ok bool) {
	return t.arena.LongestPrefix(Segments(scope))
}

// Len returns the number of selectors.
func (t *Trie[V]) Len() int {
	return t.arena.Len()
}

// Equal checks whether two tries hold the same selectors and values.
func (t *Trie[V]) Equal(other *Trie[V]) bool {
	return t.arena.Equal(other.arena)
}

// DebugString returns a string representation of the trie for debugging purposes.
func (t *Trie[V]) DebugString() string {
	return t.arena.DebugString()
}

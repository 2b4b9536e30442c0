// Package dlist implements an intrusive doubly-linked list.
//
// Nodes are embedded in the payload struct rather than allocated by the
// list itself, so chaining queues and observer lists never allocates on
// the hot path. Callers embed a Node value and pass its address to the
// list operations; the payload is recovered by the caller via its own
// pointer arithmetic (normally: the struct that embeds the Node is the
// payload, and Node.Owner is set to it by the caller at construction).
package dlist

// Node is an intrusive list link. Zero value is a valid, unlinked node.
type Node struct {
	prev, next *Node
	list       *List
	// Owner is an opaque back-pointer the caller sets to recover the
	// payload struct from a *Node returned by Foreach or iteration.
	Owner any
}

// InList reports whether the node is currently linked into a list.
func (n *Node) InList() bool {
	return n.list != nil
}

// List is an intrusive doubly-linked list head.
//
// Diag is an optional user pointer surfaced to diagnostic callers; the
// list itself never dereferences it.
type List struct {
	head, tail *Node
	count      int
	Diag       any
}

// Len returns the number of nodes currently linked.
func (l *List) Len() int {
	return l.count
}

// InsertHead links n at the front of the list.
func (l *List) InsertHead(n *Node) {
	if n.list != nil {
		n.list.Remove(n)
	}
	n.list = l
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.count++
}

// InsertTail links n at the back of the list.
func (l *List) InsertTail(n *Node) {
	if n.list != nil {
		n.list.Remove(n)
	}
	n.list = l
	n.next = nil
	n.prev = l.tail
	if l.tail != nil {
		l.tail.next = n
	}
	l.tail = n
	if l.head == nil {
		l.head = n
	}
	l.count++
}

// InsertBefore links n directly before mark, which must already be in l.
func (l *List) InsertBefore(mark, n *Node) {
	if mark == nil || mark.list != l {
		l.InsertTail(n)
		return
	}
	if n.list != nil {
		n.list.Remove(n)
	}
	n.list = l
	n.next = mark
	n.prev = mark.prev
	if mark.prev != nil {
		mark.prev.next = n
	} else {
		l.head = n
	}
	mark.prev = n
	l.count++
}

// Remove unlinks n from l. No-op if n is not currently linked into l
// (including when it is linked into a different list).
func (l *List) Remove(n *Node) {
	if n.list != l {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next, n.list = nil, nil, nil
	l.count--
}

// Head returns the first node, or nil if the list is empty.
func (l *List) Head() *Node {
	return l.head
}

// Next returns the node following n within its list, or nil at the tail.
func Next(n *Node) *Node {
	if n == nil {
		return nil
	}
	return n.next
}

// Foreach walks the list in order and returns the first node for which
// pred returns true, or nil if no node matches. O(n).
func (l *List) Foreach(pred func(*Node) bool) *Node {
	for n := l.head; n != nil; n = n.next {
		if pred(n) {
			return n
		}
	}
	return nil
}

// IsNodeInList reports whether n is linked into l. O(n) — walks the list
// rather than trusting n.list, so it also serves as a consistency check
// in diagnostics and tests.
func (l *List) IsNodeInList(n *Node) bool {
	for cur := l.head; cur != nil; cur = cur.next {
		if cur == n {
			return true
		}
	}
	return false
}

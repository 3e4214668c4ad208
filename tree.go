// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashbin

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Tree buckets are classic red-black trees (CLR) threaded through the arena.
// None of the functions in this file allocate except putTreeVal, so they
// hold on to the entries slice across the whole operation.

// treeRoot returns the root of the tree containing x.
func (m *Map[K, V]) treeRoot(x uint32) uint32 {
	for {
		p := m.entries[x].parent
		if p == nilEntry {
			return x
		}
		x = p
	}
}

// treeOrder orders a key with hash h and creation sequence seq relative to
// entry e: by hash, then by the key ordering when it distinguishes the two
// keys, then by sequence. The result is never 0 for distinct entries.
func (m *Map[K, V]) treeOrder(h uint32, key K, seq uint64, e *Entry[K, V]) int {
	switch {
	case h < e.hash:
		return -1
	case h > e.hash:
		return 1
	}
	if dir, ok := m.compare(key, e.key); ok && dir != 0 {
		return dir
	}
	return tieBreakOrder(seq, e.seq)
}

// findTree finds the entry for key with hash h in the subtree rooted at p.
// Where the key ordering cannot decide between the two subtrees the right
// subtree is searched recursively before continuing on the left.
func (m *Map[K, V]) findTree(p uint32, h uint32, key K) uint32 {
	es := m.entries
	for p != nilEntry {
		e := &es[p]
		pl, pr := e.left, e.right
		switch {
		case e.hash > h:
			p = pl
		case e.hash < h:
			p = pr
		case e.key == key:
			return p
		case pl == nilEntry:
			p = pr
		case pr == nilEntry:
			p = pl
		default:
			if dir, ok := m.compare(key, e.key); ok && dir != 0 {
				if dir < 0 {
					p = pl
				} else {
					p = pr
				}
			} else if q := m.findTree(pr, h, key); q != nilEntry {
				return q
			} else {
				p = pl
			}
		}
	}
	return nilEntry
}

// putTreeVal inserts a new entry for a key known to be absent from tree
// bucket bi. The entry is linked into the chain right after its tree parent.
func (m *Map[K, V]) putTreeVal(bi int, h uint32, key K, value V) {
	root := m.treeRoot(m.buckets[bi].head)
	// The new entry will receive the next sequence number.
	seq := m.seq + 1
	xp := root
	var dir int
	for {
		e := &m.entries[xp]
		dir = m.treeOrder(h, key, seq, e)
		next := e.right
		if dir <= 0 {
			next = e.left
		}
		if next == nilEntry {
			break
		}
		xp = next
	}

	x := m.newEntry(h, key, value)
	es := m.entries
	pe, xe := &es[xp], &es[x]
	xpn := pe.next
	if dir <= 0 {
		pe.left = x
	} else {
		pe.right = x
	}
	pe.next = x
	xe.parent = xp
	xe.prev = xp
	xe.next = xpn
	if xpn != nilEntry {
		es[xpn].prev = x
	}
	m.buckets[bi].count++
	m.moveRootToFront(bi, m.balanceInsertion(root, x))
}

// treeify converts chain bucket bi into a tree. The chain is first made
// doubly linked, then its entries are inserted into the tree in chain order,
// and finally the root is moved to the front of the chain.
func (m *Map[K, V]) treeify(bi int) {
	es := m.entries
	b := &m.buckets[bi]
	var root, prev uint32
	for x := b.head; x != nilEntry; x = es[x].next {
		xe := &es[x]
		xe.prev = prev
		xe.parent, xe.left, xe.right = nilEntry, nilEntry, nilEntry
		prev = x
		if root == nilEntry {
			xe.red = false
			root = x
			continue
		}
		for p := root; ; {
			pe := &es[p]
			child := &pe.right
			if m.treeOrder(xe.hash, xe.key, xe.seq, pe) <= 0 {
				child = &pe.left
			}
			if *child == nilEntry {
				*child = x
				xe.parent = p
				root = m.balanceInsertion(root, x)
				break
			}
			p = *child
		}
	}
	b.kind = treeBin
	m.moveRootToFront(bi, root)
	m.treeifies++
	if ce := m.logger.Check(zap.DebugLevel, "treeify bucket"); ce != nil {
		ce.Write(zap.Int("bucket", bi), zap.Int32("count", b.count))
	}
}

// untreeify converts tree bucket bi back into a chain, keeping the chain
// order.
func (m *Map[K, V]) untreeify(bi int, reason string) {
	es := m.entries
	b := &m.buckets[bi]
	for x := b.head; x != nilEntry; x = es[x].next {
		e := &es[x]
		e.prev, e.parent, e.left, e.right, e.red = nilEntry, nilEntry, nilEntry, nilEntry, false
	}
	b.kind = chainBin
	m.untreeifies++
	if ce := m.logger.Check(zap.DebugLevel, "untreeify bucket"); ce != nil {
		ce.Write(zap.Int("bucket", bi), zap.Int32("count", b.count), zap.String("reason", reason))
	}
}

// moveRootToFront makes root the first entry of bucket bi's chain.
func (m *Map[K, V]) moveRootToFront(bi int, root uint32) {
	b := &m.buckets[bi]
	first := b.head
	if root == first {
		return
	}
	es := m.entries
	r := &es[root]
	rn, rp := r.next, r.prev
	if rn != nilEntry {
		es[rn].prev = rp
	}
	if rp != nilEntry {
		es[rp].next = rn
	}
	if first != nilEntry {
		es[first].prev = root
	}
	r.next = first
	r.prev = nilEntry
	b.head = root
}

// removeTreeNode removes entry p from tree bucket bi. The entry is unlinked
// from the chain first; if the bucket is left with untreeifyThreshold
// entries or fewer it becomes a chain and no tree surgery is needed.
// Otherwise p is deleted from the tree, swapping it with its successor when
// it has two children. The root is only moved to the front of the chain when
// movable is set.
func (m *Map[K, V]) removeTreeNode(bi int, p uint32, movable bool) {
	es := m.entries
	b := &m.buckets[bi]
	pe := &es[p]
	succ, pred := pe.next, pe.prev
	if pred == nilEntry {
		b.head = succ
	} else {
		es[pred].next = succ
	}
	if succ != nilEntry {
		es[succ].prev = pred
	}
	b.count--
	if b.count <= untreeifyThreshold {
		m.untreeify(bi, "remove")
		return
	}

	root := m.treeRoot(b.head)
	pl, pr := pe.left, pe.right
	var replacement uint32
	switch {
	case pl != nilEntry && pr != nilEntry:
		s := pr
		for es[s].left != nilEntry {
			s = es[s].left
		}
		se := &es[s]
		se.red, pe.red = pe.red, se.red
		sr := se.right
		pp := pe.parent
		if s == pr {
			// p was s's direct parent.
			pe.parent = s
			se.right = p
		} else {
			sp := se.parent
			pe.parent = sp
			if sp != nilEntry {
				if s == es[sp].left {
					es[sp].left = p
				} else {
					es[sp].right = p
				}
			}
			se.right = pr
			es[pr].parent = s
		}
		pe.left = nilEntry
		pe.right = sr
		if sr != nilEntry {
			es[sr].parent = p
		}
		se.left = pl
		es[pl].parent = s
		se.parent = pp
		switch {
		case pp == nilEntry:
			root = s
		case p == es[pp].left:
			es[pp].left = s
		default:
			es[pp].right = s
		}
		if sr != nilEntry {
			replacement = sr
		} else {
			replacement = p
		}
	case pl != nilEntry:
		replacement = pl
	case pr != nilEntry:
		replacement = pr
	default:
		replacement = p
	}

	if replacement != p {
		pp := pe.parent
		es[replacement].parent = pp
		switch {
		case pp == nilEntry:
			root = replacement
			es[replacement].red = false
		case p == es[pp].left:
			es[pp].left = replacement
		default:
			es[pp].right = replacement
		}
		pe.left, pe.right, pe.parent = nilEntry, nilEntry, nilEntry
	}

	r := root
	if !pe.red {
		r = m.balanceDeletion(root, replacement)
	}

	if replacement == p {
		// Detach.
		pp := pe.parent
		pe.parent = nilEntry
		if pp != nilEntry {
			if p == es[pp].left {
				es[pp].left = nilEntry
			} else if p == es[pp].right {
				es[pp].right = nilEntry
			}
		}
	}
	if movable {
		m.moveRootToFront(bi, r)
	}
}

func (m *Map[K, V]) rotateLeft(root, p uint32) uint32 {
	es := m.entries
	if p == nilEntry || es[p].right == nilEntry {
		return root
	}
	r := es[p].right
	rl := es[r].left
	es[p].right = rl
	if rl != nilEntry {
		es[rl].parent = p
	}
	pp := es[p].parent
	es[r].parent = pp
	switch {
	case pp == nilEntry:
		root = r
		es[r].red = false
	case es[pp].left == p:
		es[pp].left = r
	default:
		es[pp].right = r
	}
	es[r].left = p
	es[p].parent = r
	return root
}

func (m *Map[K, V]) rotateRight(root, p uint32) uint32 {
	es := m.entries
	if p == nilEntry || es[p].left == nilEntry {
		return root
	}
	l := es[p].left
	lr := es[l].right
	es[p].left = lr
	if lr != nilEntry {
		es[lr].parent = p
	}
	pp := es[p].parent
	es[l].parent = pp
	switch {
	case pp == nilEntry:
		root = l
		es[l].red = false
	case es[pp].right == p:
		es[pp].right = l
	default:
		es[pp].left = l
	}
	es[l].right = p
	es[p].parent = l
	return root
}

// isRed reports whether x is a red entry. The nil entry is black.
func (m *Map[K, V]) isRed(x uint32) bool {
	return x != nilEntry && m.entries[x].red
}

// balanceInsertion restores the red-black rules after x was attached as a
// leaf and returns the possibly new root.
func (m *Map[K, V]) balanceInsertion(root, x uint32) uint32 {
	es := m.entries
	es[x].red = true
	for {
		xp := es[x].parent
		if xp == nilEntry {
			es[x].red = false
			return x
		}
		xpp := es[xp].parent
		if !es[xp].red || xpp == nilEntry {
			return root
		}
		if xppl := es[xpp].left; xp == xppl {
			if xppr := es[xpp].right; m.isRed(xppr) {
				es[xppr].red = false
				es[xp].red = false
				es[xpp].red = true
				x = xpp
				continue
			}
			if x == es[xp].right {
				x = xp
				root = m.rotateLeft(root, x)
				xp = es[x].parent
				xpp = nilEntry
				if xp != nilEntry {
					xpp = es[xp].parent
				}
			}
			if xp != nilEntry {
				es[xp].red = false
				if xpp != nilEntry {
					es[xpp].red = true
					root = m.rotateRight(root, xpp)
				}
			}
		} else {
			if m.isRed(xppl) {
				es[xppl].red = false
				es[xp].red = false
				es[xpp].red = true
				x = xpp
				continue
			}
			if x == es[xp].left {
				x = xp
				root = m.rotateRight(root, x)
				xp = es[x].parent
				xpp = nilEntry
				if xp != nilEntry {
					xpp = es[xp].parent
				}
			}
			if xp != nilEntry {
				es[xp].red = false
				if xpp != nilEntry {
					es[xpp].red = true
					root = m.rotateLeft(root, xpp)
				}
			}
		}
	}
}

// balanceDeletion restores the red-black rules after a black entry was
// removed from above x and returns the possibly new root.
func (m *Map[K, V]) balanceDeletion(root, x uint32) uint32 {
	es := m.entries
	for {
		if x == nilEntry || x == root {
			return root
		}
		xp := es[x].parent
		if xp == nilEntry {
			es[x].red = false
			return x
		}
		if es[x].red {
			es[x].red = false
			return root
		}
		if xpl := es[xp].left; xpl == x {
			xpr := es[xp].right
			if m.isRed(xpr) {
				es[xpr].red = false
				es[xp].red = true
				root = m.rotateLeft(root, xp)
				xp = es[x].parent
				xpr = nilEntry
				if xp != nilEntry {
					xpr = es[xp].right
				}
			}
			if xpr == nilEntry {
				x = xp
				continue
			}
			sl, sr := es[xpr].left, es[xpr].right
			if !m.isRed(sr) && !m.isRed(sl) {
				es[xpr].red = true
				x = xp
				continue
			}
			if !m.isRed(sr) {
				if sl != nilEntry {
					es[sl].red = false
				}
				es[xpr].red = true
				root = m.rotateRight(root, xpr)
				xp = es[x].parent
				xpr = nilEntry
				if xp != nilEntry {
					xpr = es[xp].right
				}
			}
			if xpr != nilEntry {
				es[xpr].red = xp != nilEntry && es[xp].red
				if sr = es[xpr].right; sr != nilEntry {
					es[sr].red = false
				}
			}
			if xp != nilEntry {
				es[xp].red = false
				root = m.rotateLeft(root, xp)
			}
			x = root
		} else {
			if m.isRed(xpl) {
				es[xpl].red = false
				es[xp].red = true
				root = m.rotateRight(root, xp)
				xp = es[x].parent
				xpl = nilEntry
				if xp != nilEntry {
					xpl = es[xp].left
				}
			}
			if xpl == nilEntry {
				x = xp
				continue
			}
			sl, sr := es[xpl].left, es[xpl].right
			if !m.isRed(sl) && !m.isRed(sr) {
				es[xpl].red = true
				x = xp
				continue
			}
			if !m.isRed(sl) {
				if sr != nilEntry {
					es[sr].red = false
				}
				es[xpl].red = true
				root = m.rotateLeft(root, xpl)
				xp = es[x].parent
				xpl = nilEntry
				if xp != nilEntry {
					xpl = es[xp].left
				}
			}
			if xpl != nilEntry {
				es[xpl].red = xp != nilEntry && es[xp].red
				if sl = es[xpl].left; sl != nilEntry {
					es[sl].red = false
				}
			}
			if xp != nilEntry {
				es[xp].red = false
				root = m.rotateRight(root, xp)
			}
			x = root
		}
	}
}

// verifyTree checks the subtree rooted at t: parent and child links agree,
// hashes are ordered, no red entry has a red child, and every path has the
// same number of black entries. It returns the number of entries and the
// black height of the subtree. Full key order is checked by verifyTreeOrder.
func (m *Map[K, V]) verifyTree(t uint32) (n, blackHeight int, err error) {
	if t == nilEntry {
		return 0, 1, nil
	}
	e := &m.entries[t]
	if l := e.left; l != nilEntry {
		le := &m.entries[l]
		if le.parent != t {
			return 0, 0, errors.Newf("entry %d: left child %d has parent %d", t, l, le.parent)
		}
		if le.hash > e.hash {
			return 0, 0, errors.Newf("entry %d: left child %d has larger hash", t, l)
		}
		if e.red && le.red {
			return 0, 0, errors.Newf("entry %d: red entry with red left child %d", t, l)
		}
	}
	if r := e.right; r != nilEntry {
		re := &m.entries[r]
		if re.parent != t {
			return 0, 0, errors.Newf("entry %d: right child %d has parent %d", t, r, re.parent)
		}
		if re.hash < e.hash {
			return 0, 0, errors.Newf("entry %d: right child %d has smaller hash", t, r)
		}
		if e.red && re.red {
			return 0, 0, errors.Newf("entry %d: red entry with red right child %d", t, r)
		}
	}
	ln, lh, err := m.verifyTree(e.left)
	if err != nil {
		return 0, 0, err
	}
	rn, rh, err := m.verifyTree(e.right)
	if err != nil {
		return 0, 0, err
	}
	if lh != rh {
		return 0, 0, errors.Newf("entry %d: black height %d on the left, %d on the right", t, lh, rh)
	}
	if !e.red {
		lh++
	}
	return ln + rn + 1, lh, nil
}

// verifyTreeOrder checks that an in-order walk of the tree rooted at root
// visits entries in strictly increasing treeOrder.
func (m *Map[K, V]) verifyTreeOrder(root uint32) error {
	var prev uint32
	var err error
	var walk func(x uint32) bool
	walk = func(x uint32) bool {
		if x == nilEntry {
			return true
		}
		e := &m.entries[x]
		if !walk(e.left) {
			return false
		}
		if prev != nilEntry {
			pe := &m.entries[prev]
			if m.treeOrder(pe.hash, pe.key, pe.seq, e) >= 0 {
				err = errors.Newf("entry %d (%v): out of order after entry %d (%v)", x, e.key, prev, pe.key)
				return false
			}
		}
		prev = x
		return walk(e.right)
	}
	walk(root)
	return err
}

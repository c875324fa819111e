package flif

import (
	"fmt"
)

// maxTreeNodes caps the MANIAC tree size a stream may declare.
const maxTreeNodes = 1 << 16

// propertyRange is the inclusive span a pixel property can take.
type propertyRange struct {
	lo, hi int
}

type treeNode struct {
	property int // -1 marks a leaf
	split    int
	child    int // first child (property > split); child+1 otherwise
	leaf     int
}

// Tree is the MANIAC decision tree of one plane. Inner nodes test one
// property against a split value; leaves own the adaptive contexts used to
// code residuals that reach them.
type Tree struct {
	nodes  []treeNode
	leaves []IntContexts
}

// treeContexts are the coders used while transmitting a tree.
type treeContexts struct {
	property IntContexts
	split    IntContexts
}

// Lookup walks the tree with the given property vector and returns the
// leaf contexts to code the pixel with.
func (t *Tree) Lookup(props []int) *IntContexts {
	i := 0
	for {
		n := &t.nodes[i]
		if n.property < 0 {
			return &t.leaves[n.leaf]
		}
		if props[n.property] > n.split {
			i = n.child
		} else {
			i = n.child + 1
		}
	}
}

// Leaves returns the number of leaf contexts.
func (t *Tree) Leaves() int { return len(t.leaves) }

// Nodes returns the number of nodes including leaves.
func (t *Tree) Nodes() int { return len(t.nodes) }

// codeTree transmits a tree depth-first, first child before second. Each
// split narrows the range of its property for the subtree, which bounds the
// split values that may follow. When decoding src is nil and the tree is
// rebuilt from the stream; when encoding src is written out and a fresh copy
// with clean contexts is returned.
func codeTree(bc bitCoder, ranges []propertyRange, src *Tree) (*Tree, error) {
	var tc treeContexts
	t := &Tree{nodes: make([]treeNode, 1, 16)}

	type pending struct {
		dst, src int
		ranges   []propertyRange
	}
	stack := []pending{{dst: 0, src: 0, ranges: ranges}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var sn treeNode
		if src != nil {
			sn = src.nodes[it.src]
		}

		prop, err := codeInt(bc, &tc.property, 0, len(ranges), sn.property+1)
		if err != nil {
			return nil, err
		}
		if prop == 0 {
			t.nodes[it.dst] = treeNode{property: -1, leaf: len(t.leaves)}
			t.leaves = append(t.leaves, IntContexts{})
			continue
		}
		prop--

		r := it.ranges[prop]
		if r.lo >= r.hi {
			return nil, fmt.Errorf("%w: split on exhausted property %d at node %d", ErrInvalidSymbolContext, prop, it.dst)
		}
		split, err := codeInt(bc, &tc.split, r.lo, r.hi-1, sn.split)
		if err != nil {
			return nil, err
		}

		child := len(t.nodes)
		if child+2 > maxTreeNodes {
			return nil, fmt.Errorf("%w: tree exceeds %d nodes", ErrInvalidSymbolContext, maxTreeNodes)
		}
		t.nodes = append(t.nodes, treeNode{}, treeNode{})
		t.nodes[it.dst] = treeNode{property: prop, split: split, child: child}

		greater := append([]propertyRange(nil), it.ranges...)
		greater[prop].lo = split + 1
		lesser := append([]propertyRange(nil), it.ranges...)
		lesser[prop].hi = split

		stack = append(stack,
			pending{dst: child + 1, src: sn.child + 1, ranges: lesser},
			pending{dst: child, src: sn.child, ranges: greater},
		)
	}
	return t, nil
}

// buildTree constructs a balanced tree of the given depth that splits the
// listed properties in turn at the midpoint of their remaining range. The
// encoder uses it in place of a learned tree.
func buildTree(ranges []propertyRange, order []int, depth int) *Tree {
	t := &Tree{nodes: make([]treeNode, 1, 1<<uint(depth+1))}
	var grow func(idx int, ranges []propertyRange, level int)
	grow = func(idx int, ranges []propertyRange, level int) {
		prop := -1
		if level < depth && len(order) > 0 {
			prop = order[level%len(order)]
		}
		if prop < 0 || ranges[prop].lo >= ranges[prop].hi {
			t.nodes[idx] = treeNode{property: -1, leaf: len(t.leaves)}
			t.leaves = append(t.leaves, IntContexts{})
			return
		}
		r := ranges[prop]
		split := r.lo + (r.hi-r.lo)/2

		greater := append([]propertyRange(nil), ranges...)
		greater[prop].lo = split + 1
		lesser := append([]propertyRange(nil), ranges...)
		lesser[prop].hi = split

		child := len(t.nodes)
		t.nodes = append(t.nodes, treeNode{}, treeNode{})
		t.nodes[idx] = treeNode{property: prop, split: split, child: child}
		grow(child, greater, level+1)
		grow(child+1, lesser, level+1)
	}
	grow(0, ranges, 0)
	return t
}

package flif

import (
	"errors"
	"testing"
)

func treeRanges() []propertyRange {
	return []propertyRange{{0, 255}, {-255, 255}, {0, 3}}
}

func TestTreeRoundTrip(t *testing.T) {
	ranges := treeRanges()
	src := buildTree(ranges, []int{0, 1, 2}, 5)
	if src.Nodes() < 3 {
		t.Fatalf("expected a split tree, got %d nodes", src.Nodes())
	}

	enc := NewArithEncoder()
	written, err := codeTree(enc, ranges, src)
	if err != nil {
		t.Fatalf("encode tree: %v", err)
	}
	payload := enc.Finish()

	got, err := codeTree(NewArithDecoder(NewBitStream(payload)), ranges, nil)
	if err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if got.Nodes() != written.Nodes() || got.Leaves() != written.Leaves() {
		t.Fatalf("decoded %d nodes/%d leaves, want %d/%d", got.Nodes(), got.Leaves(), written.Nodes(), written.Leaves())
	}
	for i := range got.nodes {
		if got.nodes[i] != written.nodes[i] {
			t.Fatalf("node %d: got %+v want %+v", i, got.nodes[i], written.nodes[i])
		}
	}

	// Both trees route every property vector to the same leaf.
	for _, props := range [][]int{{0, 0, 0}, {255, -255, 3}, {128, 10, 1}, {17, -3, 2}} {
		a := leafIndex(written, props)
		b := leafIndex(got, props)
		if a != b {
			t.Fatalf("props %v: leaf %d vs %d", props, a, b)
		}
	}
}

func leafIndex(t *Tree, props []int) int {
	ctx := t.Lookup(props)
	for i := range t.leaves {
		if &t.leaves[i] == ctx {
			return i
		}
	}
	return -1
}

func TestTreeLookupFollowsSplits(t *testing.T) {
	ranges := []propertyRange{{0, 15}}
	tree := buildTree(ranges, []int{0}, 2)
	// splits at 7, then 11 and 3
	cases := []struct {
		v    int
		leaf int
	}{
		{15, 0}, {12, 0}, {11, 1}, {8, 1}, {7, 2}, {4, 2}, {3, 3}, {0, 3},
	}
	for _, c := range cases {
		if got := leafIndex(tree, []int{c.v}); got != c.leaf {
			t.Errorf("value %d: leaf %d, want %d", c.v, got, c.leaf)
		}
	}
}

func TestTreeRejectsExhaustedSplit(t *testing.T) {
	ranges := []propertyRange{{0, 1}}
	enc := NewArithEncoder()
	var tc treeContexts
	// root splits property 0 at 0, leaving [1,1] for the first child
	mustCode(t, enc, &tc.property, 0, 1, 1)
	mustCode(t, enc, &tc.split, 0, 0, 0)
	// first child tries to split the exhausted range again
	mustCode(t, enc, &tc.property, 0, 1, 1)
	payload := enc.Finish()

	_, err := codeTree(NewArithDecoder(NewBitStream(payload)), ranges, nil)
	if !errors.Is(err, ErrInvalidSymbolContext) {
		t.Fatalf("expected ErrInvalidSymbolContext, got %v", err)
	}
}

func TestTreeTruncated(t *testing.T) {
	ranges := treeRanges()
	src := buildTree(ranges, []int{0, 1, 2}, 8)
	enc := NewArithEncoder()
	if _, err := codeTree(enc, ranges, src); err != nil {
		t.Fatal(err)
	}
	payload := enc.Finish()

	_, err := codeTree(NewArithDecoder(NewBitStream(payload[:len(payload)/3])), ranges, nil)
	if !errors.Is(err, ErrStreamTruncated) {
		t.Fatalf("expected ErrStreamTruncated, got %v", err)
	}
}

func mustCode(t *testing.T, bc bitCoder, ctx *IntContexts, lo, hi, v int) {
	t.Helper()
	if _, err := codeInt(bc, ctx, lo, hi, v); err != nil {
		t.Fatalf("codeInt(%d,%d,%d): %v", lo, hi, v, err)
	}
}

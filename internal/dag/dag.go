// Package dag walks the snapshot graph. Snapshots form a finite DAG by
// construction: a parent's CID is fixed before any child can reference it,
// so cycles cannot be encoded.
package dag

import (
	"fmt"
	"sort"

	gocid "github.com/ipfs/go-cid"

	"github.com/pandonetwork/pando/internal/object"
	"github.com/pandonetwork/pando/internal/store"
)

// Walker resolves snapshot parent links through the object store.
type Walker struct {
	store *store.Store
}

// NewWalker returns a Walker over the given store.
func NewWalker(s *store.Store) *Walker {
	return &Walker{store: s}
}

// Snapshot loads and decodes a snapshot by CID.
func (w *Walker) Snapshot(c gocid.Cid) (*object.Snapshot, error) {
	obj, err := w.store.GetNode(c)
	if err != nil {
		return nil, err
	}
	snap, ok := obj.(*object.Snapshot)
	if !ok {
		return nil, fmt.Errorf("object %s is a %s, not a snapshot",
			object.CIDToString(c), obj.ObjectKind())
	}
	return snap, nil
}

// Parents returns a snapshot's parent CIDs in recorded order.
func (w *Walker) Parents(c gocid.Cid) ([]gocid.Cid, error) {
	snap, err := w.Snapshot(c)
	if err != nil {
		return nil, err
	}
	return snap.Parents, nil
}

// Ancestors returns every ancestor of c in breadth-first order, nearest
// first, deduplicated. c itself is not an ancestor of itself.
func (w *Walker) Ancestors(c gocid.Cid) ([]gocid.Cid, error) {
	if !c.Defined() {
		return nil, nil
	}
	var order []gocid.Cid
	seen := map[gocid.Cid]bool{c: true}
	queue := []gocid.Cid{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		parents, err := w.Parents(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			order = append(order, p)
			queue = append(queue, p)
		}
	}
	return order, nil
}

// IsAncestor reports whether anc is a strict ancestor of desc.
func (w *Walker) IsAncestor(anc, desc gocid.Cid) (bool, error) {
	if !anc.Defined() || !desc.Defined() {
		return false, nil
	}
	ancestors, err := w.Ancestors(desc)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a.Equals(anc) {
			return true, nil
		}
	}
	return false, nil
}

// LCA computes a lowest common ancestor of a and b: a common ancestor that
// is not an ancestor of any other common ancestor at the same BFS depth
// from b. Either head counts as its own ancestor for this purpose, which
// makes the fast-forward cases (lca == a or lca == b) fall out naturally.
// Returns the undefined CID when the histories are disjoint or a head is
// empty.
func (w *Walker) LCA(a, b gocid.Cid) (gocid.Cid, error) {
	if !a.Defined() || !b.Defined() {
		return gocid.Undef, nil
	}
	if a.Equals(b) {
		return a, nil
	}

	reachableFromA := map[gocid.Cid]bool{a: true}
	aAncestors, err := w.Ancestors(a)
	if err != nil {
		return gocid.Undef, err
	}
	for _, c := range aAncestors {
		reachableFromA[c] = true
	}

	// BFS from b level by level; the first level containing common
	// ancestors holds the candidates.
	seen := map[gocid.Cid]bool{b: true}
	level := []gocid.Cid{b}
	for len(level) > 0 {
		var candidates []gocid.Cid
		for _, c := range level {
			if reachableFromA[c] {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			return w.pickMinimal(candidates)
		}
		var next []gocid.Cid
		for _, c := range level {
			parents, err := w.Parents(c)
			if err != nil {
				return gocid.Undef, err
			}
			for _, p := range parents {
				if seen[p] {
					continue
				}
				seen[p] = true
				next = append(next, p)
			}
		}
		level = next
	}
	return gocid.Undef, nil
}

// pickMinimal drops candidates that are ancestors of another candidate
// (criss-cross histories) and breaks remaining ties deterministically.
func (w *Walker) pickMinimal(candidates []gocid.Cid) (gocid.Cid, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	var minimal []gocid.Cid
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i == j {
				continue
			}
			anc, err := w.IsAncestor(c, other)
			if err != nil {
				return gocid.Undef, err
			}
			if anc {
				dominated = true
				break
			}
		}
		if !dominated {
			minimal = append(minimal, c)
		}
	}
	if len(minimal) == 0 {
		minimal = candidates
	}
	sort.Slice(minimal, func(i, j int) bool {
		return object.CIDToString(minimal[i]) < object.CIDToString(minimal[j])
	})
	return minimal[0], nil
}

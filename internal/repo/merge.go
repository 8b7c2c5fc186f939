package repo

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/pandonetwork/pando/internal/diff3"
	"github.com/pandonetwork/pando/internal/object"
)

// MergeOutcome describes how a merge concluded.
type MergeOutcome int

const (
	// MergeUpToDate: the current branch already contains the other head.
	MergeUpToDate MergeOutcome = iota
	// MergeFastForward: the current head was an ancestor of the other
	// head and simply moved forward; no snapshot was created.
	MergeFastForward
	// MergeSnapshotCreated: a three-way merge produced a new two-parent
	// snapshot.
	MergeSnapshotCreated
)

// MergeResult reports a successful merge.
type MergeResult struct {
	Outcome MergeOutcome
	Head    gocid.Cid
}

// Merge merges branch other into the current branch. The current branch
// keeps its identity; only its head moves. On conflict the merge aborts
// with MergeConflictError before touching the working directory, index or
// any branch head.
func (r *Repository) Merge(other string) (MergeResult, error) {
	var res MergeResult
	err := r.withLock(func() error {
		d, err := r.Refs.Head(other) // also validates the branch exists
		if err != nil {
			return err
		}
		current, err := r.Refs.Current()
		if err != nil {
			return err
		}
		o, err := r.Refs.Head(current)
		if err != nil {
			return err
		}

		st, err := r.Index.Update(r.WD)
		if err != nil {
			return err
		}
		if !st.Clean() {
			return &DirtyWorkspaceError{Modified: st.Modified, Unsnapshot: st.Unsnapshot()}
		}

		if o.Equals(d) {
			res = MergeResult{Outcome: MergeUpToDate, Head: o}
			return nil
		}

		l, err := r.Walker.LCA(o, d)
		if err != nil {
			return err
		}
		if l.Equals(d) {
			// current already contains other (covers an empty other head)
			res = MergeResult{Outcome: MergeUpToDate, Head: o}
			return nil
		}
		if l.Equals(o) {
			// fast-forward (covers an empty current head)
			if err := r.reconcile(o, d); err != nil {
				return err
			}
			if err := r.Refs.SetHead(current, d); err != nil {
				return err
			}
			res = MergeResult{Outcome: MergeFastForward, Head: d}
			return nil
		}

		// Divergent histories: three-way recursive tree merge against the
		// LCA tree. A disjoint history (undefined LCA) merges against the
		// empty tree.
		oTree, err := r.loadRootTree(o)
		if err != nil {
			return err
		}
		dTree, err := r.loadRootTree(d)
		if err != nil {
			return err
		}
		lTree, err := r.loadRootTree(l)
		if err != nil {
			return err
		}

		conflicts := make(map[string]ConflictKind)
		merged, err := r.mergeTrees(oTree, dTree, lTree, "", conflicts, current, other)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &MergeConflictError{Paths: conflicts}
		}

		treeCID, err := r.publishMerged(merged, "")
		if err != nil {
			return err
		}
		newTree, err := r.loadTree(treeCID)
		if err != nil {
			return err
		}
		if err := r.applyTreeDiff(oTree, newTree, ""); err != nil {
			return err
		}
		files, err := r.treeFiles(treeCID)
		if err != nil {
			return err
		}
		r.Index.Reinitialize(files)
		if err := r.Index.Save(); err != nil {
			return err
		}

		msg := fmt.Sprintf("Merged %s into %s", other, current)
		snapCID, err := r.storeSnapshot(msg, treeCID, []gocid.Cid{o, d})
		if err != nil {
			return err
		}
		if err := r.Refs.SetHead(current, snapCID); err != nil {
			return err
		}
		res = MergeResult{Outcome: MergeSnapshotCreated, Head: snapCID}
		return nil
	})
	return res, err
}

// mergeChild is one entry of a merged tree under construction. Exactly one
// of cid (reused object), sub (recursed subtree) or blob (freshly merged
// file content) is set.
type mergeChild struct {
	kind object.Kind
	cid  gocid.Cid
	sub  *mergeNode
	blob gocid.Cid
}

type mergeNode struct {
	children map[string]mergeChild
}

// mergeTrees performs the recursive three-way merge over the union of
// child names of origin (o), dest (d) and base (l) trees. Conflicts are
// accumulated by path; the returned tree is only meaningful when the
// conflict map stays empty. None of the input trees is mutated.
func (r *Repository) mergeTrees(o, d, l *object.Tree, prefix string, conflicts map[string]ConflictKind, originLabel, destLabel string) (*mergeNode, error) {
	node := &mergeNode{children: make(map[string]mergeChild)}

	names := make(map[string]bool)
	for name := range o.Children {
		names[name] = true
	}
	for name := range d.Children {
		names[name] = true
	}
	for name := range l.Children {
		names[name] = true
	}

	for name := range names {
		p := joinPath(prefix, name)
		lc, hasL := l.Children[name]
		oc, hasO := o.Children[name]
		dc, hasD := d.Children[name]

		switch {
		case !hasL && hasO && !hasD:
			node.children[name] = reuse(oc)

		case !hasL && !hasO && hasD:
			node.children[name] = reuse(dc)

		case !hasL && hasO && hasD:
			switch {
			case oc.CID.Equals(dc.CID):
				node.children[name] = reuse(oc)
			case oc.Kind != dc.Kind:
				conflicts[p] = ConflictType
			default:
				conflicts[p] = ConflictAddAdd
			}

		case hasL && hasO && hasD:
			switch {
			case oc.CID.Equals(dc.CID):
				node.children[name] = reuse(oc)
			case oc.CID.Equals(lc.CID):
				node.children[name] = reuse(dc)
			case dc.CID.Equals(lc.CID):
				node.children[name] = reuse(oc)
			case oc.Kind != dc.Kind:
				conflicts[p] = ConflictType
			case oc.Kind == object.KindTree:
				sub, err := r.mergeSubtrees(oc, dc, lc, hasL, p, conflicts, originLabel, destLabel)
				if err != nil {
					return nil, err
				}
				if sub != nil {
					node.children[name] = *sub
				}
			default:
				child, err := r.mergeFiles(oc, dc, lc, p, conflicts, originLabel, destLabel)
				if err != nil {
					return nil, err
				}
				if child != nil {
					node.children[name] = *child
				}
			}

		case hasL && !hasO && hasD:
			if dc.CID.Equals(lc.CID) {
				continue // deleted on origin, untouched on dest
			}
			conflicts[p] = ConflictModDel

		case hasL && hasO && !hasD:
			if oc.CID.Equals(lc.CID) {
				continue // deleted on dest, untouched on origin
			}
			conflicts[p] = ConflictModDel

		case hasL && !hasO && !hasD:
			// deleted on both sides
		}
	}
	return node, nil
}

func reuse(child object.Link) mergeChild {
	return mergeChild{kind: child.Kind, cid: child.CID}
}

// mergeSubtrees recurses into two diverged directories. The recursive
// result replaces the child entry in the parent merged tree; a subtree
// merged down to nothing is pruned.
func (r *Repository) mergeSubtrees(oc, dc, lc object.Link, hasL bool, p string, conflicts map[string]ConflictKind, originLabel, destLabel string) (*mergeChild, error) {
	oSub, err := r.loadTree(oc.CID)
	if err != nil {
		return nil, err
	}
	dSub, err := r.loadTree(dc.CID)
	if err != nil {
		return nil, err
	}
	lSub := object.NewTree(p)
	if hasL && lc.Kind == object.KindTree {
		lSub, err = r.loadTree(lc.CID)
		if err != nil {
			return nil, err
		}
	}
	sub, err := r.mergeTrees(oSub, dSub, lSub, p, conflicts, originLabel, destLabel)
	if err != nil {
		return nil, err
	}
	if len(sub.children) == 0 {
		return nil, nil
	}
	return &mergeChild{kind: object.KindTree, sub: sub}, nil
}

// mergeFiles reconciles two diverged file versions with the textual
// three-way merge. The base bytes come from the LCA version when it was a
// file, and are empty otherwise.
func (r *Repository) mergeFiles(oc, dc, lc object.Link, p string, conflicts map[string]ConflictKind, originLabel, destLabel string) (*mergeChild, error) {
	originBytes, err := r.fileBytes(oc)
	if err != nil {
		return nil, err
	}
	destBytes, err := r.fileBytes(dc)
	if err != nil {
		return nil, err
	}
	var baseBytes []byte
	if lc.Kind == object.KindFile {
		baseBytes, err = r.fileBytes(lc)
		if err != nil {
			return nil, err
		}
	}

	res := diff3.Merge3(originBytes, baseBytes, destBytes, originLabel, destLabel)
	if res.Conflict {
		conflicts[p] = ConflictText
		return nil, nil
	}
	blob, err := r.Store.Put(res.Merged)
	if err != nil {
		return nil, err
	}
	return &mergeChild{kind: object.KindFile, blob: blob}, nil
}

// fileBytes downloads the blob behind a file link.
func (r *Repository) fileBytes(link object.Link) ([]byte, error) {
	f, err := r.loadFile(link.CID)
	if err != nil {
		return nil, err
	}
	return r.Store.Download(f.Link, false)
}

// publishMerged writes a merged tree bottom-up into the object store.
func (r *Repository) publishMerged(n *mergeNode, path string) (gocid.Cid, error) {
	treePath := path
	if treePath == "" {
		treePath = "."
	}
	tree := object.NewTree(treePath)
	for name, ch := range n.children {
		childPath := joinPath(path, name)
		var c gocid.Cid
		var err error
		switch {
		case ch.cid.Defined():
			c = ch.cid
		case ch.sub != nil:
			c, err = r.publishMerged(ch.sub, childPath)
		default:
			c, err = r.Store.PutNode(&object.File{Path: childPath, Link: ch.blob})
		}
		if err != nil {
			return gocid.Undef, err
		}
		tree.Children[name] = object.Link{CID: c, Kind: ch.kind}
	}
	return r.Store.PutNode(tree)
}

package repo

import (
	gocid "github.com/ipfs/go-cid"
)

// Checkout switches the working directory and index to the target branch.
// Preflight: the workspace must be clean (no modified, no staged-but-not-
// snapshotted paths); untracked files never block and are left in place.
func (r *Repository) Checkout(target string) error {
	return r.withLock(func() error {
		head, err := r.Refs.Head(target) // also validates the branch exists
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

		current, err := r.Refs.Current()
		if err != nil {
			return err
		}
		curHead, err := r.Refs.Head(current)
		if err != nil {
			return err
		}

		if err := r.reconcile(curHead, head); err != nil {
			return err
		}
		return r.Refs.SetCurrent(target)
	})
}

// reconcile applies the tree diff between two snapshot heads onto the
// working directory and reinitializes the index from the new tree. The
// index is only rewritten after a fully successful apply, so an interrupted
// reconcile leaves a detectably dirty workspace.
func (r *Repository) reconcile(fromHead, toHead gocid.Cid) error {
	baseTree, err := r.loadRootTree(fromHead)
	if err != nil {
		return err
	}
	newTree, err := r.loadRootTree(toHead)
	if err != nil {
		return err
	}
	if err := r.applyTreeDiff(baseTree, newTree, ""); err != nil {
		return err
	}

	toTree, err := r.treeOf(toHead)
	if err != nil {
		return err
	}
	files, err := r.treeFiles(toTree)
	if err != nil {
		return err
	}
	r.Index.Reinitialize(files)
	return r.Index.Save()
}

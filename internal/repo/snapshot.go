package repo

import (
	"fmt"
	"time"

	gocid "github.com/ipfs/go-cid"

	"github.com/pandonetwork/pando/internal/index"
	"github.com/pandonetwork/pando/internal/object"
)

// Status rescans the working directory and returns the derived status sets.
// The refreshed wdir hashes are persisted so repeated invocations agree.
func (r *Repository) Status() (index.Status, error) {
	st, err := r.Index.Update(r.WD)
	if err != nil {
		return index.Status{}, err
	}
	if err := r.Index.Save(); err != nil {
		return index.Status{}, err
	}
	return st, nil
}

// Stage records the current content of the given paths: blobs go into the
// object store and the index's stage column advances.
func (r *Repository) Stage(paths []string) error {
	return r.withLock(func() error {
		if _, err := r.Index.Update(r.WD); err != nil {
			return err
		}
		if err := r.Index.Stage(paths, r.WD, r.Store.Put); err != nil {
			return err
		}
		return r.Index.Save()
	})
}

// Snapshot publishes the staged state as a new snapshot on the current
// branch and returns its CID. Fails with ErrNothingToSnapshot when the
// staged set is empty.
func (r *Repository) Snapshot(message string) (gocid.Cid, error) {
	var snapCID gocid.Cid
	err := r.withLock(func() error {
		st, err := r.Index.Update(r.WD)
		if err != nil {
			return err
		}
		if len(st.Unsnapshot()) == 0 {
			return ErrNothingToSnapshot
		}

		current, err := r.Refs.Current()
		if err != nil {
			return err
		}
		head, err := r.Refs.Head(current)
		if err != nil {
			return err
		}

		var parents []gocid.Cid
		if head.Defined() {
			parents = []gocid.Cid{head}
		}
		snapCID, err = r.publishSnapshot(message, parents)
		if err != nil {
			return err
		}

		if err := r.Refs.SetHead(current, snapCID); err != nil {
			return err
		}
		r.Index.MarkSnapshotted()
		return r.Index.Save()
	})
	return snapCID, err
}

// publishSnapshot builds the tree from the staged index state, stores it
// and wraps it in a snapshot object with the given parents. The snapshot
// CID is pinned so its whole closure survives any future GC.
func (r *Repository) publishSnapshot(message string, parents []gocid.Cid) (gocid.Cid, error) {
	root, err := buildTree(r.Index.StagedFiles())
	if err != nil {
		return gocid.Undef, err
	}
	treeCID, err := r.publishTree(root, "")
	if err != nil {
		return gocid.Undef, err
	}
	return r.storeSnapshot(message, treeCID, parents)
}

// storeSnapshot writes a snapshot object pointing at an already-published
// tree.
func (r *Repository) storeSnapshot(message string, treeCID gocid.Cid, parents []gocid.Cid) (gocid.Cid, error) {
	if parents == nil {
		parents = []gocid.Cid{}
	}
	snap := &object.Snapshot{
		Author:    r.cfg.Author,
		Message:   message,
		Timestamp: time.Now().Unix(),
		Tree:      treeCID,
		Parents:   parents,
	}
	c, err := r.Store.PutNode(snap)
	if err != nil {
		return gocid.Undef, err
	}
	if err := r.Store.Pin(c); err != nil {
		r.log.Warnf("pin snapshot %s: %v", object.ShortCID(c), err)
	}
	return c, nil
}

// LogEntry pairs a snapshot with its CID for display.
type LogEntry struct {
	CID      gocid.Cid
	Snapshot *object.Snapshot
}

// Log walks the first-parent chain from the current head, newest first,
// returning up to n entries (all of them when n <= 0).
func (r *Repository) Log(n int) ([]LogEntry, error) {
	current, err := r.Refs.Current()
	if err != nil {
		return nil, err
	}
	head, err := r.Refs.Head(current)
	if err != nil {
		return nil, err
	}

	var entries []LogEntry
	for c := head; c.Defined(); {
		if n > 0 && len(entries) >= n {
			break
		}
		snap, err := r.Walker.Snapshot(c)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		entries = append(entries, LogEntry{CID: c, Snapshot: snap})
		if len(snap.Parents) == 0 {
			break
		}
		c = snap.Parents[0]
	}
	return entries, nil
}

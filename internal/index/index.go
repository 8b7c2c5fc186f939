// Package index tracks per-path staging state between the working
// directory, the staged content and the last snapshot. It bridges the
// mutable workspace and the immutable DAG: every entry carries the three
// blob CIDs the rest of the system compares.
package index

import (
	"fmt"
	"os"
	"sort"

	gocid "github.com/ipfs/go-cid"
	"gopkg.in/yaml.v3"

	"github.com/pandonetwork/pando/internal/object"
	"github.com/pandonetwork/pando/internal/workdir"
)

// Entry is the per-path CID triple. An undefined CID means "no content":
// Wdir undefined = file absent on disk, Stage undefined = nothing staged
// (or a staged deletion when Repo is defined), Repo undefined = not in the
// last snapshot.
type Entry struct {
	Wdir  gocid.Cid
	Stage gocid.Cid
	Repo  gocid.Cid
}

// Tracked reports whether the path is known to the repository (staged at
// some point or present in the last snapshot).
func (e Entry) Tracked() bool {
	return e.Stage.Defined() || e.Repo.Defined()
}

type entryYAML struct {
	Wdir  string `yaml:"wdir"`
	Stage string `yaml:"stage"`
	Repo  string `yaml:"repo"`
}

// Status is the derived view over all entries, recomputed after Update.
// Unsnapshot mirrors Staged: both name the set of paths whose staged
// content is not yet recorded in a snapshot.
type Status struct {
	Modified  []string
	Staged    []string
	Untracked []string
	Deleted   []string
}

// Unsnapshot returns the staged-but-not-snapshotted set.
func (s Status) Unsnapshot() []string { return s.Staged }

// Clean reports whether checkout/merge preflight would pass.
func (s Status) Clean() bool {
	return len(s.Modified) == 0 && len(s.Staged) == 0
}

// Index is the staging index, persisted as a flat YAML mapping.
type Index struct {
	path    string
	entries map[string]Entry
}

// Load reads the index file at path; a missing file yields an empty index.
func Load(path string) (*Index, error) {
	ix := &Index{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ix, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var raw map[string]entryYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	for p, e := range raw {
		wdir, err := object.ParseCID(e.Wdir)
		if err != nil {
			return nil, fmt.Errorf("index entry %s: %w", p, err)
		}
		stage, err := object.ParseCID(e.Stage)
		if err != nil {
			return nil, fmt.Errorf("index entry %s: %w", p, err)
		}
		repo, err := object.ParseCID(e.Repo)
		if err != nil {
			return nil, fmt.Errorf("index entry %s: %w", p, err)
		}
		ix.entries[p] = Entry{Wdir: wdir, Stage: stage, Repo: repo}
	}
	return ix, nil
}

// Save atomically persists the index.
func (ix *Index) Save() error {
	raw := make(map[string]entryYAML, len(ix.entries))
	for p, e := range ix.entries {
		raw[p] = entryYAML{
			Wdir:  object.CIDToString(e.Wdir),
			Stage: object.CIDToString(e.Stage),
			Repo:  object.CIDToString(e.Repo),
		}
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := workdir.SafeWrite(ix.path, data, 0644); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Entry returns the entry for a path and whether it exists.
func (ix *Index) Entry(path string) (Entry, bool) {
	e, ok := ix.entries[path]
	return e, ok
}

// Paths returns every indexed path, sorted.
func (ix *Index) Paths() []string {
	paths := make([]string, 0, len(ix.entries))
	for p := range ix.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Update rescans the working directory, recomputing every Wdir hash while
// preserving Stage and Repo, and returns the derived status sets.
func (ix *Index) Update(wd *workdir.Dir) (Status, error) {
	onDisk, err := wd.Walk()
	if err != nil {
		return Status{}, err
	}
	seen := make(map[string]bool, len(onDisk))
	for _, p := range onDisk {
		seen[p] = true
		data, err := wd.Read(p)
		if err != nil {
			return Status{}, err
		}
		c, err := object.ComputeCID(data)
		if err != nil {
			return Status{}, err
		}
		e := ix.entries[p]
		e.Wdir = c
		ix.entries[p] = e
	}
	for p, e := range ix.entries {
		if seen[p] {
			continue
		}
		e.Wdir = gocid.Undef
		if !e.Tracked() {
			// Untracked file vanished; forget it.
			delete(ix.entries, p)
			continue
		}
		ix.entries[p] = e
	}
	return ix.Status(), nil
}

// Status derives the modified/staged/untracked/deleted sets from the
// current entries without rescanning the disk.
func (ix *Index) Status() Status {
	var st Status
	for p, e := range ix.entries {
		if !e.Tracked() {
			if e.Wdir.Defined() {
				st.Untracked = append(st.Untracked, p)
			}
			continue
		}
		if !e.Wdir.Equals(e.Stage) {
			st.Modified = append(st.Modified, p)
		}
		if !e.Stage.Equals(e.Repo) {
			st.Staged = append(st.Staged, p)
		}
		if !e.Wdir.Defined() && e.Repo.Defined() {
			st.Deleted = append(st.Deleted, p)
		}
	}
	sort.Strings(st.Modified)
	sort.Strings(st.Staged)
	sort.Strings(st.Untracked)
	sort.Strings(st.Deleted)
	return st
}

// Stage records the current content of each path: the bytes are put into
// the object store and the entry's Stage (and Wdir) becomes their CID.
// Staging a path that is gone from disk but present in the last snapshot
// records a deletion by clearing Stage.
func (ix *Index) Stage(paths []string, wd *workdir.Dir, put func([]byte) (gocid.Cid, error)) error {
	for _, p := range paths {
		if wd.Exists(p) {
			data, err := wd.Read(p)
			if err != nil {
				return err
			}
			c, err := put(data)
			if err != nil {
				return fmt.Errorf("stage %s: %w", p, err)
			}
			e := ix.entries[p]
			e.Wdir = c
			e.Stage = c
			ix.entries[p] = e
			continue
		}
		e, ok := ix.entries[p]
		if !ok || !e.Repo.Defined() {
			return fmt.Errorf("stage %s: no such file in workspace or snapshot", p)
		}
		e.Wdir = gocid.Undef
		e.Stage = gocid.Undef
		ix.entries[p] = e
	}
	return nil
}

// StagedFiles returns path → staged blob CID for every entry that belongs
// in the next snapshot's tree. Staged deletions are omitted, which is what
// removes them from the tree.
func (ix *Index) StagedFiles() map[string]gocid.Cid {
	files := make(map[string]gocid.Cid)
	for p, e := range ix.entries {
		if e.Stage.Defined() {
			files[p] = e.Stage
		}
	}
	return files
}

// MarkSnapshotted commits the staged state: Repo becomes Stage for every
// entry, and staged-deletion entries drop out of the index.
func (ix *Index) MarkSnapshotted() {
	for p, e := range ix.entries {
		if !e.Stage.Defined() {
			if e.Repo.Defined() {
				delete(ix.entries, p)
			}
			continue
		}
		e.Repo = e.Stage
		ix.entries[p] = e
	}
}

// Reinitialize replaces the index from a checked-out tree: every path maps
// to its blob CID with wdir == stage == repo, and everything else is
// forgotten.
func (ix *Index) Reinitialize(files map[string]gocid.Cid) {
	ix.entries = make(map[string]Entry, len(files))
	for p, c := range files {
		ix.entries[p] = Entry{Wdir: c, Stage: c, Repo: c}
	}
}

package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotInitialized     = errors.New("workspace not initialized")
	ErrAlreadyInitialized = errors.New("workspace already initialized")
	ErrNothingToSnapshot  = errors.New("nothing to snapshot")
	ErrPathIsFile         = errors.New("path component is a file")
	ErrNoCommonAncestor   = errors.New("no common ancestor")
)

// DirtyWorkspaceError is the preflight failure for checkout and merge: the
// workspace has pending changes that the operation would clobber.
type DirtyWorkspaceError struct {
	Modified   []string
	Unsnapshot []string
}

func (e *DirtyWorkspaceError) Error() string {
	var parts []string
	if len(e.Modified) > 0 {
		parts = append(parts, "modified: "+strings.Join(e.Modified, ", "))
	}
	if len(e.Unsnapshot) > 0 {
		parts = append(parts, "staged but not snapshotted: "+strings.Join(e.Unsnapshot, ", "))
	}
	return "dirty workspace (" + strings.Join(parts, "; ") + ")"
}

// ConflictKind classifies a merge conflict at a path.
type ConflictKind string

const (
	ConflictText   ConflictKind = "TextConflict"
	ConflictType   ConflictKind = "TypeConflict"
	ConflictAddAdd ConflictKind = "AddAdd"
	ConflictModDel ConflictKind = "ModDel"
)

// MergeConflictError reports a merge that aborted cleanly: no branch head,
// index entry or workspace file was touched.
type MergeConflictError struct {
	Paths map[string]ConflictKind
}

func (e *MergeConflictError) Error() string {
	paths := make([]string, 0, len(e.Paths))
	for p := range e.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var parts []string
	for _, p := range paths {
		parts = append(parts, fmt.Sprintf("%s (%s)", p, e.Paths[p]))
	}
	return "merge conflict: " + strings.Join(parts, ", ")
}

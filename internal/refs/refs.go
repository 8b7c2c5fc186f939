// Package refs is the branch registry: named mutable pointers to snapshot
// CIDs plus the current-branch pointer. Each branch is a file under
// .pando/branches whose content is the YAML scalar form of its head CID,
// empty for a branch with no snapshots yet.
package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"gopkg.in/yaml.v3"

	"github.com/pandonetwork/pando/internal/object"
	"github.com/pandonetwork/pando/internal/workdir"
)

var (
	ErrUnknownBranch             = errors.New("unknown branch")
	ErrBranchExists              = errors.New("branch already exists")
	ErrCannotDeleteCurrentBranch = errors.New("cannot delete current branch")
	ErrInvalidBranchName         = errors.New("invalid branch name")
)

// Registry manages branch head files and the current-branch pointer.
type Registry struct {
	branchesDir string
	currentPath string
}

// Open creates or opens a Registry under the metadata directory.
func Open(metaDir string) (*Registry, error) {
	r := &Registry{
		branchesDir: filepath.Join(metaDir, "branches"),
		currentPath: filepath.Join(metaDir, "current"),
	}
	if err := os.MkdirAll(r.branchesDir, 0755); err != nil {
		return nil, fmt.Errorf("create branches dir: %w", err)
	}
	return r, nil
}

// ValidateName rejects empty names, path separators and leading dots.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}
	return nil
}

func (r *Registry) branchPath(name string) string {
	return filepath.Join(r.branchesDir, name)
}

// Exists reports whether a branch exists.
func (r *Registry) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	_, err := os.Stat(r.branchPath(name))
	return err == nil
}

// Create registers a new branch pointing at head (which may be undefined
// for an empty branch).
func (r *Registry) Create(name string, head gocid.Cid) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if r.Exists(name) {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	return r.writeHead(name, head)
}

// Head returns a branch's head CID; undefined for an empty branch.
func (r *Registry) Head(name string) (gocid.Cid, error) {
	data, err := os.ReadFile(r.branchPath(name))
	if os.IsNotExist(err) {
		return gocid.Undef, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	if err != nil {
		return gocid.Undef, fmt.Errorf("read branch %s: %w", name, err)
	}
	var s string
	if err := yaml.Unmarshal(data, &s); err != nil {
		return gocid.Undef, fmt.Errorf("parse branch %s: %w", name, err)
	}
	c, err := object.ParseCID(s)
	if err != nil {
		return gocid.Undef, fmt.Errorf("branch %s: %w", name, err)
	}
	return c, nil
}

// SetHead moves a branch's head pointer.
func (r *Registry) SetHead(name string, head gocid.Cid) error {
	if !r.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	return r.writeHead(name, head)
}

func (r *Registry) writeHead(name string, head gocid.Cid) error {
	data, err := yaml.Marshal(object.CIDToString(head))
	if err != nil {
		return fmt.Errorf("marshal head: %w", err)
	}
	if err := workdir.SafeWrite(r.branchPath(name), data, 0644); err != nil {
		return fmt.Errorf("write branch %s: %w", name, err)
	}
	return nil
}

// Delete removes a branch. The current branch is protected.
func (r *Registry) Delete(name string) error {
	if !r.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	current, err := r.Current()
	if err == nil && current == name {
		return fmt.Errorf("%w: %s", ErrCannotDeleteCurrentBranch, name)
	}
	if err := os.Remove(r.branchPath(name)); err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	return nil
}

// List returns all branch names, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.branchesDir)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Current returns the current branch name.
func (r *Registry) Current() (string, error) {
	data, err := os.ReadFile(r.currentPath)
	if err != nil {
		return "", fmt.Errorf("read current branch: %w", err)
	}
	var name string
	if err := yaml.Unmarshal(data, &name); err != nil {
		return "", fmt.Errorf("parse current branch: %w", err)
	}
	return name, nil
}

// SetCurrent switches the current-branch pointer to an existing branch.
func (r *Registry) SetCurrent(name string) error {
	if !r.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	data, err := yaml.Marshal(name)
	if err != nil {
		return fmt.Errorf("marshal current branch: %w", err)
	}
	if err := workdir.SafeWrite(r.currentPath, data, 0644); err != nil {
		return fmt.Errorf("write current branch: %w", err)
	}
	return nil
}

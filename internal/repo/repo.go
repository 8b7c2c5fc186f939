// Package repo is the top-level facade over the version-control core. It
// wires the object store, working directory, index, branch registry and DAG
// walker together and exposes the user-level operations: stage, snapshot,
// checkout, merge, status and log.
package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dolthub/fslock"
	gocid "github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"

	"github.com/pandonetwork/pando/internal/dag"
	"github.com/pandonetwork/pando/internal/index"
	"github.com/pandonetwork/pando/internal/refs"
	"github.com/pandonetwork/pando/internal/store"
	"github.com/pandonetwork/pando/internal/workdir"
)

// DefaultBranch is the branch created by Init.
const DefaultBranch = "master"

// Repository is a handle on an initialized workspace. All paths and
// metadata are per-workspace; nothing is process-global.
type Repository struct {
	root    string
	metaDir string
	cfg     Config
	log     logrus.FieldLogger

	Store  *store.Store
	WD     *workdir.Dir
	Index  *index.Index
	Refs   *refs.Registry
	Walker *dag.Walker
}

// Init creates the .pando metadata layout at root: object store, empty
// index, default config, and the master branch with an empty head.
func Init(root, author string) (*Repository, error) {
	metaDir := filepath.Join(root, workdir.MetaDirName)
	if _, err := os.Stat(metaDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, root)
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}

	if err := writeConfig(filepath.Join(metaDir, "config"), Config{Author: author}); err != nil {
		return nil, err
	}

	reg, err := refs.Open(metaDir)
	if err != nil {
		return nil, err
	}
	if err := reg.Create(DefaultBranch, gocid.Undef); err != nil {
		return nil, err
	}
	if err := reg.SetCurrent(DefaultBranch); err != nil {
		return nil, err
	}

	if _, err := store.Open(filepath.Join(metaDir, "ipfs")); err != nil {
		return nil, err
	}

	return Open(root)
}

// Open opens an initialized workspace.
func Open(root string) (*Repository, error) {
	metaDir := filepath.Join(root, workdir.MetaDirName)
	if _, err := os.Stat(metaDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, root)
	}

	cfg, err := loadConfig(filepath.Join(metaDir, "config"))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(filepath.Join(metaDir, "ipfs"))
	if err != nil {
		return nil, err
	}

	reg, err := refs.Open(metaDir)
	if err != nil {
		return nil, err
	}

	ix, err := index.Load(filepath.Join(metaDir, "index"))
	if err != nil {
		return nil, err
	}

	return &Repository{
		root:    root,
		metaDir: metaDir,
		cfg:     cfg,
		log:     logrus.StandardLogger(),
		Store:   st,
		WD:      workdir.New(root),
		Index:   ix,
		Refs:    reg,
		Walker:  dag.NewWalker(st),
	}, nil
}

// SetLogger replaces the warning logger.
func (r *Repository) SetLogger(log logrus.FieldLogger) { r.log = log }

// Root returns the workspace root.
func (r *Repository) Root() string { return r.root }

// Config returns the loaded workspace configuration.
func (r *Repository) Config() Config { return r.cfg }

// withLock runs fn holding the exclusive metadata lock. Acquisition blocks
// until any concurrent mutator releases it.
func (r *Repository) withLock(fn func() error) error {
	lock := fslock.New(filepath.Join(r.metaDir, "lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire metadata lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.log.Warnf("release metadata lock: %v", err)
		}
	}()
	return fn()
}

// CreateBranch registers a new branch at the current head.
func (r *Repository) CreateBranch(name string) error {
	return r.withLock(func() error {
		current, err := r.Refs.Current()
		if err != nil {
			return err
		}
		head, err := r.Refs.Head(current)
		if err != nil {
			return err
		}
		return r.Refs.Create(name, head)
	})
}

// DeleteBranch removes a branch; the current branch is protected.
func (r *Repository) DeleteBranch(name string) error {
	return r.withLock(func() error {
		return r.Refs.Delete(name)
	})
}

// Branches lists branch names together with the current one.
func (r *Repository) Branches() ([]string, string, error) {
	names, err := r.Refs.List()
	if err != nil {
		return nil, "", err
	}
	current, err := r.Refs.Current()
	if err != nil {
		return nil, "", err
	}
	return names, current, nil
}

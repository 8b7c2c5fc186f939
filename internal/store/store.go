// Package store is the content-addressable object store adapter. It is the
// sole mutator of durable object storage: every object is written once under
// the base32 form of its CID and never modified.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gocid "github.com/ipfs/go-cid"

	"github.com/pandonetwork/pando/internal/object"
	"github.com/pandonetwork/pando/internal/workdir"
)

// MissingObjectError reports a CID with no backing bytes.
type MissingObjectError struct {
	CID gocid.Cid
}

func (e *MissingObjectError) Error() string {
	return fmt.Sprintf("missing object: %s", object.CIDToString(e.CID))
}

// CorruptObjectError reports stored bytes that no longer hash to their CID.
type CorruptObjectError struct {
	CID gocid.Cid
}

func (e *CorruptObjectError) Error() string {
	return fmt.Sprintf("corrupt object: %s", object.CIDToString(e.CID))
}

// Store manages CID-addressed immutable objects on disk.
type Store struct {
	objectsDir string
	pinsDir    string
}

// Open creates or opens a Store rooted at dir (the .pando/ipfs directory).
func Open(dir string) (*Store, error) {
	s := &Store{
		objectsDir: filepath.Join(dir, "objects"),
		pinsDir:    filepath.Join(dir, "pins"),
	}
	for _, d := range []string{s.objectsDir, s.pinsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create store dir %s: %w", d, err)
		}
	}
	return s, nil
}

func (s *Store) objectPath(c gocid.Cid) string {
	return filepath.Join(s.objectsDir, object.CIDToString(c))
}

// Put writes bytes to the store, returning their CID. Idempotent: the same
// bytes always map to the same CID and an existing object is left untouched.
func (s *Store) Put(data []byte) (gocid.Cid, error) {
	c, err := object.ComputeCID(data)
	if err != nil {
		return gocid.Undef, err
	}
	path := s.objectPath(c)
	if _, err := os.Stat(path); err == nil {
		return c, nil // already exists
	}
	if err := workdir.SafeWrite(path, data, 0644); err != nil {
		return gocid.Undef, fmt.Errorf("write object: %w", err)
	}
	return c, nil
}

// PutNode encodes a DAG object and stores its canonical bytes.
func (s *Store) PutNode(obj object.Object) (gocid.Cid, error) {
	data, c, err := object.Encode(obj)
	if err != nil {
		return gocid.Undef, err
	}
	got, err := s.Put(data)
	if err != nil {
		return gocid.Undef, err
	}
	if !got.Equals(c) {
		return gocid.Undef, &CorruptObjectError{CID: c}
	}
	return c, nil
}

// Get reads raw bytes by CID, verifying that they still hash to it.
func (s *Store) Get(c gocid.Cid) ([]byte, error) {
	data, err := os.ReadFile(s.objectPath(c))
	if os.IsNotExist(err) {
		return nil, &MissingObjectError{CID: c}
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", object.CIDToString(c), err)
	}
	check, err := object.ComputeCID(data)
	if err != nil {
		return nil, err
	}
	if !check.Equals(c) {
		return nil, &CorruptObjectError{CID: c}
	}
	return data, nil
}

// GetNode reads and decodes a DAG object.
func (s *Store) GetNode(c gocid.Cid) (object.Object, error) {
	data, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	obj, err := object.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", object.CIDToString(c), err)
	}
	return obj, nil
}

// GetPath performs a partial read: it decodes the object's generic node form
// and walks the dotted selector into it (e.g. "@type", "tree", "tree./").
// This lets callers inspect a field without materializing the typed object
// or any of its subtree.
func (s *Store) GetPath(c gocid.Cid, selector string) (interface{}, error) {
	data, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	var node interface{}
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("object %s: %w", object.CIDToString(c), err)
	}
	if selector == "" {
		return node, nil
	}
	cur := node
	for _, part := range strings.Split(selector, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("object %s: selector %q does not resolve", object.CIDToString(c), selector)
		}
		cur, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("object %s: selector %q not found", object.CIDToString(c), selector)
		}
	}
	return cur, nil
}

// Kind resolves an object's kind from its "@type" field without decoding
// the rest of it.
func (s *Store) Kind(c gocid.Cid) (object.Kind, error) {
	v, err := s.GetPath(c, "@type")
	if err != nil {
		return object.KindUnknown, err
	}
	typ, ok := v.(string)
	if !ok {
		return object.KindUnknown, fmt.Errorf("object %s: @type is not a string", object.CIDToString(c))
	}
	return object.KindFromType(typ), nil
}

// Download materializes raw blob content by CID. With cacheOnly set it only
// consults the local backing directory; a store backed by a remote would
// refuse to fetch over the network.
func (s *Store) Download(c gocid.Cid, cacheOnly bool) ([]byte, error) {
	_ = cacheOnly // the local backing store is always fully cached
	return s.Get(c)
}

// Has reports whether an object exists locally.
func (s *Store) Has(c gocid.Cid) bool {
	_, err := os.Stat(s.objectPath(c))
	return err == nil
}

// Pin marks a CID as retained. Pins are marker files so they survive
// process restarts; a future GC would treat them as roots.
func (s *Store) Pin(c gocid.Cid) error {
	if !c.Defined() {
		return nil
	}
	path := filepath.Join(s.pinsDir, object.CIDToString(c))
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("pin %s: %w", object.CIDToString(c), err)
	}
	return nil
}

// Unpin removes a retention marker. Unpinning a CID that was never pinned
// is a no-op.
func (s *Store) Unpin(c gocid.Cid) error {
	path := filepath.Join(s.pinsDir, object.CIDToString(c))
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unpin %s: %w", object.CIDToString(c), err)
	}
	return nil
}

// Pinned reports whether a CID carries a retention marker.
func (s *Store) Pinned(c gocid.Cid) bool {
	_, err := os.Stat(filepath.Join(s.pinsDir, object.CIDToString(c)))
	return err == nil
}


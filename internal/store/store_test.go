package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pandonetwork/pando/internal/object"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ipfs"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	data := []byte("hello world")
	c, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(c)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}
}

func TestPut_Idempotent(t *testing.T) {
	s := openTestStore(t)

	c1, err := s.Put([]byte("same bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	c2, err := s.Put([]byte("same bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c1.Equals(c2) {
		t.Errorf("CIDs differ for identical bytes: %s vs %s", c1, c2)
	}
}

func TestGet_Missing(t *testing.T) {
	s := openTestStore(t)

	c, err := object.ComputeCID([]byte("never stored"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Get(c)
	var missing *MissingObjectError
	if !errors.As(err, &missing) {
		t.Errorf("err = %v, want MissingObjectError", err)
	}
}

func TestGet_Corrupt(t *testing.T) {
	s := openTestStore(t)

	c, err := s.Put([]byte("original"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Corrupt the stored bytes behind the CID.
	path := filepath.Join(s.objectsDir, object.CIDToString(c))
	if err := os.WriteFile(path, []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = s.Get(c)
	var corrupt *CorruptObjectError
	if !errors.As(err, &corrupt) {
		t.Errorf("err = %v, want CorruptObjectError", err)
	}
}

func TestPutNode_GetNode(t *testing.T) {
	s := openTestStore(t)

	blob, err := s.Put([]byte("content"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.PutNode(&object.File{Path: "a.txt", Link: blob})
	if err != nil {
		t.Fatalf("PutNode: %v", err)
	}
	obj, err := s.GetNode(c)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	f, ok := obj.(*object.File)
	if !ok {
		t.Fatalf("GetNode kind = %T, want *object.File", obj)
	}
	if f.Path != "a.txt" || !f.Link.Equals(blob) {
		t.Errorf("decoded file = %+v", f)
	}
}

func TestGetPath_Selector(t *testing.T) {
	s := openTestStore(t)

	blob, _ := s.Put([]byte("content"))
	c, err := s.PutNode(&object.File{Path: "a.txt", Link: blob})
	if err != nil {
		t.Fatal(err)
	}

	typ, err := s.GetPath(c, "@type")
	if err != nil {
		t.Fatalf("GetPath @type: %v", err)
	}
	if typ != "file" {
		t.Errorf("@type = %v, want file", typ)
	}

	link, err := s.GetPath(c, "link./")
	if err != nil {
		t.Fatalf("GetPath link./: %v", err)
	}
	if link != object.CIDToString(blob) {
		t.Errorf("link./ = %v, want %s", link, object.CIDToString(blob))
	}

	if _, err := s.GetPath(c, "nope"); err == nil {
		t.Error("GetPath accepted a missing selector")
	}
}

func TestKind(t *testing.T) {
	s := openTestStore(t)

	blob, _ := s.Put([]byte("content"))
	fc, _ := s.PutNode(&object.File{Path: "a.txt", Link: blob})
	tr := object.NewTree(".")
	tr.Children["a.txt"] = object.Link{CID: fc}
	tc, err := s.PutNode(tr)
	if err != nil {
		t.Fatal(err)
	}

	if k, _ := s.Kind(fc); k != object.KindFile {
		t.Errorf("Kind(file) = %v", k)
	}
	if k, _ := s.Kind(tc); k != object.KindTree {
		t.Errorf("Kind(tree) = %v", k)
	}
}

func TestDownload(t *testing.T) {
	s := openTestStore(t)

	c, _ := s.Put([]byte("blob bytes"))
	data, err := s.Download(c, true)
	if err != nil {
		t.Fatalf("Download cacheOnly: %v", err)
	}
	if string(data) != "blob bytes" {
		t.Errorf("Download = %q", data)
	}
}

func TestPinUnpin(t *testing.T) {
	s := openTestStore(t)

	c, _ := s.Put([]byte("pinned"))
	if s.Pinned(c) {
		t.Error("fresh object reported pinned")
	}
	if err := s.Pin(c); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if !s.Pinned(c) {
		t.Error("Pin did not stick")
	}
	if err := s.Pin(c); err != nil {
		t.Fatalf("re-Pin: %v", err)
	}
	if err := s.Unpin(c); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if s.Pinned(c) {
		t.Error("Unpin did not remove the pin")
	}
	if err := s.Unpin(c); err != nil {
		t.Fatalf("Unpin of unpinned: %v", err)
	}
}

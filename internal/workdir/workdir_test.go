package workdir

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testDir(t *testing.T) *Dir {
	t.Helper()
	return New(t.TempDir())
}

func TestWriteReadRemove(t *testing.T) {
	d := testDir(t)

	if err := d.Write("sub/dir/a.txt", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !d.Exists("sub/dir/a.txt") {
		t.Fatal("Exists = false after Write")
	}
	data, err := d.Read("sub/dir/a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Read = %q", data)
	}

	if err := d.Remove("sub/dir/a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if d.Exists("sub/dir/a.txt") {
		t.Error("file still exists after Remove")
	}
	// Empty parents are pruned.
	if _, err := os.Stat(filepath.Join(d.Root(), "sub")); !os.IsNotExist(err) {
		t.Error("empty parent directories were not pruned")
	}
}

func TestRemove_Missing(t *testing.T) {
	d := testDir(t)
	if err := d.Remove("never/was/here.txt"); err != nil {
		t.Errorf("Remove of missing file: %v", err)
	}
}

func TestWalk_SkipsMetaDir(t *testing.T) {
	d := testDir(t)

	d.Write("b.txt", []byte("b"))
	d.Write("a/x.txt", []byte("x"))
	os.MkdirAll(filepath.Join(d.Root(), MetaDirName, "objects"), 0755)
	os.WriteFile(filepath.Join(d.Root(), MetaDirName, "index"), []byte("meta"), 0644)

	paths, err := d.Walk()
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"a/x.txt", "b.txt"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Walk = %v, want %v", paths, want)
	}
}

func TestAbs_RejectsEscapes(t *testing.T) {
	d := testDir(t)

	for _, p := range []string{"../evil", "a/../../evil", "/etc/passwd", ".pando/index", ".pando"} {
		if _, err := d.Abs(p); !errors.Is(err, ErrPathOutsideWorkspace) {
			t.Errorf("Abs(%q) err = %v, want ErrPathOutsideWorkspace", p, err)
		}
	}
	if _, err := d.Abs("fine/inside.txt"); err != nil {
		t.Errorf("Abs rejected a valid path: %v", err)
	}
}

package object

import (
	"errors"
	"reflect"
	"testing"

	gocid "github.com/ipfs/go-cid"
)

func mustCID(t *testing.T, data string) gocid.Cid {
	t.Helper()
	c, err := ComputeCID([]byte(data))
	if err != nil {
		t.Fatalf("ComputeCID: %v", err)
	}
	return c
}

func TestEncode_Deterministic(t *testing.T) {
	blob := mustCID(t, "content")
	f := &File{Path: "a.txt", Link: blob}

	data1, c1, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data2, c2, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data1) != string(data2) {
		t.Errorf("encodings differ: %s vs %s", data1, data2)
	}
	if !c1.Equals(c2) {
		t.Errorf("CIDs differ: %s vs %s", c1, c2)
	}
}

func TestTreeCanonicalization_InsertionOrder(t *testing.T) {
	a := mustCID(t, "a")
	b := mustCID(t, "b")
	c := mustCID(t, "c")

	t1 := NewTree(".")
	t1.Children["x"] = Link{CID: a}
	t1.Children["y"] = Link{CID: b}
	t1.Children["z"] = Link{CID: c}

	t2 := NewTree(".")
	t2.Children["z"] = Link{CID: c}
	t2.Children["x"] = Link{CID: a}
	t2.Children["y"] = Link{CID: b}

	_, c1, err := Encode(t1)
	if err != nil {
		t.Fatalf("Encode t1: %v", err)
	}
	_, c2, err := Encode(t2)
	if err != nil {
		t.Fatalf("Encode t2: %v", err)
	}
	if !c1.Equals(c2) {
		t.Errorf("permuted child insertion changed CID: %s vs %s", c1, c2)
	}
}

func TestRoundTrip_Snapshot(t *testing.T) {
	tree := mustCID(t, "tree")
	p1 := mustCID(t, "p1")
	p2 := mustCID(t, "p2")
	s := &Snapshot{
		Author:    "alice",
		Message:   "initial",
		Timestamp: 1700000000,
		Tree:      tree,
		Parents:   []gocid.Cid{p1, p2},
	}

	data, _, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	obj, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := obj.(*Snapshot)
	if !ok {
		t.Fatalf("Decode kind = %T, want *Snapshot", obj)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, s)
	}
}

func TestRoundTrip_Snapshot_NoParents(t *testing.T) {
	s := &Snapshot{
		Author:    "alice",
		Message:   "root",
		Timestamp: 1,
		Tree:      mustCID(t, "tree"),
		Parents:   []gocid.Cid{},
	}
	data, _, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	obj, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := obj.(*Snapshot)
	if len(got.Parents) != 0 {
		t.Errorf("Parents = %v, want empty", got.Parents)
	}
}

func TestRoundTrip_Tree(t *testing.T) {
	tr := NewTree("sub/dir")
	tr.Children["a.txt"] = Link{CID: mustCID(t, "a")}
	tr.Children["nested"] = Link{CID: mustCID(t, "n")}

	data, _, err := Encode(tr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	obj, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := obj.(*Tree)
	if !ok {
		t.Fatalf("Decode kind = %T, want *Tree", obj)
	}
	if got.Path != "sub/dir" {
		t.Errorf("Path = %q", got.Path)
	}
	if len(got.Children) != 2 {
		t.Fatalf("Children = %v, want 2 entries", got.Children)
	}
	if !got.Children["a.txt"].CID.Equals(tr.Children["a.txt"].CID) {
		t.Errorf("child a.txt CID mismatch")
	}
	// Kind tags are not on the wire; they come back unresolved.
	if got.Children["a.txt"].Kind != KindUnknown {
		t.Errorf("child kind = %v, want KindUnknown", got.Children["a.txt"].Kind)
	}
}

func TestRoundTrip_File(t *testing.T) {
	f := &File{Path: "dir/b.txt", Link: mustCID(t, "blob")}
	data, _, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	obj, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := obj.(*File)
	if !ok {
		t.Fatalf("Decode kind = %T, want *File", obj)
	}
	if !reflect.DeepEqual(got, f) {
		t.Errorf("round trip mismatch: got %+v want %+v", got, f)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"@type":"widget"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
}

func TestDecode_MissingField(t *testing.T) {
	_, err := Decode([]byte(`{"@type":"file","path":"a.txt"}`))
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
}

func TestDecode_MalformedLink(t *testing.T) {
	_, err := Decode([]byte(`{"@type":"file","path":"a.txt","link":"not-a-link"}`))
	if !errors.Is(err, ErrMalformedLink) {
		t.Errorf("err = %v, want ErrMalformedLink", err)
	}
}

func TestEncode_ReservedChildName(t *testing.T) {
	tr := NewTree(".")
	tr.Children["@type"] = Link{CID: mustCID(t, "x")}
	if _, _, err := Encode(tr); err == nil {
		t.Error("Encode accepted reserved child name")
	}
}

func TestParseCID_EmptySentinel(t *testing.T) {
	c, err := ParseCID("")
	if err != nil {
		t.Fatalf("ParseCID(\"\"): %v", err)
	}
	if c.Defined() {
		t.Errorf("empty string parsed to defined CID %s", c)
	}
	if CIDToString(gocid.Undef) != "" {
		t.Errorf("CIDToString(Undef) = %q, want empty", CIDToString(gocid.Undef))
	}
}

func TestCIDString_RoundTrip(t *testing.T) {
	c := mustCID(t, "round")
	s := CIDToString(c)
	back, err := ParseCID(s)
	if err != nil {
		t.Fatalf("ParseCID: %v", err)
	}
	if !back.Equals(c) {
		t.Errorf("round trip: %s != %s", back, c)
	}
}

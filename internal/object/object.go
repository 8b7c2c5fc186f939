package object

import (
	gocid "github.com/ipfs/go-cid"
)

// Kind discriminates the three object types stored in the DAG.
type Kind int

const (
	KindUnknown Kind = iota
	KindSnapshot
	KindTree
	KindFile
)

// Type strings as they appear in the wire form's "@type" field.
const (
	TypeSnapshot = "snapshot"
	TypeTree     = "tree"
	TypeFile     = "file"
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return TypeSnapshot
	case KindTree:
		return TypeTree
	case KindFile:
		return TypeFile
	default:
		return "unknown"
	}
}

// KindFromType maps a wire "@type" string back to a Kind.
func KindFromType(t string) Kind {
	switch t {
	case TypeSnapshot:
		return KindSnapshot
	case TypeTree:
		return KindTree
	case TypeFile:
		return KindFile
	default:
		return KindUnknown
	}
}

// Link is an in-memory reference to a child object. The kind tag is not part
// of the wire form (links serialize as {"/": "<cid>"}); it is filled in
// lazily when the child's "@type" is resolved.
type Link struct {
	CID  gocid.Cid
	Kind Kind
}

// Object is the tagged variant over the three DAG object types.
type Object interface {
	ObjectKind() Kind
}

// Snapshot is an immutable record of a root tree plus parent links.
// Parents has length 0 for the initial snapshot, 1 for ordinary snapshots
// and 2 for merges (origin head first, merged head second).
type Snapshot struct {
	Author    string
	Message   string
	Timestamp int64
	Tree      gocid.Cid
	Parents   []gocid.Cid
}

func (*Snapshot) ObjectKind() Kind { return KindSnapshot }

// Tree is an immutable directory object mapping child names to links.
type Tree struct {
	Path     string
	Children map[string]Link
}

func (*Tree) ObjectKind() Kind { return KindTree }

// NewTree returns an empty tree rooted at path.
func NewTree(path string) *Tree {
	return &Tree{Path: path, Children: make(map[string]Link)}
}

// File is an immutable leaf pointing at a raw content blob.
type File struct {
	Path string
	Link gocid.Cid
}

func (*File) ObjectKind() Kind { return KindFile }

// LinkKind describes how a schema field carries links, consulted by the
// codec instead of runtime reflection.
type LinkKind int

const (
	// LinkValue is a plain scalar field, no link.
	LinkValue LinkKind = iota
	// LinkDirect is a single {"/": CID} link.
	LinkDirect
	// LinkArray is an ordered list of links.
	LinkArray
	// LinkMap means the object's non-reserved keys are child links keyed
	// by name (only Tree uses this).
	LinkMap
)

// Reserved wire keys that may never collide with tree child names.
const (
	keyType = "@type"
	keyPath = "path"
)

// schemaFor returns the field→link-kind table for a kind. Tree's child map
// is implicit: any key other than the reserved ones is a LinkMap entry.
func schemaFor(k Kind) map[string]LinkKind {
	switch k {
	case KindSnapshot:
		return map[string]LinkKind{
			"author":    LinkValue,
			"message":   LinkValue,
			"timestamp": LinkValue,
			"tree":      LinkDirect,
			"parents":   LinkArray,
		}
	case KindTree:
		return map[string]LinkKind{
			keyPath: LinkValue,
		}
	case KindFile:
		return map[string]LinkKind{
			keyPath: LinkValue,
			"link":  LinkDirect,
		}
	default:
		return nil
	}
}

package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	gocid "github.com/ipfs/go-cid"
)

// Codec failure modes.
var (
	ErrUnknownType   = errors.New("unknown object type")
	ErrMissingField  = errors.New("missing field")
	ErrMalformedLink = errors.New("malformed link")
)

// Encode serializes an object to its canonical wire form and computes its
// CID. The same object always yields the same bytes: maps are emitted with
// sorted keys, so tree child insertion order does not affect the CID.
func Encode(obj Object) ([]byte, gocid.Cid, error) {
	node, err := toNode(obj)
	if err != nil {
		return nil, gocid.Undef, err
	}
	data, err := canonicalEncode(node)
	if err != nil {
		return nil, gocid.Undef, fmt.Errorf("serialize %s: %w", obj.ObjectKind(), err)
	}
	c, err := ComputeCID(data)
	if err != nil {
		return nil, gocid.Undef, err
	}
	return data, c, nil
}

// Decode parses wire bytes into the tagged object variant.
func Decode(data []byte) (Object, error) {
	var node map[string]interface{}
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	typ, ok := node[keyType].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, keyType)
	}
	switch KindFromType(typ) {
	case KindSnapshot:
		return decodeSnapshot(node)
	case KindTree:
		return decodeTree(node)
	case KindFile:
		return decodeFile(node)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

// toNode builds the generic wire node for an object. The field layout is
// written out per type and matches schemaFor; the table itself is not read
// here.
func toNode(obj Object) (map[string]interface{}, error) {
	switch o := obj.(type) {
	case *Snapshot:
		node := map[string]interface{}{
			keyType:     TypeSnapshot,
			"author":    o.Author,
			"message":   o.Message,
			"timestamp": o.Timestamp,
			"tree":      encodeLink(o.Tree),
		}
		parents := make([]interface{}, 0, len(o.Parents))
		for _, p := range o.Parents {
			parents = append(parents, encodeLink(p))
		}
		node["parents"] = parents
		return node, nil

	case *Tree:
		node := map[string]interface{}{
			keyType: TypeTree,
			keyPath: o.Path,
		}
		for name, link := range o.Children {
			if name == keyType || name == keyPath {
				return nil, fmt.Errorf("tree %s: child name %q collides with reserved key", o.Path, name)
			}
			node[name] = encodeLink(link.CID)
		}
		return node, nil

	case *File:
		return map[string]interface{}{
			keyType: TypeFile,
			keyPath: o.Path,
			"link":  encodeLink(o.Link),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, obj)
	}
}

func encodeLink(c gocid.Cid) map[string]interface{} {
	return map[string]interface{}{"/": CIDToString(c)}
}

// ParseLinkNode decodes a generic {"/": "<cid>"} node, as returned by
// partial reads that select a link field.
func ParseLinkNode(v interface{}) (gocid.Cid, error) {
	return decodeLink(v)
}

func decodeLink(v interface{}) (gocid.Cid, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return gocid.Undef, fmt.Errorf("%w: not a link object", ErrMalformedLink)
	}
	s, ok := m["/"].(string)
	if !ok {
		return gocid.Undef, fmt.Errorf("%w: missing \"/\" key", ErrMalformedLink)
	}
	c, err := ParseCID(s)
	if err != nil {
		return gocid.Undef, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	return c, nil
}

func decodeSnapshot(node map[string]interface{}) (*Snapshot, error) {
	s := &Snapshot{}
	schema := schemaFor(KindSnapshot)
	for field, kind := range schema {
		v, ok := node[field]
		if !ok {
			return nil, fmt.Errorf("%w: snapshot.%s", ErrMissingField, field)
		}
		switch kind {
		case LinkDirect:
			c, err := decodeLink(v)
			if err != nil {
				return nil, fmt.Errorf("snapshot.%s: %w", field, err)
			}
			s.Tree = c
		case LinkArray:
			arr, ok := v.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: snapshot.%s is not an array", ErrMalformedLink, field)
			}
			for i, item := range arr {
				c, err := decodeLink(item)
				if err != nil {
					return nil, fmt.Errorf("snapshot.%s[%d]: %w", field, i, err)
				}
				s.Parents = append(s.Parents, c)
			}
		case LinkValue:
			switch field {
			case "author":
				s.Author, ok = v.(string)
			case "message":
				s.Message, ok = v.(string)
			case "timestamp":
				var f float64
				f, ok = v.(float64)
				s.Timestamp = int64(f)
			}
			if !ok {
				return nil, fmt.Errorf("%w: snapshot.%s has wrong type", ErrMissingField, field)
			}
		}
	}
	if s.Parents == nil {
		s.Parents = []gocid.Cid{}
	}
	return s, nil
}

func decodeTree(node map[string]interface{}) (*Tree, error) {
	path, ok := node[keyPath].(string)
	if !ok {
		return nil, fmt.Errorf("%w: tree.%s", ErrMissingField, keyPath)
	}
	t := NewTree(path)
	for name, v := range node {
		if name == keyType || name == keyPath {
			continue
		}
		c, err := decodeLink(v)
		if err != nil {
			return nil, fmt.Errorf("tree %s child %q: %w", path, name, err)
		}
		t.Children[name] = Link{CID: c, Kind: KindUnknown}
	}
	return t, nil
}

func decodeFile(node map[string]interface{}) (*File, error) {
	path, ok := node[keyPath].(string)
	if !ok {
		return nil, fmt.Errorf("%w: file.%s", ErrMissingField, keyPath)
	}
	v, ok := node["link"]
	if !ok {
		return nil, fmt.Errorf("%w: file.link", ErrMissingField)
	}
	c, err := decodeLink(v)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", path, err)
	}
	return &File{Path: path, Link: c}, nil
}

// canonicalEncode produces deterministic JSON: object keys sorted, no
// insignificant whitespace. Numbers pass through encoding/json.
func canonicalEncode(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, _ := json.Marshal(k)
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			valBytes, err := canonicalEncode(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, valBytes...)
		}
		buf = append(buf, '}')
		return buf, nil

	case []interface{}:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			itemBytes, err := canonicalEncode(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, itemBytes...)
		}
		buf = append(buf, ']')
		return buf, nil

	default:
		return json.Marshal(v)
	}
}

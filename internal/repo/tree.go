package repo

import (
	"fmt"
	"sort"
	"strings"

	gocid "github.com/ipfs/go-cid"

	"github.com/pandonetwork/pando/internal/object"
)

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// treeOf resolves a snapshot's root tree CID with a partial read: only the
// snapshot's "tree" field is inspected, not the subtree behind it.
func (r *Repository) treeOf(snapCID gocid.Cid) (gocid.Cid, error) {
	if !snapCID.Defined() {
		return gocid.Undef, nil
	}
	v, err := r.Store.GetPath(snapCID, "tree")
	if err != nil {
		return gocid.Undef, err
	}
	return object.ParseLinkNode(v)
}

// loadTree materializes a tree object with every child's kind resolved via
// the child's "@type" field. An undefined CID loads as the empty root tree
// (the uniform representation of an empty branch head).
func (r *Repository) loadTree(c gocid.Cid) (*object.Tree, error) {
	if !c.Defined() {
		return object.NewTree("."), nil
	}
	obj, err := r.Store.GetNode(c)
	if err != nil {
		return nil, err
	}
	tree, ok := obj.(*object.Tree)
	if !ok {
		return nil, fmt.Errorf("object %s is a %s, not a tree",
			object.CIDToString(c), obj.ObjectKind())
	}
	for name, link := range tree.Children {
		kind, err := r.Store.Kind(link.CID)
		if err != nil {
			return nil, fmt.Errorf("tree child %s: %w", name, err)
		}
		link.Kind = kind
		tree.Children[name] = link
	}
	return tree, nil
}

// loadRootTree loads the root tree behind a snapshot head.
func (r *Repository) loadRootTree(snapCID gocid.Cid) (*object.Tree, error) {
	treeCID, err := r.treeOf(snapCID)
	if err != nil {
		return nil, err
	}
	return r.loadTree(treeCID)
}

// loadFile materializes a file object behind a tree child link.
func (r *Repository) loadFile(c gocid.Cid) (*object.File, error) {
	obj, err := r.Store.GetNode(c)
	if err != nil {
		return nil, err
	}
	f, ok := obj.(*object.File)
	if !ok {
		return nil, fmt.Errorf("object %s is a %s, not a file",
			object.CIDToString(c), obj.ObjectKind())
	}
	return f, nil
}

// flattenTree walks a loaded tree and returns path → blob CID for every
// file under it.
func (r *Repository) flattenTree(tree *object.Tree, prefix string, out map[string]gocid.Cid) error {
	for name, link := range tree.Children {
		p := joinPath(prefix, name)
		switch link.Kind {
		case object.KindFile:
			f, err := r.loadFile(link.CID)
			if err != nil {
				return err
			}
			out[p] = f.Link
		case object.KindTree:
			sub, err := r.loadTree(link.CID)
			if err != nil {
				return err
			}
			if err := r.flattenTree(sub, p, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("tree child %s has unknown kind", p)
		}
	}
	return nil
}

// treeFiles returns the path → blob CID mapping for a root tree CID.
func (r *Repository) treeFiles(treeCID gocid.Cid) (map[string]gocid.Cid, error) {
	tree, err := r.loadTree(treeCID)
	if err != nil {
		return nil, err
	}
	files := make(map[string]gocid.Cid)
	if err := r.flattenTree(tree, "", files); err != nil {
		return nil, err
	}
	return files, nil
}

// buildNode is the in-memory shape of a tree under construction. A node is
// either a directory (children non-nil) or a file (blob defined).
type buildNode struct {
	children map[string]*buildNode
	blob     gocid.Cid
}

func newDirNode() *buildNode {
	return &buildNode{children: make(map[string]*buildNode)}
}

// buildTree assembles the staged path → blob mapping into a nested tree,
// enforcing that no path is both a file and a directory prefix.
func buildTree(files map[string]gocid.Cid) (*buildNode, error) {
	root := newDirNode()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		parts := strings.Split(p, "/")
		cur := root
		for i, part := range parts {
			if cur.children == nil {
				return nil, fmt.Errorf("%w: %s", ErrPathIsFile, strings.Join(parts[:i], "/"))
			}
			if i == len(parts)-1 {
				if existing, ok := cur.children[part]; ok && existing.children != nil {
					return nil, fmt.Errorf("%w: %s", ErrPathIsFile, p)
				}
				cur.children[part] = &buildNode{blob: files[p]}
				break
			}
			next, ok := cur.children[part]
			if !ok {
				next = newDirNode()
				cur.children[part] = next
			}
			cur = next
		}
	}
	return root, nil
}

// publishTree writes a built tree bottom-up into the object store and
// returns the root tree CID.
func (r *Repository) publishTree(node *buildNode, path string) (gocid.Cid, error) {
	treePath := path
	if treePath == "" {
		treePath = "."
	}
	tree := object.NewTree(treePath)
	for name, child := range node.children {
		childPath := joinPath(path, name)
		if child.children == nil {
			c, err := r.Store.PutNode(&object.File{Path: childPath, Link: child.blob})
			if err != nil {
				return gocid.Undef, err
			}
			tree.Children[name] = object.Link{CID: c, Kind: object.KindFile}
			continue
		}
		c, err := r.publishTree(child, childPath)
		if err != nil {
			return gocid.Undef, err
		}
		tree.Children[name] = object.Link{CID: c, Kind: object.KindTree}
	}
	return r.Store.PutNode(tree)
}

// writeOut materializes a tree child (file or whole subtree) into the
// working directory.
func (r *Repository) writeOut(link object.Link, path string) error {
	switch link.Kind {
	case object.KindFile:
		f, err := r.loadFile(link.CID)
		if err != nil {
			return err
		}
		data, err := r.Store.Download(f.Link, false)
		if err != nil {
			return err
		}
		return r.WD.Write(path, data)
	case object.KindTree:
		sub, err := r.loadTree(link.CID)
		if err != nil {
			return err
		}
		for name, child := range sub.Children {
			if err := r.writeOut(child, joinPath(path, name)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("cannot write child %s: unknown kind", path)
	}
}

// removeOut deletes a tree child (file or whole subtree) from the working
// directory.
func (r *Repository) removeOut(link object.Link, path string) error {
	switch link.Kind {
	case object.KindFile:
		return r.WD.Remove(path)
	case object.KindTree:
		sub, err := r.loadTree(link.CID)
		if err != nil {
			return err
		}
		for name, child := range sub.Children {
			if err := r.removeOut(child, joinPath(path, name)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("cannot remove child %s: unknown kind", path)
	}
}

// applyTreeDiff reconciles the working directory from base to next by
// walking both trees in lockstep over the union of child names. Atomicity
// is per file; a mid-apply failure leaves the workspace partially updated
// and detectably dirty, never silently rolled back.
func (r *Repository) applyTreeDiff(base, next *object.Tree, prefix string) error {
	names := make(map[string]bool)
	for name := range base.Children {
		names[name] = true
	}
	for name := range next.Children {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		p := joinPath(prefix, name)
		b, hasBase := base.Children[name]
		n, hasNext := next.Children[name]
		switch {
		case !hasBase:
			if err := r.writeOut(n, p); err != nil {
				return err
			}
		case !hasNext:
			if err := r.removeOut(b, p); err != nil {
				return err
			}
		case b.CID.Equals(n.CID):
			// identical subtree or file, nothing to do
		case b.Kind == object.KindFile && n.Kind == object.KindFile:
			if err := r.writeOut(n, p); err != nil {
				return err
			}
		case b.Kind == object.KindTree && n.Kind == object.KindTree:
			bSub, err := r.loadTree(b.CID)
			if err != nil {
				return err
			}
			nSub, err := r.loadTree(n.CID)
			if err != nil {
				return err
			}
			if err := r.applyTreeDiff(bSub, nSub, p); err != nil {
				return err
			}
		default:
			// kind flip: drop the old shape, write the new one
			if err := r.removeOut(b, p); err != nil {
				return err
			}
			if err := r.writeOut(n, p); err != nil {
				return err
			}
		}
	}
	return nil
}

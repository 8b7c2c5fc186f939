package repo

import (
	"errors"
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/pandonetwork/pando/internal/object"
	"github.com/pandonetwork/pando/internal/refs"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Init(t.TempDir(), "alice")
	require.NoError(t, err)
	return r
}

func write(t *testing.T, r *Repository, path, content string) {
	t.Helper()
	require.NoError(t, r.WD.Write(path, []byte(content)))
}

func commit(t *testing.T, r *Repository, msg string, paths ...string) gocid.Cid {
	t.Helper()
	require.NoError(t, r.Stage(paths))
	c, err := r.Snapshot(msg)
	require.NoError(t, err)
	return c
}

func headOf(t *testing.T, r *Repository, branch string) gocid.Cid {
	t.Helper()
	c, err := r.Refs.Head(branch)
	require.NoError(t, err)
	return c
}

// files returns path → blob CID of the tree behind a snapshot head.
func files(t *testing.T, r *Repository, snap gocid.Cid) map[string]gocid.Cid {
	t.Helper()
	treeCID, err := r.treeOf(snap)
	require.NoError(t, err)
	m, err := r.treeFiles(treeCID)
	require.NoError(t, err)
	return m
}

func blobCID(t *testing.T, content string) gocid.Cid {
	t.Helper()
	c, err := object.ComputeCID([]byte(content))
	require.NoError(t, err)
	return c
}

func TestInit_Twice(t *testing.T) {
	root := t.TempDir()
	_, err := Init(root, "alice")
	require.NoError(t, err)
	_, err = Init(root, "alice")
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestOpen_Uninitialized(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestSnapshot_NothingStaged(t *testing.T) {
	r := newRepo(t)
	_, err := r.Snapshot("empty")
	require.ErrorIs(t, err, ErrNothingToSnapshot)

	write(t, r, "a.txt", "hello")
	// Present on disk but never staged: still nothing to snapshot.
	_, err = r.Snapshot("still empty")
	require.ErrorIs(t, err, ErrNothingToSnapshot)
}

func TestSnapshot_NestedDirectories(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "root")
	write(t, r, "sub/b.txt", "nested")
	write(t, r, "sub/deep/c.txt", "deeper")
	c := commit(t, r, "m1", "a.txt", "sub/b.txt", "sub/deep/c.txt")

	got := files(t, r, c)
	require.Len(t, got, 3)
	require.Equal(t, blobCID(t, "root"), got["a.txt"])
	require.Equal(t, blobCID(t, "nested"), got["sub/b.txt"])
	require.Equal(t, blobCID(t, "deeper"), got["sub/deep/c.txt"])
}

func TestSnapshot_PathIsFileCollision(t *testing.T) {
	r := newRepo(t)
	write(t, r, "p", "i am a file")
	commit(t, r, "m1", "p")

	// Replace the file with a directory of the same name, stage the new
	// nested path but not the deletion of p: the staged set now wants p
	// as both file and directory prefix.
	require.NoError(t, r.WD.Remove("p"))
	write(t, r, "p/q", "nested")
	require.NoError(t, r.Stage([]string{"p/q"}))
	_, err := r.Snapshot("collide")
	require.ErrorIs(t, err, ErrPathIsFile)
}

func TestCheckout_UnknownBranch(t *testing.T) {
	r := newRepo(t)
	err := r.Checkout("ghost")
	require.ErrorIs(t, err, refs.ErrUnknownBranch)
}

// Dirty-workspace guard: checkout and merge must fail without touching the
// working directory while modified or unsnapshot sets are nonempty.
func TestPreflight_DirtyWorkspace(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "v1")
	commit(t, r, "m1", "a.txt")
	require.NoError(t, r.CreateBranch("b"))

	// Modified, not staged.
	write(t, r, "a.txt", "v2")
	err := r.Checkout("b")
	var dirty *DirtyWorkspaceError
	require.ErrorAs(t, err, &dirty)
	require.Equal(t, []string{"a.txt"}, dirty.Modified)

	data, rerr := r.WD.Read("a.txt")
	require.NoError(t, rerr)
	require.Equal(t, "v2", string(data), "failed checkout must not touch the workspace")

	// Staged but not snapshotted.
	require.NoError(t, r.Stage([]string{"a.txt"}))
	err = r.Checkout("b")
	require.ErrorAs(t, err, &dirty)
	require.Equal(t, []string{"a.txt"}, dirty.Unsnapshot)

	_, err = r.Merge("b")
	require.ErrorAs(t, err, &dirty)
}

func TestCheckout_UntrackedDoesNotBlock(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "v1")
	commit(t, r, "m1", "a.txt")
	require.NoError(t, r.CreateBranch("b"))

	write(t, r, "scratch.txt", "untracked")
	require.NoError(t, r.Checkout("b"))
	require.True(t, r.WD.Exists("scratch.txt"), "untracked file must survive checkout")
}

// Checkout idempotence: a second checkout of the same branch leaves the
// working directory byte-identical.
func TestCheckout_Idempotent(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "alpha")
	write(t, r, "sub/b.txt", "beta")
	commit(t, r, "m1", "a.txt", "sub/b.txt")
	require.NoError(t, r.CreateBranch("b"))
	require.NoError(t, r.Checkout("b"))

	snapshotWD := func() map[string]string {
		out := make(map[string]string)
		paths, err := r.WD.Walk()
		require.NoError(t, err)
		for _, p := range paths {
			data, err := r.WD.Read(p)
			require.NoError(t, err)
			out[p] = string(data)
		}
		return out
	}
	first := snapshotWD()
	require.NoError(t, r.Checkout("b"))
	require.Equal(t, first, snapshotWD())
}

func TestCheckout_SwitchesContent(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "base")
	commit(t, r, "m1", "a.txt")
	require.NoError(t, r.CreateBranch("b"))

	write(t, r, "master-only.txt", "m")
	commit(t, r, "m2", "master-only.txt")

	require.NoError(t, r.Checkout("b"))
	require.False(t, r.WD.Exists("master-only.txt"))
	require.True(t, r.WD.Exists("a.txt"))

	require.NoError(t, r.Checkout("master"))
	require.True(t, r.WD.Exists("master-only.txt"))
}

func TestBranch_Lifecycle(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "v1")
	c1 := commit(t, r, "m1", "a.txt")

	require.NoError(t, r.CreateBranch("b"))
	require.Equal(t, c1, headOf(t, r, "b"), "new branch starts at current head")

	names, current, err := r.Branches()
	require.NoError(t, err)
	require.Equal(t, []string{"b", "master"}, names)
	require.Equal(t, "master", current)

	require.ErrorIs(t, r.DeleteBranch("master"), refs.ErrCannotDeleteCurrentBranch)
	require.NoError(t, r.DeleteBranch("b"))
}

func TestLog_WalksFirstParents(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "v1")
	c1 := commit(t, r, "m1", "a.txt")
	write(t, r, "a.txt", "v2")
	c2 := commit(t, r, "m2", "a.txt")

	entries, err := r.Log(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, c2, entries[0].CID)
	require.Equal(t, c1, entries[1].CID)
	require.Equal(t, "m2", entries[0].Snapshot.Message)
	require.Equal(t, "alice", entries[0].Snapshot.Author)

	limited, err := r.Log(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestMerge_UnknownBranch(t *testing.T) {
	r := newRepo(t)
	_, err := r.Merge("ghost")
	require.ErrorIs(t, err, refs.ErrUnknownBranch)
}

func TestMerge_EmptyBranches(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.CreateBranch("b"))
	res, err := r.Merge("b")
	require.NoError(t, err)
	require.Equal(t, MergeUpToDate, res.Outcome)
}

// Snapshot pinning: a snapshot CID is pinned at creation time.
func TestSnapshot_Pinned(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "v1")
	c := commit(t, r, "m1", "a.txt")
	require.True(t, r.Store.Pinned(c))
}

func TestStatus_UntrackedKeepsClean(t *testing.T) {
	r := newRepo(t)
	write(t, r, "a.txt", "v1")

	st, err := r.Status()
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, st.Untracked)
	require.True(t, st.Clean())
}

func TestStage_MissingUntrackedPath(t *testing.T) {
	r := newRepo(t)
	err := r.Stage([]string{"ghost.txt"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotInitialized))
}

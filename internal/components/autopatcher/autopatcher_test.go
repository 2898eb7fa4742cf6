package autopatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ecengine/internal/core/ec"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func newPatcher(t *testing.T, cfg Config) (*ec.EntityManager, *Component) {
	t.Helper()
	m := ec.NewEntityManager(1, "autopatcher-test")
	require.NoError(t, ec.RegisterComponent(m, "AutoPatcher", New))
	require.NoError(t, m.DefineEntity("EtAutoPatcher", ec.TypeOf[*Component]()))
	e, err := m.CreateEntity("EtAutoPatcher", nil, ec.Args{ArgConfig: cfg})
	require.NoError(t, err)
	return m, ec.MustComponent[*Component](e)
}

func TestBuildManifestWalksRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.txt":      "bravo",
		"a.txt":      "alpha",
		"data/c.bin": "charlie",
	})

	m, err := BuildManifest(root, "1.0.0")
	require.NoError(t, err)
	require.Len(t, m.Files, 3)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, []string{"a.txt", "b.txt", "data/c.bin"}, []string{m.Files[0].Path, m.Files[1].Path, m.Files[2].Path})
	assert.Equal(t, int64(5), m.Files[0].Size)
	assert.Len(t, m.Files[0].Hash, 16)
	assert.NotEqual(t, m.Files[0].Hash, m.Files[1].Hash)

	hash, size, err := HashFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, m.Files[0].Hash, hash)
	assert.Equal(t, int64(5), size)
}

func TestManifestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "alpha"})
	m, err := BuildManifest(root, "2", "a.txt")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, m.Save(path))
	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestLoadManifestRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("files: [: nope"), 0o644))
	_, err := LoadManifest(bad)
	assert.ErrorIs(t, err, ErrBadManifest)

	noPath := filepath.Join(dir, "nopath.yaml")
	require.NoError(t, os.WriteFile(noPath, []byte("version: 1\nfiles:\n  - size: 3\n"), 0o644))
	_, err = LoadManifest(noPath)
	assert.ErrorIs(t, err, ErrBadManifest)

	_, err = LoadManifest(filepath.Join(dir, "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManifestRejectsPathsOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	for _, bad := range []string{"../secret.txt", "data/../../secret.txt", "/etc/passwd"} {
		path := filepath.Join(dir, "manifest.yaml")
		body := "version: 1\nfiles:\n  - path: " + bad + "\n    size: 1\n    hash: \"00\"\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		_, err := LoadManifest(path)
		assert.ErrorIs(t, err, ErrBadManifest, bad)

		_, err = Verify(context.Background(), dir, &Manifest{Files: []FileEntry{{Path: bad}}}, 1)
		assert.ErrorIs(t, err, ErrBadManifest, bad)
	}

	ok := &Manifest{Files: []FileEntry{{Path: "data/./c.bin"}}}
	assert.NoError(t, ok.Validate())
}

func TestVerifyFindsStaleAndMissing(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"keep.txt":   "unchanged",
		"edit.txt":   "original",
		"resize.txt": "short",
		"gone.txt":   "soon deleted",
	})
	m, err := BuildManifest(root, "3")
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{
		"edit.txt":   "modified", // same size, different content
		"resize.txt": "much longer now",
	})
	require.NoError(t, os.Remove(filepath.Join(root, "gone.txt")))

	report, err := Verify(context.Background(), root, m, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, []string{"edit.txt", "resize.txt"}, report.Stale)
	assert.Equal(t, []string{"gone.txt"}, report.Missing)
	assert.False(t, report.UpToDate())
}

func TestVerifyHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "alpha"})
	m, err := BuildManifest(root, "1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Verify(ctx, root, m, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckReportsOnUpdate(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "alpha", "b.txt": "bravo"})
	m, err := BuildManifest(root, "4")
	require.NoError(t, err)
	manifest := filepath.Join(root, "manifest.yaml")
	require.NoError(t, m.Save(manifest))
	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))

	mgr, p := newPatcher(t, Config{ManifestPath: manifest})
	assert.Equal(t, root, p.Config().RootDir)
	assert.Equal(t, DefaultConfig().Workers, p.Config().Workers)

	var got []Report
	p.OnComplete(func(r Report, err error) {
		assert.NoError(t, err)
		got = append(got, r)
	})

	require.NoError(t, p.Check())
	assert.True(t, p.Checking())
	assert.ErrorIs(t, p.Check(), ErrCheckInProgress)

	// The manifest itself was written after hashing, so it is not listed.
	deadline := time.Now().Add(2 * time.Second)
	for len(got) == 0 {
		require.NoError(t, mgr.Update(0.016))
		require.True(t, time.Now().Before(deadline), "report not delivered")
		time.Sleep(2 * time.Millisecond)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "4", got[0].Version)
	assert.Equal(t, []string{"b.txt"}, got[0].Missing)
	assert.Empty(t, got[0].Stale)
	assert.False(t, p.Checking())

	last, ok := p.LastReport()
	require.True(t, ok)
	assert.Equal(t, got[0], last)
}

func TestCheckWithoutManifest(t *testing.T) {
	_, p := newPatcher(t, Config{})
	assert.ErrorIs(t, p.Check(), ErrNoManifest)
	_, ok := p.LastReport()
	assert.False(t, ok)
}

func TestCheckFailureReachesHandlers(t *testing.T) {
	mgr, p := newPatcher(t, Config{ManifestPath: filepath.Join(t.TempDir(), "missing.yaml")})
	var gotErr error
	done := false
	p.OnComplete(func(_ Report, err error) { gotErr, done = err, true })

	require.NoError(t, p.Check())
	deadline := time.Now().Add(2 * time.Second)
	for !done {
		require.NoError(t, mgr.Update(0.016))
		require.True(t, time.Now().Before(deadline), "failure not delivered")
		time.Sleep(2 * time.Millisecond)
	}
	assert.ErrorIs(t, gotErr, os.ErrNotExist)
	_, ok := p.LastReport()
	assert.False(t, ok)
}

func TestDetachRefusesChecks(t *testing.T) {
	mgr, p := newPatcher(t, Config{ManifestPath: "unused.yaml"})
	mgr.Destroy()
	assert.ErrorIs(t, p.Check(), ErrDetached)
}

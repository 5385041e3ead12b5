package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/storage"
	"github.com/eigmax/zkMIPS/types"
)

// fakeRemote serves an artifact tree from memory: one shape directory with a
// manifest and its files.
type fakeRemote struct {
	files map[string][]byte // path under the base URL -> content
}

func newFakeRemote(t *testing.T, shape, version string, files map[string][]byte) *fakeRemote {
	t.Helper()
	c := qt.New(t)
	manifest := &Manifest{
		Shape:   shape,
		Version: version,
		Files:   map[string]string{},
		Created: time.Now().UTC(),
	}
	remote := &fakeRemote{files: map[string][]byte{}}
	for name, content := range files {
		sum := sha256.Sum256(content)
		manifest.Files[name] = hex.EncodeToString(sum[:])
		remote.files["/"+shape+"-"+version+"/"+name] = content
	}
	data, err := storage.EncodeArtifactJSON(manifest)
	c.Assert(err, qt.IsNil)
	remote.files["/"+shape+"-"+version+"/manifest.json"] = data
	return remote
}

func (r *fakeRemote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	content, ok := r.files[req.URL.Path]
	if !ok {
		http.NotFound(w, req)
		return
	}
	_, _ = w.Write(content)
}

func TestDownloaderInstallShape(t *testing.T) {
	c := qt.New(t)

	remote := newFakeRemote(t, "shrink", "v1", map[string][]byte{
		"circuit.ccs":  []byte("constraint system bytes"),
		"proving.pk":   []byte("proving key bytes"),
		"verifying.vk": []byte("verifying key bytes"),
	})
	srv := httptest.NewServer(remote)
	defer srv.Close()

	store, err := NewStore(t.TempDir(), "v1")
	c.Assert(err, qt.IsNil)
	c.Assert(store.Exists("shrink"), qt.IsFalse)

	d := NewDownloader(srv.URL, store)
	c.Assert(d.InstallShape(context.Background(), "shrink"), qt.IsNil)
	c.Assert(store.Exists("shrink"), qt.IsTrue)
	c.Assert(store.Verify("shrink"), qt.IsNil)

	m, err := store.Manifest("shrink")
	c.Assert(err, qt.IsNil)
	c.Assert(m.Shape, qt.Equals, "shrink")
	c.Assert(m.Files, qt.HasLen, 3)

	// A second install over an intact shape is a no-op.
	c.Assert(d.InstallShape(context.Background(), "shrink"), qt.IsNil)
}

func TestDownloaderRejectsTamperedFile(t *testing.T) {
	c := qt.New(t)

	remote := newFakeRemote(t, "shrink", "v1", map[string][]byte{
		"circuit.ccs": []byte("constraint system bytes"),
	})
	// Corrupt the served file after the manifest was hashed.
	remote.files["/shrink-v1/circuit.ccs"] = []byte("evil bytes")
	srv := httptest.NewServer(remote)
	defer srv.Close()

	store, err := NewStore(t.TempDir(), "v1")
	c.Assert(err, qt.IsNil)
	err = NewDownloader(srv.URL, store).InstallShape(context.Background(), "shrink")
	c.Assert(err, qt.IsNotNil)
	c.Assert(err, qt.ErrorMatches, ".*hash.*manifest says.*")
	// Nothing half-written left behind.
	c.Assert(store.Exists("shrink"), qt.IsFalse)
}

func TestDownloaderRejectsManifestMismatch(t *testing.T) {
	c := qt.New(t)

	// Remote carries v2 of the shape under the v1 path.
	remote := newFakeRemote(t, "shrink", "v2", map[string][]byte{
		"circuit.ccs": []byte("bytes"),
	})
	aliases := map[string][]byte{}
	for path, content := range remote.files {
		aliases["/shrink-v1/"+filepath.Base(path)] = content
	}
	for path, content := range aliases {
		remote.files[path] = content
	}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	store, err := NewStore(t.TempDir(), "v1")
	c.Assert(err, qt.IsNil)
	err = NewDownloader(srv.URL, store).InstallShape(context.Background(), "shrink")
	c.Assert(err, qt.ErrorMatches, ".*manifest mismatch.*")
}

func TestDownloaderReinstallsCorruptedShape(t *testing.T) {
	c := qt.New(t)

	remote := newFakeRemote(t, "shrink", "v1", map[string][]byte{
		"circuit.ccs": []byte("constraint system bytes"),
	})
	srv := httptest.NewServer(remote)
	defer srv.Close()

	store, err := NewStore(t.TempDir(), "v1")
	c.Assert(err, qt.IsNil)
	d := NewDownloader(srv.URL, store)
	c.Assert(d.InstallShape(context.Background(), "shrink"), qt.IsNil)

	// Flip bits in the installed file; Verify must notice, install must
	// restore it.
	path := filepath.Join(store.ShapeDir("shrink"), "circuit.ccs")
	c.Assert(os.WriteFile(path, []byte("rotten"), 0o644), qt.IsNil)
	c.Assert(store.Verify("shrink"), qt.IsNotNil)

	c.Assert(d.InstallShape(context.Background(), "shrink"), qt.IsNil)
	c.Assert(store.Verify("shrink"), qt.IsNil)
}

func TestStoreMissingShape(t *testing.T) {
	c := qt.New(t)

	store, err := NewStore(t.TempDir(), "v3")
	c.Assert(err, qt.IsNil)

	_, err = store.Manifest("shrink")
	c.Assert(err, qt.ErrorIs, types.ErrArtifactMissing)
	var missing *types.ArtifactMissingError
	c.Assert(err, qt.ErrorAs, &missing)
	c.Assert(missing.Shape, qt.Equals, "shrink")
	c.Assert(missing.Version, qt.Equals, "v3")

	_, err = store.LoadShape("shrink")
	c.Assert(err, qt.ErrorIs, types.ErrArtifactMissing)
	_, err = store.LoadVerifyingKey("shrink")
	c.Assert(err, qt.ErrorIs, types.ErrArtifactMissing)
}

func TestStoreVersionIsolation(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	remote := newFakeRemote(t, "shrink", "v1", map[string][]byte{
		"circuit.ccs": []byte("v1 bytes"),
	})
	srv := httptest.NewServer(remote)
	defer srv.Close()

	v1, err := NewStore(dir, "v1")
	c.Assert(err, qt.IsNil)
	c.Assert(NewDownloader(srv.URL, v1).InstallShape(context.Background(), "shrink"), qt.IsNil)

	// A version bump sees its own empty tree while the old one stays
	// intact on disk.
	v2, err := NewStore(dir, "v2")
	c.Assert(err, qt.IsNil)
	c.Assert(v2.Exists("shrink"), qt.IsFalse)
	c.Assert(v1.Exists("shrink"), qt.IsTrue)
	c.Assert(v1.Verify("shrink"), qt.IsNil)
}

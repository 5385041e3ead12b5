package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/storage"
)

// downloadTimeout bounds a single artifact file transfer. Proving keys are
// multi-gigabyte, so the limit is generous.
const downloadTimeout = 30 * time.Minute

// Downloader installs pre-built artifact sets from a remote base URL into a
// local store. The remote layout mirrors the store layout: every shape
// directory exposes its manifest and the manifest hashes authenticate every
// downloaded file, so a compromised or stale mirror cannot inject key
// material.
type Downloader struct {
	BaseURL string
	store   *Store
	client  *http.Client
}

// NewDownloader returns a downloader installing into the given store.
func NewDownloader(baseURL string, store *Store) *Downloader {
	return &Downloader{
		BaseURL: baseURL,
		store:   store,
		client:  &http.Client{Timeout: downloadTimeout},
	}
}

func (d *Downloader) remotePath(shape, file string) string {
	return fmt.Sprintf("%s/%s-%s/%s", d.BaseURL, shape, d.store.Version(), file)
}

// InstallShape downloads one shape into the store, unless it is already
// present and intact.
func (d *Downloader) InstallShape(ctx context.Context, shape string) error {
	lock := d.store.shapeLock(shape)
	lock.Lock()
	defer lock.Unlock()
	if d.store.Exists(shape) {
		if err := d.store.Verify(shape); err == nil {
			log.Debugw("artifact shape already installed", "shape", shape)
			return nil
		}
		log.Warnw("local artifact shape corrupted, reinstalling", "shape", shape)
	}

	manifestURL := d.remotePath(shape, manifestFile)
	data, err := d.fetch(ctx, manifestURL)
	if err != nil {
		return fmt.Errorf("fetch manifest of %q: %w", shape, err)
	}
	manifest := &Manifest{}
	if err := storage.DecodeArtifactJSON(data, manifest); err != nil {
		return fmt.Errorf("decode manifest of %q: %w", shape, err)
	}
	if manifest.Shape != shape || manifest.Version != d.store.Version() {
		return fmt.Errorf("remote manifest mismatch: got %s-%s, want %s-%s",
			manifest.Shape, manifest.Version, shape, d.store.Version())
	}

	staging, err := os.MkdirTemp(filepath.Dir(d.store.ShapeDir(shape)), shape+"-download-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil && !os.IsNotExist(err) {
			log.Warnw("failed to remove staging directory", "path", staging, "error", err.Error())
		}
	}()

	for name, wantHash := range manifest.Files {
		if err := d.fetchFile(ctx, d.remotePath(shape, name), filepath.Join(staging, name), wantHash); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(staging, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	dir := d.store.ShapeDir(shape)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove previous shape directory: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("move shape into place: %w", err)
	}
	d.store.cache.Remove(shape)
	log.Infow("artifact shape installed", "shape", shape, "version", d.store.Version())
	return nil
}

// InstallAll downloads every listed shape sequentially.
func (d *Downloader) InstallAll(ctx context.Context, shapes ...string) error {
	for _, shape := range shapes {
		if err := d.InstallShape(ctx, shape); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnw("failed to close response body", "url", url, "error", err.Error())
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// fetchFile streams a remote file to disk while hashing it, and rejects the
// result when the hash does not match the manifest.
func (d *Downloader) fetchFile(ctx context.Context, url, dest, wantHash string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnw("failed to close response body", "url", url, "error", err.Error())
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %s", url, resp.Status)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	h := sha256.New()
	startTime := time.Now()
	n, err := io.Copy(io.MultiWriter(f, h), resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	gotHash := hex.EncodeToString(h.Sum(nil))
	if gotHash != wantHash {
		return fmt.Errorf("downloaded %s: hash %s, manifest says %s", url, gotHash, wantHash)
	}
	log.Debugw("artifact file downloaded",
		"url", url,
		"bytes", n,
		"took", time.Since(startTime).String(),
	)
	return nil
}

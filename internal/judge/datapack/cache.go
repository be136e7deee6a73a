// Package datapack optionally populates JUDGE_DATA_DIR from an object
// store: a worker fleet shares one MinIO bucket of per-problem test-data
// archives so that new or scaled-out workers don't need the data
// pre-baked into their image. Disabled by default; the Judge Driver reads
// straight off DataDir either way and has no dependency on this package.
package datapack

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
)

const markerFileName = ".synced"

// objectStorage is the subset of the MinIO client the cache depends on,
// narrowed for testability.
type objectStorage interface {
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// Cache downloads and extracts a `<problem_id>.tar.zst` object into
// `<rootDir>/<problem_id>` on first use, then serves every later request
// for that problem straight off disk.
type Cache struct {
	rootDir string
	bucket  string
	client  objectStorage

	mu     sync.Mutex
	inFlight map[string]*sync.Mutex
}

// New builds a cache rooted at rootDir, fetching archives from bucket via
// client.
func New(rootDir, bucket string, client objectStorage) *Cache {
	return &Cache{rootDir: rootDir, bucket: bucket, client: client, inFlight: make(map[string]*sync.Mutex)}
}

// Ensure guarantees `<rootDir>/<problemID>` is populated, downloading and
// extracting the archive at most once per problem per process lifetime.
func (c *Cache) Ensure(ctx context.Context, problemID string) (string, error) {
	if problemID == "" {
		return "", errors.New("problem id is required")
	}
	dest := filepath.Join(c.rootDir, problemID)

	lock := c.lockFor(problemID)
	lock.Lock()
	defer lock.Unlock()

	if isSynced(dest) {
		return dest, nil
	}

	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("clean stale cache dir: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	objectKey := problemID + ".tar.zst"
	obj, err := c.client.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get object %s: %w", objectKey, err)
	}
	defer obj.Close()

	if err := extractTarZst(obj, dest); err != nil {
		return "", fmt.Errorf("extract %s: %w", objectKey, err)
	}

	if err := os.WriteFile(filepath.Join(dest, markerFileName), []byte("ok"), 0o644); err != nil {
		return "", fmt.Errorf("write sync marker: %w", err)
	}
	return dest, nil
}

func (c *Cache) lockFor(problemID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.inFlight[problemID]
	if !ok {
		lock = &sync.Mutex{}
		c.inFlight[problemID] = lock
	}
	return lock
}

func isSynced(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, markerFileName))
	return err == nil
}

// extractTarZst streams a zstd-compressed tar archive into dstDir,
// rejecting entries that would escape it.
func extractTarZst(r io.Reader, dstDir string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Name == "" {
			continue
		}

		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return fmt.Errorf("invalid tar entry path %q", hdr.Name)
		}
		target := filepath.Join(dstDir, cleanName)
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(filepath.Separator)) {
			return fmt.Errorf("tar entry escapes destination: %q", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir parent of %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", target, err)
			}
			f.Close()
		}
	}
}

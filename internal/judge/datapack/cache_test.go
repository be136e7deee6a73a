package datapack

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(zw)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractTarZstWritesFiles(t *testing.T) {
	dst := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"1_in.txt":  "3 4\n",
		"1_out.txt": "7\n",
	})

	if err := extractTarZst(bytes.NewReader(archive), dst); err != nil {
		t.Fatalf("extractTarZst: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "1_out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "7\n" {
		t.Fatalf("1_out.txt = %q, want %q", got, "7\n")
	}
}

func TestExtractTarZstRejectsPathEscape(t *testing.T) {
	dst := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"../escape.txt": "nope",
	})

	if err := extractTarZst(bytes.NewReader(archive), dst); err == nil {
		t.Fatal("expected error for path-escaping tar entry")
	}
}

func TestIsSyncedReflectsMarker(t *testing.T) {
	dir := t.TempDir()
	if isSynced(dir) {
		t.Fatal("expected unsynced before marker is written")
	}
	if err := os.WriteFile(filepath.Join(dir, markerFileName), []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !isSynced(dir) {
		t.Fatal("expected synced after marker is written")
	}
}

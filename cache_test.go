package leapsec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheWriteLoadLatest(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(dir, 0)

	ts := time.Unix(1700000000, 0)
	path, err := cache.Write([]byte(sampleTable), ts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("cache file written outside dir: %s", path)
	}

	data, fetchedAt, err := cache.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(data) != sampleTable {
		t.Errorf("data mismatch: got %d bytes, want %d", len(data), len(sampleTable))
	}
	if !fetchedAt.Equal(ts) {
		t.Errorf("fetchedAt = %v, want %v", fetchedAt, ts)
	}
}

func TestCacheNewestWins(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(dir, 0)

	if _, err := cache.Write([]byte("old"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := cache.Write([]byte("new"), time.Unix(2000, 0)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, fetchedAt, err := cache.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("loaded %q, want the newest copy", data)
	}
	if fetchedAt.Unix() != 2000 {
		t.Errorf("fetchedAt = %v, want unix 2000", fetchedAt)
	}
}

func TestCacheMissingDir(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "does-not-exist"), 0)
	_, _, err := cache.LoadLatest()
	if !errors.Is(err, ErrCacheDirNotFound) {
		t.Errorf("error = %v, want ErrCacheDirNotFound", err)
	}
}

func TestCacheEmptyDir(t *testing.T) {
	cache := NewFileCache(t.TempDir(), 0)
	_, _, err := cache.LoadLatest()
	if !errors.Is(err, ErrNoCacheFile) {
		t.Errorf("error = %v, want ErrNoCacheFile", err)
	}
}

func TestCachePrune(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(dir, 2)

	for i := int64(1); i <= 4; i++ {
		if _, err := cache.Write([]byte("copy"), time.Unix(i*1000, 0)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files after pruning, got %d", len(entries))
	}

	_, fetchedAt, err := cache.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if fetchedAt.Unix() != 4000 {
		t.Errorf("newest file pruned away: fetchedAt = %v", fetchedAt)
	}
}

func TestCacheIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, cacheFilePrefix+"garbage"+cacheFileSuffix), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := NewFileCache(dir, 0)
	if _, _, err := cache.LoadLatest(); !errors.Is(err, ErrNoCacheFile) {
		t.Errorf("error = %v, want ErrNoCacheFile", err)
	}
}

package leapsec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	cacheFilePrefix = "tai-utc_"
	cacheFileSuffix = ".dat"
)

// FileCache persists the verbatim raw bytes of the last successful fetch as
// timestamped files in a directory. Only the file with the greatest unix-time
// suffix is ever read back.
type FileCache struct {
	dir      string
	maxFiles int
}

// NewFileCache creates a cache rooted at dir, keeping at most maxFiles table
// copies. maxFiles <= 0 disables pruning. The directory must already exist;
// a missing one surfaces as ErrCacheDirNotFound on the first access.
func NewFileCache(dir string, maxFiles int) *FileCache {
	return &FileCache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data under a name carrying ts's unix time, then prunes copies
// beyond the configured maximum. It returns the path written.
func (c *FileCache) Write(data []byte, ts time.Time) (string, error) {
	name := fmt.Sprintf("%s%d%s", cacheFilePrefix, ts.Unix(), cacheFileSuffix)
	path := filepath.Join(c.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}

	if err := c.prune(); err != nil {
		return path, err
	}
	return path, nil
}

// LoadLatest reads the newest cache file and the fetch time encoded in its
// name. It fails with ErrCacheDirNotFound when the directory is missing and
// ErrNoCacheFile when it holds no table copies.
func (c *FileCache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w in %s", ErrNoCacheFile, c.dir)
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns the table copies in dir sorted oldest first.
func (c *FileCache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCacheDirNotFound, c.dir)
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, cacheFilePrefix) || !strings.HasSuffix(name, cacheFileSuffix) {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, cacheFilePrefix), cacheFileSuffix)
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *FileCache) prune() error {
	if c.maxFiles <= 0 {
		return nil
	}

	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

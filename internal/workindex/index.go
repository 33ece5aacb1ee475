package workindex

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"
)

// Index is the in-memory view of the work index file. It is not safe for
// concurrent use; the sync loop owns it exclusively.
type Index struct {
	fs    afero.Fs
	path  string
	paths mapset.Set[string]
	dirty bool
}

// Load reads the index at path. A missing file yields an empty index.
func Load(fsys afero.Fs, path string) (*Index, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	idx := &Index{
		fs:    fsys,
		path:  path,
		paths: mapset.NewThreadUnsafeSet[string](),
	}

	file, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx.paths.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return idx, nil
}

// Path returns the backing file location.
func (i *Index) Path() string {
	return i.path
}

// Contains reports whether path has already been completed.
func (i *Index) Contains(path string) bool {
	return i.paths.ContainsOne(path)
}

// Add records path as completed. It reports whether the path was new.
func (i *Index) Add(path string) bool {
	if path == "" {
		return false
	}
	added := i.paths.Add(path)
	if added {
		i.dirty = true
	}
	return added
}

// Remove forgets path so the next run processes it again.
func (i *Index) Remove(path string) bool {
	if !i.paths.ContainsOne(path) {
		return false
	}
	i.paths.Remove(path)
	i.dirty = true
	return true
}

// Len returns the number of completed paths.
func (i *Index) Len() int {
	return i.paths.Cardinality()
}

// Dirty reports whether the index changed since it was loaded or last saved.
func (i *Index) Dirty() bool {
	return i.dirty
}

// Paths returns every completed path in ascending order.
func (i *Index) Paths() []string {
	out := i.paths.ToSlice()
	slices.Sort(out)
	return out
}

// Save replaces the backing file with the current contents.
func (i *Index) Save() error {
	dir := filepath.Dir(i.path)
	if err := i.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := afero.TempFile(i.fs, dir, "."+filepath.Base(i.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = i.fs.Remove(tmpName)
	}

	writer := bufio.NewWriter(tmp)
	for _, p := range i.Paths() {
		if _, err := writer.WriteString(p); err != nil {
			cleanup()
			return fmt.Errorf("write index: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			cleanup()
			return fmt.Errorf("write index: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flush index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = i.fs.Remove(tmpName)
		return fmt.Errorf("close index: %w", err)
	}
	if err := i.fs.Chmod(tmpName, 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = i.fs.Remove(tmpName)
		return fmt.Errorf("chmod index: %w", err)
	}
	if err := i.fs.Rename(tmpName, i.path); err != nil {
		_ = i.fs.Remove(tmpName)
		return fmt.Errorf("replace index: %w", err)
	}
	i.dirty = false
	return nil
}

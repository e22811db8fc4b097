package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Cache manages downloaded modpack archives and their extracted overrides
type Cache struct {
	basePath string
}

// New creates a new cache manager
func New(basePath string) *Cache {
	return &Cache{basePath: basePath}
}

// Path returns the cache root
func (c *Cache) Path() string {
	return c.basePath
}

// ModpackPath returns where a modpack archive is stored
func (c *Cache) ModpackPath(platform, project, filename string) string {
	return filepath.Join(c.basePath, "modpacks", safeName(platform), safeName(project), safeName(filename))
}

// OverridesPath returns the directory a modpack's overrides are extracted to
func (c *Cache) OverridesPath(platform, project, filename string) string {
	name := strings.TrimSuffix(safeName(filename), filepath.Ext(filename))
	return filepath.Join(c.basePath, "overrides", safeName(platform), safeName(project), name)
}

// Exists checks if a modpack archive is cached. A positive size must match
// the stored file.
func (c *Cache) Exists(platform, project, filename string, size int64) bool {
	info, err := os.Stat(c.ModpackPath(platform, project, filename))
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return size <= 0 || info.Size() == size
}

// Delete removes every cached archive and override of a project
func (c *Cache) Delete(platform, project string) error {
	for _, kind := range []string{"modpacks", "overrides"} {
		if err := os.RemoveAll(filepath.Join(c.basePath, kind, safeName(platform), safeName(project))); err != nil {
			return fmt.Errorf("deleting cached modpack: %w", err)
		}
	}
	return nil
}

// Clear removes everything in the cache
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.basePath); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Size returns the total size of cached files
func (c *Cache) Size() (int64, error) {
	var totalSize int64
	err := filepath.WalkDir(c.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		totalSize += info.Size()
		return nil
	})

	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("calculating cache size: %w", err)
	}

	return totalSize, nil
}

// safeName keeps a path element from escaping its parent directory
func safeName(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

package core

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"mcmm/internal/domain"

	"github.com/rs/zerolog"
)

// BackupDir is the subdirectory stray files are moved into
const BackupDir = ".old"

// Reconciliation describes what reconciling one directory did and what is
// left to fetch or place
type Reconciliation struct {
	Dir       string                 // Instance-relative directory
	Downloads []*domain.DownloadData // Still absent from disk
	Installs  []*domain.InstallData  // Still absent from disk
	Evicted   []*domain.DownloadData // Dropped for sharing a filename
	Present   []string               // Files already matching an artifact
	Archived  []string               // Files moved into BackupDir
	Deleted   []string               // Files removed outright
}

// Reconciler compares resolved artifacts with a directory's contents
type Reconciler struct {
	log zerolog.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(log zerolog.Logger) *Reconciler {
	return &Reconciler{log: log}
}

// FindDuplicates returns the indices of downloads whose filename repeats an
// earlier entry after a stable sort by filename. Indices are ascending.
func FindDuplicates(downloads []*domain.DownloadData) []int {
	order := make([]int, len(downloads))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return strings.Compare(downloads[a].Filename(), downloads[b].Filename())
	})

	var dupes []int
	for i := 1; i < len(order); i++ {
		if downloads[order[i]].Filename() == downloads[order[i-1]].Filename() {
			dupes = append(dupes, order[i])
		}
	}
	slices.Sort(dupes)
	return dupes
}

// Reconcile brings root/dir in line with the artifacts placed in dir.
// Downloads and installs whose filename is already present are dropped.
// Every other regular file is moved into BackupDir when backup is set and
// deleted otherwise or when it cannot be archived; partial downloads are
// always deleted. Any other filesystem failure stops reconciliation.
func (r *Reconciler) Reconcile(root, dir string, downloads []*domain.DownloadData, installs []*domain.InstallData, backup bool) (*Reconciliation, error) {
	result := &Reconciliation{Dir: dir}

	for _, d := range downloads {
		if d.Dir() == dir {
			result.Downloads = append(result.Downloads, d)
		}
	}
	for _, inst := range installs {
		if inst.Dir() == dir {
			result.Installs = append(result.Installs, inst)
		}
	}

	dupes := FindDuplicates(result.Downloads)
	for i := len(dupes) - 1; i >= 0; i-- {
		idx := dupes[i]
		result.Evicted = append(result.Evicted, result.Downloads[idx])
		result.Downloads = slices.Delete(result.Downloads, idx, idx+1)
	}
	slices.Reverse(result.Evicted)

	absDir := filepath.Join(root, filepath.FromSlash(dir))
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	backupDir := filepath.Join(absDir, BackupDir)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if name == BackupDir {
			continue
		}
		file := filepath.Join(absDir, name)

		if i := slices.IndexFunc(result.Downloads, func(d *domain.DownloadData) bool { return d.Filename() == name }); i >= 0 {
			result.Downloads = slices.Delete(result.Downloads, i, i+1)
			result.Present = append(result.Present, name)
			continue
		}
		if i := slices.IndexFunc(result.Installs, func(inst *domain.InstallData) bool { return inst.Filename() == name }); i >= 0 {
			result.Installs = slices.Delete(result.Installs, i, i+1)
			result.Present = append(result.Present, name)
			continue
		}

		if backup && !strings.HasSuffix(name, PartialSuffix) {
			err := archive(backupDir, file, name)
			if err == nil {
				result.Archived = append(result.Archived, path.Join(dir, name))
				continue
			}
			r.log.Debug().Err(err).Str("file", name).Msg("could not archive, deleting")
		}

		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("deleting %s: %w", path.Join(dir, name), err)
		}
		result.Deleted = append(result.Deleted, path.Join(dir, name))
	}

	r.log.Debug().
		Str("dir", dir).
		Int("download", len(result.Downloads)).
		Int("install", len(result.Installs)).
		Int("present", len(result.Present)).
		Int("archived", len(result.Archived)).
		Int("deleted", len(result.Deleted)).
		Int("evicted", len(result.Evicted)).
		Msg("reconciled")

	return result, nil
}

// DuplicateWarning names the evicted files, or returns "" when none were
func (r *Reconciliation) DuplicateWarning() string {
	if len(r.Evicted) == 0 {
		return ""
	}
	names := make([]string, len(r.Evicted))
	for i, d := range r.Evicted {
		names[i] = fmt.Sprintf("%s (%s)", d.Filename(), d.Source)
	}
	return fmt.Sprintf("%s: duplicate filenames dropped: %s", r.Dir, strings.Join(names, ", "))
}

// archive moves file into backupDir. An existing backup of the same name is
// never replaced.
func archive(backupDir, file, name string) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}
	dest := filepath.Join(backupDir, name)
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%s: %w", dest, os.ErrExist)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(file, dest)
}

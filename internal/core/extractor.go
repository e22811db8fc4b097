package core

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// maxManifestBytes bounds how much of an archived manifest is read into memory
const maxManifestBytes = 16 << 20

// Extractor unpacks zip-based modpack archives
type Extractor struct{}

// NewExtractor creates a new Extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract extracts every entry of a zip archive to destDir
func (e *Extractor) Extract(archivePath, destDir string) error {
	return e.ExtractPrefix(archivePath, "", destDir)
}

// ExtractPrefix extracts the entries under prefix (a slash-separated archive
// directory such as "overrides") to destDir with the prefix stripped.
// An empty prefix extracts everything.
func (e *Extractor) ExtractPrefix(archivePath, prefix, destDir string) (err error) {
	if !e.CanExtract(archivePath) {
		return fmt.Errorf("unsupported archive format: %s", filepath.Ext(archivePath))
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip: %w", cerr)
		}
	}()

	prefix = strings.Trim(prefix, "/")
	for _, f := range r.File {
		name := f.Name
		if prefix != "" {
			rest, ok := strings.CutPrefix(name, prefix+"/")
			if !ok || rest == "" {
				continue
			}
			name = rest
		}
		if err := e.extractZipFile(f, name, destDir); err != nil {
			return err
		}
	}

	return nil
}

// ReadFile returns the contents of one entry of a zip archive. It returns an
// error wrapping fs.ErrNotExist when the entry is missing.
func (e *Extractor) ReadFile(archivePath, name string) (data []byte, err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip: %w", cerr)
		}
	}()

	rc, err := r.Open(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("opening %s in %s: %w", name, filepath.Base(archivePath), err)
	}
	defer rc.Close()

	data, err = io.ReadAll(io.LimitReader(rc, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// HasFile reports whether the archive contains the named entry
func (e *Extractor) HasFile(archivePath, name string) (bool, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return false, fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	_, err = fs.Stat(r, path.Clean(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// CanExtract returns true if the extractor can handle the given filename
func (e *Extractor) CanExtract(filename string) bool {
	return e.DetectFormat(filename) != ""
}

// DetectFormat returns the archive format based on filename extension.
// Modrinth packs are plain zip files.
func (e *Extractor) DetectFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".zip", ".mrpack":
		return "zip"
	default:
		return ""
	}
}

// extractZipFile extracts a single file from a ZIP archive as name
func (e *Extractor) extractZipFile(f *zip.File, name, destDir string) (err error) {
	destPath, err := e.sanitizePath(destDir, name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening file %s in archive: %w", f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing archive entry %s: %w", f.Name, cerr)
		}
	}()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing file %s: %w", destPath, cerr)
		}
	}()

	if _, err = io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("writing file %s: %w", destPath, err)
	}

	return nil
}

// sanitizePath ensures the extracted file path is within the destination directory
func (e *Extractor) sanitizePath(destDir, filePath string) (string, error) {
	return safeJoin(destDir, filePath)
}

// safeJoin joins a slash-separated relative path onto root and rejects
// results that escape root
func safeJoin(root, rel string) (string, error) {
	cleanRoot := filepath.Clean(root)
	dest := filepath.Join(cleanRoot, filepath.FromSlash(rel))
	if dest != cleanRoot && !strings.HasPrefix(dest, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected: %s", rel)
	}
	return dest, nil
}

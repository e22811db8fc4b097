package domain

import (
	"path"
	"path/filepath"
)

// DownloadData is one resolved artifact waiting to be fetched
type DownloadData struct {
	Source       SourceID   // Where it was resolved from
	Title        string     // Project display name, if known
	URL          string     // Direct download URL
	Length       int64      // Size in bytes, 0 if unknown
	SHA1         string     // Hex SHA-1 to verify against, optional
	Dependencies []SourceID // Required dependencies still to be resolved
	Output       string     // Slash-separated path relative to the instance directory
}

// Filename returns the final file name of the artifact
func (d *DownloadData) Filename() string {
	return path.Base(d.Output)
}

// Dir returns the instance-relative directory the artifact is placed in
func (d *DownloadData) Dir() string {
	return path.Dir(d.Output)
}

// Place sets Output to filename inside dir
func (d *DownloadData) Place(dir, filename string) {
	d.Output = path.Join(dir, filename)
}

// InstallData places a file or directory that is already on local disk
type InstallData struct {
	SourcePath string // Absolute path of the file or directory to copy
	Dest       string // Slash-separated path relative to the instance directory
}

// Filename returns the final name of the placed entry
func (i *InstallData) Filename() string {
	return path.Base(i.Dest)
}

// Dir returns the instance-relative directory the entry is placed in
func (i *InstallData) Dir() string {
	return path.Dir(i.Dest)
}

// Target returns the absolute destination under root
func (i *InstallData) Target(root string) string {
	return filepath.Join(root, filepath.FromSlash(i.Dest))
}

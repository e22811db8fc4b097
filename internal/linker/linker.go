// Package linker places local files into an instance directory.
package linker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Method selects how files are placed
type Method int

const (
	MethodCopy Method = iota
	MethodHardlink
)

func (m Method) String() string {
	switch m {
	case MethodHardlink:
		return "hardlink"
	default:
		return "copy"
	}
}

// ParseMethod parses "copy" or "hardlink"; empty means copy
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "copy":
		return MethodCopy, nil
	case "hardlink":
		return MethodHardlink, nil
	default:
		return MethodCopy, fmt.Errorf("unknown install method: %s", s)
	}
}

// Linker places files and directory trees at a destination
type Linker interface {
	// PlaceFile places the regular file src at dst, replacing dst
	PlaceFile(src, dst string) error
	Method() Method
}

// New creates a linker for the given method
func New(method Method) Linker {
	if method == MethodHardlink {
		return NewHardlink()
	}
	return NewCopy()
}

// PlaceDir recreates the tree rooted at src under dst, placing every file
// with l. Existing files in dst are overwritten; others are left alone.
func PlaceDir(l Linker, src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type().IsRegular():
			return l.PlaceFile(p, target)
		default:
			return fmt.Errorf("cannot place %s: not a regular file or directory", p)
		}
	})
}

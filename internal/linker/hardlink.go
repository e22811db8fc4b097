package linker

import (
	"fmt"
	"os"
	"path/filepath"
)

// HardlinkLinker places files using hard links, copying when src and dst
// are on different filesystems
type HardlinkLinker struct {
	fallback *CopyLinker
}

// NewHardlink creates a new hardlink linker
func NewHardlink() *HardlinkLinker {
	return &HardlinkLinker{fallback: NewCopy()}
}

// PlaceFile creates a hard link from src to dst
func (l *HardlinkLinker) PlaceFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing existing file: %w", err)
	}

	if err := os.Link(src, dst); err != nil {
		if _, statErr := os.Stat(src); statErr != nil {
			return fmt.Errorf("creating hardlink: %w", err)
		}
		return l.fallback.PlaceFile(src, dst)
	}

	return nil
}

// Method returns the link method
func (l *HardlinkLinker) Method() Method {
	return MethodHardlink
}

package utils

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageExtensions probed when locating the image belonging to an annotation
// file, in preference order.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsImageFile checks if a file has a known image extension
func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Stem returns the base filename without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FindImageForJSON locates the image belonging to a JSON annotation file:
// same-stem image next to the file, then common image subdirectories.
// Returns "" when nothing is found.
func FindImageForJSON(jsonPath string) string {
	dir := filepath.Dir(jsonPath)
	stem := Stem(jsonPath)

	for _, ext := range imageExtensions {
		candidate := filepath.Join(dir, stem+ext)
		if FileExists(candidate) {
			return candidate
		}
	}

	parent := filepath.Dir(dir)
	imageDirs := []string{
		filepath.Join(dir, "images"),
		filepath.Join(dir, "JPEGImages"),
		filepath.Join(dir, "raw"),
		filepath.Join(parent, "images"),
		filepath.Join(parent, "JPEGImages"),
	}
	for _, imgDir := range imageDirs {
		if !DirExists(imgDir) {
			continue
		}
		for _, ext := range imageExtensions {
			candidate := filepath.Join(imgDir, stem+ext)
			if FileExists(candidate) {
				return candidate
			}
		}
	}

	return ""
}

// ListJSONFiles recursively lists all .json files under dir.
func ListJSONFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// ImageDimensions reads the pixel dimensions of an image file without
// decoding the full pixel data. Falls back to an explicit WebP header decode
// for files the registered decoders reject.
func ImageDimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err == nil {
		return cfg.Width, cfg.Height, nil
	}

	if _, serr := f.Seek(0, 0); serr == nil {
		if cfg, werr := webp.DecodeConfig(f); werr == nil {
			return cfg.Width, cfg.Height, nil
		}
	}

	return 0, 0, fmt.Errorf("image: unknown format for %s", path)
}

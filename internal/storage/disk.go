// Package storage persists uploaded post images on local disk.
package storage

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ripple/internal/models"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageStore writes post images to a directory and serves them by name.
type ImageStore struct {
	dir       string
	maxSizeMB int
	urlPrefix string
}

// NewImageStore creates the upload directory if needed.
func NewImageStore(dir string, maxSizeMB int) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &ImageStore{dir: dir, maxSizeMB: maxSizeMB, urlPrefix: "/uploads/posts/"}, nil
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Store validates and saves an uploaded image, returning its public URL path.
func (s *ImageStore) Store(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return "", models.NewValidationError(fmt.Sprintf("unsupported image type %q", ext))
	}
	if file.Size > int64(s.maxSizeMB)*1024*1024 {
		return "", models.NewValidationError(fmt.Sprintf("image exceeds %dMB limit", s.maxSizeMB))
	}

	name := uuid.New().String() + ext

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return s.urlPrefix + name, nil
}

// Delete removes a previously stored image by its URL path. Missing files are
// not an error; deletion is best-effort cleanup after replace or post delete.
func (s *ImageStore) Delete(urlPath string) {
	if urlPath == "" {
		return
	}
	name := filepath.Base(urlPath)
	// filepath.Base already strips directories; reject anything suspicious.
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return
	}
	_ = os.Remove(filepath.Join(s.dir, name))
}

// Package service contains the business logic sitting between the HTTP
// handlers and the repositories.
package service

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"bulletinboard/internal/config"
	"bulletinboard/internal/middleware"

	xdraw "golang.org/x/image/draw"
)

// thumbnailEdge is the bounding box for generated profile thumbnails.
const thumbnailEdge = 128

// UploadService stages uploaded profile images in a temporary area and
// promotes them to permanent storage when the owning edit commits.
type UploadService struct {
	tmpDir    string
	uploadDir string
}

// NewUploadService creates the upload staging service from configuration.
func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{tmpDir: cfg.UploadTmpDir, uploadDir: cfg.UploadDir}
}

// Stage writes the uploaded file into the temporary area under its original
// filename and returns that name. A nil header is a no-op returning "".
func (s *UploadService) Stage(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", nil
	}
	name := filepath.Base(fh.Filename)
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid upload filename %q", fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(s.tmpDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write staged upload: %w", err)
	}
	return name, nil
}

// Promote copies a staged file into permanent storage under the same name and
// writes a thumbnail next to it when the file decodes as an image. A missing
// staged file is an error, not a silent skip.
func (s *UploadService) Promote(name string) error {
	if name == "" {
		return nil
	}
	src := filepath.Join(s.tmpDir, name)
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("staged file %s missing: %w", name, err)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	dst := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to promote %s: %w", name, err)
	}

	if err := s.writeThumbnail(dst, name); err != nil {
		// Non-image uploads and decode failures keep the full-size file.
		middleware.Logger.Warn("thumbnail generation skipped",
			"file", name, "error", err)
	}
	return nil
}

// Discard removes a staged file. Missing files are tolerated so cancel can
// run after promote.
func (s *UploadService) Discard(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.tmpDir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard %s: %w", name, err)
	}
	return nil
}

// Staged reports whether a file of the given name is waiting in the
// temporary area.
func (s *UploadService) Staged(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.tmpDir, name))
	return err == nil
}

func (s *UploadService) writeThumbnail(path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= thumbnailEdge && h <= thumbnailEdge {
		return nil
	}
	scale := float64(thumbnailEdge) / float64(max(w, h))
	tw := int(float64(w) * scale)
	th := int(float64(h) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	thumb := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.BiLinear.Scale(thumb, thumb.Bounds(), img, bounds, xdraw.Over, nil)

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	out, err := os.Create(filepath.Join(s.uploadDir, base+"_thumb"+ext))
	if err != nil {
		return err
	}
	defer out.Close()

	switch format {
	case "png":
		return png.Encode(out, thumb)
	default:
		return jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85})
	}
}

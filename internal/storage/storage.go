// Package storage holds uploaded images and hands back their public URLs.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// MaxUploadBytes caps the size of a single uploaded image.
const MaxUploadBytes = 10 << 20

// MaxImageSide caps either dimension of an uploaded image before it is decoded.
const MaxImageSide = 8000

var (
	ErrUnsupportedImage = errors.New("unsupported image format, only png and jpeg are allowed")
	ErrInvalidDataURL   = errors.New("invalid base64 image")
	ErrTooLarge         = errors.New("image is too large")
)

// ObjectStore stores an image and returns its public URL.
type ObjectStore interface {
	SaveImage(ctx context.Context, r io.Reader) (string, error)
}

// LocalStore writes downscaled JPEGs to a directory served under /uploads.
type LocalStore struct {
	dir      string
	baseURL  string
	maxWidth uint
	quality  int
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, publicBaseURL string, maxWidth uint) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if maxWidth == 0 {
		maxWidth = 1200
	}
	return &LocalStore{
		dir:      dir,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxWidth: maxWidth,
		quality:  80,
	}, nil
}

// Dir is the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// SaveImage decodes a png or jpeg, shrinks it to the configured width
// keeping its aspect ratio, and stores it as a JPEG.
func (s *LocalStore) SaveImage(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (format != "png" && format != "jpeg") {
		return "", ErrUnsupportedImage
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide {
		return "", ErrTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrUnsupportedImage
	}

	if uint(img.Bounds().Dx()) > s.maxWidth {
		img = resize.Resize(s.maxWidth, 0, img, resize.Lanczos3)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + ".jpg"
	path := filepath.Join(s.dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	err = jpeg.Encode(out, img, &jpeg.Options{Quality: s.quality})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("encode image: %w", err)
	}

	return s.baseURL + "/uploads/" + name, nil
}

// DecodeDataURL accepts "data:image/png;base64,..." or bare base64.
func DecodeDataURL(raw string) (io.Reader, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidDataURL
	}
	if strings.HasPrefix(raw, "data:") {
		meta, payload, ok := strings.Cut(raw, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, ErrInvalidDataURL
		}
		raw = payload
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrInvalidDataURL
	}
	return bytes.NewReader(data), nil
}

package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestLocalStoreSaveImageDownscales(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://cdn.local/", 100)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := store.SaveImage(context.Background(), bytes.NewReader(pngBytes(t, 400, 200)))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "http://cdn.local/uploads/") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("unexpected url %q", url)
	}

	f, err := os.Open(filepath.Join(dir, filepath.Base(url)))
	if err != nil {
		t.Fatalf("open stored file: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode stored jpeg: %v", err)
	}
	if got := img.Bounds().Dx(); got != 100 {
		t.Fatalf("expected width 100, got %d", got)
	}
	if got := img.Bounds().Dy(); got != 50 {
		t.Fatalf("expected height 50, got %d", got)
	}
}

func TestLocalStoreKeepsSmallImages(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", 800)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	url, err := store.SaveImage(context.Background(), bytes.NewReader(pngBytes(t, 40, 20)))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestLocalStoreRejectsNonImages(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", 800)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, err = store.SaveImage(context.Background(), strings.NewReader("not an image"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

// oversizedPNG is a valid tiny PNG whose header claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := pngBytes(t, 1, 1)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestLocalStoreRejectsHugeDimensions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "", 800)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.SaveImage(context.Background(), bytes.NewReader(oversizedPNG(t, 100000, 100000)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	_, err = store.SaveImage(context.Background(), bytes.NewReader(oversizedPNG(t, 10, MaxImageSide+1)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("tall image: expected ErrTooLarge, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected upload left %d files behind", len(entries))
	}
}

func TestDecodeDataURL(t *testing.T) {
	raw := pngBytes(t, 2, 2)
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "data url", input: "data:image/png;base64," + encoded},
		{name: "bare base64", input: encoded},
		{name: "empty", input: "", wantErr: ErrInvalidDataURL},
		{name: "not base64 data url", input: "data:image/png," + encoded, wantErr: ErrInvalidDataURL},
		{name: "garbage", input: "%%%", wantErr: ErrInvalidDataURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeDataURL(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(r); err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(buf.Bytes(), raw) {
				t.Fatal("decoded bytes differ")
			}
		})
	}
}

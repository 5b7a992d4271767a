package imageio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"pdftext/internal/extraction"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func encode(t *testing.T, format string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, testImage())
	case "gif":
		err = gif.Encode(&buf, testImage(), nil)
	case "bmp":
		err = bmp.Encode(&buf, testImage())
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		format      string
		wantMIME    string
		passThrough bool
	}{
		{"png", "image/png", true},
		{"gif", "image/png", false},
		{"bmp", "image/png", false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data := encode(t, tt.format)
			got, mime, err := Normalize(data)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if mime != tt.wantMIME {
				t.Errorf("mime = %q, want %q", mime, tt.wantMIME)
			}
			if tt.passThrough != bytes.Equal(got, data) {
				t.Errorf("pass-through = %v, want %v", bytes.Equal(got, data), tt.passThrough)
			}
			if _, format, err := Decode(got); err != nil || format != "png" {
				t.Errorf("normalized output decodes as %q (err %v), want png", format, err)
			}
		})
	}
}

func TestNormalize_Unsupported(t *testing.T) {
	_, _, err := Normalize([]byte("definitely not an image"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Normalize() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestToJPEG(t *testing.T) {
	out, err := ToJPEG(encode(t, "png"))
	if err != nil {
		t.Fatalf("ToJPEG() error = %v", err)
	}
	img, format, err := Decode(out)
	if err != nil || format != "jpeg" {
		t.Fatalf("ToJPEG output decodes as %q (err %v)", format, err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v, want 4x3", img.Bounds())
	}

	again, err := ToJPEG(out)
	if err != nil || !bytes.Equal(again, out) {
		t.Errorf("ToJPEG(jpeg) did not pass through (err %v)", err)
	}
}

func TestDocument_Units(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "scan.gif")
	bad := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(good, encode(t, "gif"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := NewDocument(good, bad)
	if doc.Name() != "2 images" {
		t.Errorf("Name() = %q", doc.Name())
	}
	if err := doc.Rasterizable(); err != nil {
		t.Errorf("Rasterizable() = %v", err)
	}

	units, err := doc.Units(context.Background())
	if err != nil {
		t.Fatalf("Units() error = %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("Units() = %d, want 2", len(units))
	}
	for i, u := range units {
		if u.Index != i+1 {
			t.Errorf("unit %d index = %d", i, u.Index)
		}
		if u.Direct.Status != extraction.StatusUnavailable {
			t.Errorf("unit %d direct = %v, want unavailable", i, u.Direct.Status)
		}
	}

	img, err := units[0].Render(context.Background())
	if err != nil {
		t.Fatalf("Render(good) error = %v", err)
	}
	if img.MIMEType != "image/png" || img.Page != 1 {
		t.Errorf("Render(good) = %q page %d", img.MIMEType, img.Page)
	}

	if _, err := units[1].Render(context.Background()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Render(bad) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDocument_Empty(t *testing.T) {
	_, err := NewDocument().Units(context.Background())
	if !errors.Is(err, extraction.ErrDocumentUnreadable) {
		t.Errorf("Units() error = %v, want ErrDocumentUnreadable", err)
	}
}

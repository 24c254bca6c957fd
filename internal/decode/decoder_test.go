package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/image/tiff"
)

func testRaster() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	return img
}

func encodeTIFF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, testRaster(), nil); err != nil {
		t.Fatalf("encode tiff: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testRaster()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func withHeader(data []byte) []byte {
	return append([]byte{0, 0, 0, 1}, data...)
}

// TestDecodeTIFFTranscodesToJPEG checks header stripping and JPEG re-encode.
func TestDecodeTIFFTranscodesToJPEG(t *testing.T) {
	d := New(zerolog.Nop())
	img, err := d.Decode(withHeader(encodeTIFF(t)), "tiff", true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !img.Transcoded || img.ContentType != "image/jpeg" {
		t.Fatalf("image = %+v, want transcoded jpeg", img.ContentType)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 6 {
		t.Fatalf("bounds = %v, want 8x6", decoded.Bounds())
	}
}

// TestDecodeCorruptTIFFFallsBackToRaw checks the raw fallback on bad containers.
func TestDecodeCorruptTIFFFallsBackToRaw(t *testing.T) {
	corrupt := []byte("II*\x00\xff\xff\xff\x7fgarbage-not-a-real-ifd")
	d := New(zerolog.Nop())

	img, err := d.Decode(withHeader(corrupt), "tif", true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Transcoded {
		t.Fatal("corrupt tiff should not be transcoded")
	}
	if !bytes.Equal(img.Data, corrupt) {
		t.Fatal("fallback should return the header-stripped bytes")
	}
	if img.ContentType != "image/tiff" {
		t.Fatalf("content type = %q, want image/tiff", img.ContentType)
	}
}

// TestDecodeRawPNGWithoutHeader checks extraction frames pass through untouched.
func TestDecodeRawPNGWithoutHeader(t *testing.T) {
	data := encodePNG(t)
	img, err := New(zerolog.Nop()).Decode(data, "", false)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Transcoded || img.ContentType != "image/png" {
		t.Fatalf("image = %q transcoded=%v", img.ContentType, img.Transcoded)
	}
	if !bytes.Equal(img.Data, data) {
		t.Fatal("raw bytes changed")
	}
}

// TestDecodeUnknownBytesDefaultToJPEG checks the content type fallback.
func TestDecodeUnknownBytesDefaultToJPEG(t *testing.T) {
	img, err := New(zerolog.Nop()).Decode(withHeader([]byte{1, 2, 3}), "png", true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.ContentType != "image/jpeg" || len(img.Data) != 3 {
		t.Fatalf("image = %+v", img)
	}
}

// TestDecodeEmptyFrames checks frames without image bytes are decode errors.
func TestDecodeEmptyFrames(t *testing.T) {
	d := New(zerolog.Nop())
	if _, err := d.Decode([]byte{0, 0, 0, 0}, "png", true); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyFrame)
	}
	if _, err := d.Decode([]byte{0, 0}, "png", true); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("error = %v, want %v", err, ErrShortFrame)
	}
	if _, err := d.Decode(nil, "", false); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyFrame)
	}
}

// TestDecodeIsDeterministic checks repeated decodes give identical output.
func TestDecodeIsDeterministic(t *testing.T) {
	d := New(zerolog.Nop())
	data := withHeader(encodeTIFF(t))

	first, err := d.Decode(data, "tiff", true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	second, err := d.Decode(data, "tiff", true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("decode output differs between runs")
	}
}

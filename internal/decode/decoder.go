package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"strings"

	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
	"github.com/wailsapp/mimetype"
	"golang.org/x/image/tiff"
)

const (
	// HeaderSize is the non-image prefix on generation and easing frames.
	HeaderSize = 4
	// JPEGQuality is the re-encode quality for transcoded TIFF frames.
	JPEGQuality = 90
)

var (
	// ErrEmptyFrame is returned when no image bytes remain after the header.
	ErrEmptyFrame = errors.New("frame has no image data")
	// ErrShortFrame is returned when a frame is shorter than its header.
	ErrShortFrame = errors.New("frame shorter than header")
)

// Image is a displayable frame resource.
type Image struct {
	ContentType string
	Data        []byte
	Transcoded  bool
}

// Decoder converts binary frame messages into displayable images. It keeps no
// per-frame state, so frames may be decoded in any order.
type Decoder struct {
	logger zerolog.Logger
}

// New creates a decoder that logs transcode fallbacks.
func New(logger zerolog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Decode strips the header when present, transcodes TIFF content to JPEG and
// otherwise returns the raw bytes.
func (d *Decoder) Decode(data []byte, extv string, header bool) (Image, error) {
	payload := data
	if header {
		if len(data) < HeaderSize {
			return Image{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
		}
		payload = data[HeaderSize:]
	}
	if len(payload) == 0 {
		return Image{}, ErrEmptyFrame
	}

	sniffed := mimetype.Detect(payload)
	if IsTIFF(extv) || sniffed.Is("image/tiff") {
		img, err := Transcode(payload)
		if err == nil {
			return img, nil
		}
		d.logger.Warn().Err(err).Str("extv", extv).Int("bytes", len(payload)).Msg("decode: tiff transcode failed, using raw frame")
	}

	return Image{
		ContentType: rawContentType(extv, sniffed),
		Data:        append([]byte(nil), payload...),
	}, nil
}

// IsTIFF reports whether extv names the TIFF container.
func IsTIFF(extv string) bool {
	switch strings.ToLower(strings.TrimSpace(extv)) {
	case "tiff", "tif":
		return true
	default:
		return false
	}
}

// Transcode decodes a TIFF container into an RGBA surface and re-encodes it as JPEG.
func Transcode(data []byte) (Image, error) {
	src, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode tiff: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return Image{}, fmt.Errorf("decode tiff: empty raster")
	}
	surface := image.NewRGBA(bounds)
	draw.Draw(surface, bounds, src, bounds.Min, draw.Src)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := jpeg.Encode(buf, surface, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		ContentType: "image/jpeg",
		Data:        append([]byte(nil), buf.B...),
		Transcoded:  true,
	}, nil
}

func rawContentType(extv string, sniffed *mimetype.MIME) string {
	if strings.HasPrefix(sniffed.String(), "image/") {
		return sniffed.String()
	}
	if IsTIFF(extv) {
		return "image/tiff"
	}
	return "image/jpeg"
}

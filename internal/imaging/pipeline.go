// Package imaging compresses photos into base64 data URIs before they are
// stored or uploaded.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxWidth is the width photos are scaled down to when wider.
	DefaultMaxWidth = 1000
	// MaxPixels caps the declared dimensions of an image before it is decoded.
	MaxPixels = 40_000_000
	// MaxInlineBytes is the largest data URI stored as a DynamoDB attribute.
	// Items are limited to 400 KB including the other attributes.
	MaxInlineBytes = 350 * 1024
)

var (
	// ErrEncodeFailed is returned when neither compression nor the raw fallback
	// produced a data URI.
	ErrEncodeFailed = errors.New("image encode failed")
	// ErrTooManyPixels is returned for images whose header declares more than
	// MaxPixels. It wraps ErrEncodeFailed.
	ErrTooManyPixels = fmt.Errorf("image dimensions too large: %w", ErrEncodeFailed)
)

// Pipeline resizes and re-encodes images.
type Pipeline struct {
	MaxWidth int
}

func New(maxWidth int) *Pipeline {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Pipeline{MaxWidth: maxWidth}
}

// CompressToDataURI reads the image at path and returns it as a JPEG data URI.
// When compression fails the original bytes are encoded as-is, with the MIME
// type derived from the file extension.
func (p *Pipeline) CompressToDataURI(path string, quality float64) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("read image", "path", path, "err", err)
		return "", fmt.Errorf("read %s: %w", path, ErrEncodeFailed)
	}
	return p.Compress(data, MimeTypeFromExtension(path), quality)
}

// Compress is CompressToDataURI for in-memory data. fallbackMime labels the
// raw bytes if they cannot be decoded.
func (p *Pipeline) Compress(data []byte, fallbackMime string, quality float64) (string, error) {
	out, err := p.compressJPEG(data, quality)
	if err == nil {
		return EncodeDataURI("image/jpeg", out), nil
	}
	if errors.Is(err, ErrTooManyPixels) {
		return "", err
	}
	slog.Warn("image compression failed, using original bytes", "err", err)
	if len(data) == 0 {
		return "", ErrEncodeFailed
	}
	if fallbackMime == "" {
		fallbackMime = "image/jpeg"
	}
	return EncodeDataURI(fallbackMime, data), nil
}

func (p *Pipeline) compressJPEG(data []byte, quality float64) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	img := p.resize(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// resize scales src down to MaxWidth keeping the aspect ratio. Narrower images
// are returned unchanged.
func (p *Pipeline) resize(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if p.MaxWidth <= 0 || w <= p.MaxWidth {
		return src
	}
	nh := h * p.MaxWidth / w
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.MaxWidth, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func jpegQuality(q float64) int {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	n := int(q * 100)
	if n < 1 {
		n = 1
	}
	return n
}

// IsBase64TooLarge reports whether the encoded payload exceeds maxMB megabytes.
func IsBase64TooLarge(encoded string, maxMB float64) bool {
	if encoded == "" {
		return false
	}
	return float64(len(encoded))/(1024*1024) > maxMB
}

// FitsInline reports whether a data URI is small enough to be stored inline in
// a DynamoDB item.
func FitsInline(encoded string) bool {
	return len(encoded) <= MaxInlineBytes
}

// IsBase64Image reports whether s is an image data URI.
func IsBase64Image(s string) bool {
	return strings.HasPrefix(s, "data:image/") && strings.Contains(s, ";base64,")
}

// MimeTypeFromExtension maps a file name to an image MIME type, defaulting to JPEG.
func MimeTypeFromExtension(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// EncodeDataURI returns data as a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its bytes and content type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", errors.New("not a data uri")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", errors.New("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// ExtensionForMime returns the file extension used when storing mime.
func ExtensionForMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

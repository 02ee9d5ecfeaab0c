package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// ErrUnsupportedFormat is returned for extensions other than .jpg, .jpeg and .png.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrDecode is returned when the payload is not a decodable image.
var ErrDecode = errors.New("decode image")

const jpegQuality = 90

// MaxPixels bounds the declared canvas of an accepted image.
const MaxPixels = 4096 * 4096

// ContentType returns the MIME type for an allowed extension.
func ContentType(ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Normalize decodes data and, when its larger side exceeds maxDim, scales it down
// preserving aspect ratio. The result is encoded in the format implied by ext;
// images already within bounds and in that format are returned unchanged.
// A maxDim <= 0 disables scaling. Images declaring more than MaxPixels are
// rejected before their pixels are decoded.
func Normalize(data []byte, ext string, maxDim int) ([]byte, error) {
	if _, err := ContentType(ext); err != nil {
		return nil, err
	}
	want := formatFor(ext)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: canvas %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	fits := maxDim <= 0 || (w <= maxDim && h <= maxDim)
	if fits && format == want {
		return data, nil
	}

	out := src
	if !fits {
		nw, nh := fit(w, h, maxDim)
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if want == "png" {
		err = png.Encode(&buf, out)
	} else {
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFor(ext string) string {
	if strings.ToLower(ext) == ".png" {
		return "png"
	}
	return "jpeg"
}

func fit(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}

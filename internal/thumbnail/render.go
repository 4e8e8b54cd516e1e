package thumbnail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const jpegMime = "image/jpeg"

// FitRect returns the largest rectangle with the aspect ratio of srcW x srcH
// that fits inside dstW x dstH, centered in it. The source may be scaled up.
// Degenerate sizes yield an empty rectangle.
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := clamp(int(math.Round(float64(srcW)*scale)), 1, dstW)
	h := clamp(int(math.Round(float64(srcH)*scale)), 1, dstH)
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// render letterboxes src into an opts.Width x opts.Height canvas filled with
// opts.Background.
func render(src image.Image, opts Options) (image.Image, error) {
	b := src.Bounds()
	r := FitRect(b.Dx(), b.Dy(), opts.Width, opts.Height)
	if r.Empty() {
		return nil, fmt.Errorf("cannot fit %dx%d into %dx%d", b.Dx(), b.Dy(), opts.Width, opts.Height)
	}
	canvas := imaging.New(opts.Width, opts.Height, opts.Background)
	scaled := imaging.Resize(src, r.Dx(), r.Dy(), imaging.Lanczos)
	return imaging.Paste(canvas, scaled, r.Min), nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// renderJPEG renders src and returns the encoded bytes.
func renderJPEG(src image.Image, opts Options) ([]byte, error) {
	img, err := render(src, opts)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img, opts.Quality)
}

// DataURL returns a data: address for data of the given MIME type.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

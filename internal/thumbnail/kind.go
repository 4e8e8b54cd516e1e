package thumbnail

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image/gif"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the rendering strategy for an asset.
type Kind int

const (
	KindUnsupported Kind = iota
	KindStatic
	KindVideo
	KindAnimated
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindVideo:
		return "video"
	case KindAnimated:
		return "animated"
	default:
		return "unsupported"
	}
}

// maxSniffBytes bounds how much of an animatable image is read to decide
// whether it really is animated.
const maxSniffBytes = 32 << 20

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".m4v": {}, ".mov": {}, ".webm": {}, ".mkv": {},
	".avi": {}, ".ogv": {}, ".mpg": {}, ".mpeg": {}, ".3gp": {},
}

var staticExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".bmp": {}, ".svg": {}, ".tif": {},
	".tiff": {}, ".ico": {}, ".avif": {}, ".heic": {},
}

// animatable formats are content-sniffed; they can be either kind.
var animatableExtensions = map[string]struct{}{
	".gif": {}, ".webp": {}, ".png": {}, ".apng": {},
}

var animatableTypes = map[string]struct{}{
	"image/gif": {}, "image/webp": {}, "image/png": {}, "image/apng": {},
	"image/vnd.mozilla.apng": {},
}

func extensionOf(d Descriptor) string {
	name := d.Name
	if name == "" {
		name = d.URL
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
	}
	return strings.ToLower(path.Ext(name))
}

func declaredType(d Descriptor) string {
	t := strings.ToLower(strings.TrimSpace(d.Type))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// classify decides the kind from declared type and extension alone. The
// second result reports whether the content must be sniffed.
func classify(d Descriptor) (Kind, bool) {
	ext := extensionOf(d)
	typ := declaredType(d)

	if strings.HasPrefix(typ, "video/") {
		return KindVideo, false
	}
	if _, ok := videoExtensions[ext]; ok {
		return KindVideo, false
	}
	if _, ok := animatableTypes[typ]; ok {
		return KindStatic, true
	}
	if _, ok := animatableExtensions[ext]; ok {
		return KindStatic, true
	}
	if strings.HasPrefix(typ, "image/") {
		return KindStatic, false
	}
	if _, ok := staticExtensions[ext]; ok {
		return KindStatic, false
	}
	return KindUnsupported, false
}

// detect returns the kind of d. For animatable formats the content is read
// and returned so the first frame can be decoded without a second fetch.
func detect(ctx context.Context, f Fetcher, d Descriptor) (Kind, []byte, error) {
	kind, sniff := classify(d)
	if !sniff {
		return kind, nil, nil
	}

	// Unreadable bytes cannot prove animation; the address is shown as is.
	rc, err := f.Fetch(ctx, d.URL)
	if err != nil {
		return KindStatic, nil, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSniffBytes))
	if err != nil {
		return KindStatic, nil, nil
	}

	animated, err := isAnimated(data)
	if err != nil {
		return KindUnsupported, nil, err
	}
	if animated {
		return KindAnimated, data, nil
	}
	return KindStatic, nil, nil
}

// isAnimated inspects the real format of data: a GIF with more than one
// frame, a WebP with an ANIM chunk, or an APNG.
func isAnimated(data []byte) (bool, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/gif"):
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return false, fmt.Errorf("decode gif: %w", err)
		}
		return len(g.Image) > 1, nil
	case mt.Is("image/webp"):
		return webpHasChunk(data, "ANIM"), nil
	case mt.Is("image/vnd.mozilla.apng"):
		return true, nil
	case mt.Is("image/png"):
		return pngHasChunk(data, "acTL"), nil
	default:
		return false, nil
	}
}

// webpChunks calls fn for each top-level RIFF chunk until fn returns false.
func webpChunks(data []byte, fn func(fourcc string, payload []byte) bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return
	}
	for off := 12; off+8 <= len(data); {
		fourcc := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		start := off + 8
		end := start + size
		if size < 0 || end > len(data) {
			return
		}
		if !fn(fourcc, data[start:end]) {
			return
		}
		off = end + size&1
	}
}

func webpHasChunk(data []byte, want string) bool {
	found := false
	webpChunks(data, func(fourcc string, _ []byte) bool {
		found = fourcc == want
		return !found
	})
	return found
}

// pngHasChunk reports whether chunk want appears before the image data.
func pngHasChunk(data []byte, want string) bool {
	const sig = "\x89PNG\r\n\x1a\n"
	if len(data) < len(sig) || string(data[:len(sig)]) != sig {
		return false
	}
	for off := len(sig); off+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		typ := string(data[off+4 : off+8])
		if typ == want {
			return true
		}
		if typ == "IDAT" || typ == "IEND" {
			return false
		}
		off += 12 + n
	}
	return false
}

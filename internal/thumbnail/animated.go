package thumbnail

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/webp"
)

var errNoFrame = errors.New("animation has no frames")

// firstFrame decodes the first frame of an animated GIF, WebP or PNG.
func firstFrame(data []byte) (image.Image, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/gif"):
		return firstGIFFrame(data)
	case mt.Is("image/webp"):
		return firstWebPFrame(data)
	case mt.Is("image/png"), mt.Is("image/vnd.mozilla.apng"):
		// the default image of an APNG is its first frame
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported animated format %s", mt.String())
	}
}

// firstGIFFrame composes frame 0 onto a canvas of the logical screen size,
// since the frame itself may cover only part of it.
func firstGIFFrame(data []byte) (image.Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, errNoFrame
	}
	frame := g.Image[0]
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		return frame, nil
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
	return canvas, nil
}

// firstWebPFrame extracts the first ANMF frame into a standalone WebP
// stream, which x/image/webp can decode.
func firstWebPFrame(data []byte) (image.Image, error) {
	var frame []byte
	webpChunks(data, func(fourcc string, payload []byte) bool {
		if fourcc == "ANMF" {
			frame = payload
			return false
		}
		return true
	})
	if frame == nil {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	if len(frame) < 16 {
		return nil, errors.New("decode webp: short ANMF chunk")
	}

	w := int(uint24(frame[6:9])) + 1
	h := int(uint24(frame[9:12])) + 1
	sub := frame[16:]

	img, err := webp.Decode(bytes.NewReader(standaloneWebP(sub, w, h)))
	if err != nil {
		return nil, fmt.Errorf("decode webp frame: %w", err)
	}
	return img, nil
}

// standaloneWebP wraps frame sub-chunks (optional ALPH followed by VP8 or
// VP8L) into an extended-format WebP file of the given canvas size.
func standaloneWebP(sub []byte, w, h int) []byte {
	hasAlpha := len(sub) >= 4 && string(sub[0:4]) == "ALPH"

	var vp8x [10]byte
	if hasAlpha {
		vp8x[0] = 0x10
	}
	putUint24(vp8x[4:7], uint32(w-1))
	putUint24(vp8x[7:10], uint32(h-1))

	var body bytes.Buffer
	body.WriteString("WEBP")
	body.WriteString("VP8X")
	_ = binary.Write(&body, binary.LittleEndian, uint32(len(vp8x)))
	body.Write(vp8x[:])
	body.Write(sub)

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

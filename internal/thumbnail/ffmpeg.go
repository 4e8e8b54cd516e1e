package thumbnail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// execCommandContext is a seam for tests.
var execCommandContext = exec.CommandContext

// FFmpegSource captures video frames by running ffprobe and ffmpeg.
type FFmpegSource struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpegSource(ffmpegPath, ffprobePath string) *FFmpegSource {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegSource{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Open reads the natural dimensions and duration of the first video stream.
func (s *FFmpegSource) Open(ctx context.Context, url string) (Clip, error) {
	out, err := run(ctx, s.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		url)
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", url, err)
	}
	return &ffmpegClip{src: s, url: url, info: info}, nil
}

func parseProbe(out []byte) (ClipInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return ClipInfo{}, fmt.Errorf("decode probe output: %w", err)
	}
	if len(p.Streams) == 0 || p.Streams[0].Width <= 0 || p.Streams[0].Height <= 0 {
		return ClipInfo{}, fmt.Errorf("no video stream")
	}
	info := ClipInfo{Width: p.Streams[0].Width, Height: p.Streams[0].Height}
	if p.Format.Duration != "" && p.Format.Duration != "N/A" {
		secs, err := strconv.ParseFloat(p.Format.Duration, 64)
		if err != nil {
			return ClipInfo{}, fmt.Errorf("parse duration %q: %w", p.Format.Duration, err)
		}
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	return info, nil
}

type ffmpegClip struct {
	src  *FFmpegSource
	url  string
	info ClipInfo
}

func (c *ffmpegClip) Info() ClipInfo { return c.info }

// Frame decodes the frame at at as PNG from ffmpeg's stdout.
func (c *ffmpegClip) Frame(ctx context.Context, at time.Duration) (image.Image, error) {
	out, err := run(ctx, c.src.FFmpegPath,
		"-v", "error",
		"-ss", formatSeconds(at),
		"-i", c.url,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg: no frame at %s", at)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (c *ffmpegClip) Close() error { return nil }

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := execCommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

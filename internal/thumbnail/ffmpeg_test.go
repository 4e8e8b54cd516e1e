package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess stands in for ffprobe and ffmpeg when run as a
// subprocess by fakeExec.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GRIDWORM_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]

	switch args[0] {
	case "ffprobe":
		if strings.Contains(strings.Join(args, " "), "broken.mp4") {
			fmt.Fprint(os.Stderr, "broken.mp4: Invalid data found when processing input")
			os.Exit(1)
		}
		fmt.Fprint(os.Stdout, `{"streams":[{"width":1920,"height":1080}],"format":{"duration":"12.500000"}}`)
	case "ffmpeg":
		_ = png.Encode(os.Stdout, image.NewRGBA(image.Rect(0, 0, 1920, 1080)))
	default:
		os.Exit(2)
	}
	os.Exit(0)
}

func fakeExec(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	orig := execCommandContext
	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GRIDWORM_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { execCommandContext = orig })
	return &calls
}

func TestFFmpegSource_OpenAndFrame(t *testing.T) {
	calls := fakeExec(t)
	src := NewFFmpegSource("", "")
	ctx := context.Background()

	clip, err := src.Open(ctx, "/media/clip.mp4")
	require.NoError(t, err)
	defer clip.Close()

	assert.Equal(t, ClipInfo{Width: 1920, Height: 1080, Duration: 12500 * time.Millisecond}, clip.Info())

	img, err := clip.Frame(ctx, 1250*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1920, img.Bounds().Dx())

	require.Len(t, *calls, 2)
	assert.Equal(t, "ffprobe", (*calls)[0][0])
	assert.Equal(t, "ffmpeg", (*calls)[1][0])
	assert.Contains(t, strings.Join((*calls)[1], " "), "-ss 1.250 -i /media/clip.mp4")
}

func TestFFmpegSource_ProbeFailureCarriesStderr(t *testing.T) {
	fakeExec(t)
	src := NewFFmpegSource("ffmpeg", "ffprobe")

	_, err := src.Open(context.Background(), "/media/broken.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":640,"height":480}],"format":{"duration":"N/A"}}`))
	require.NoError(t, err)
	assert.Equal(t, ClipInfo{Width: 640, Height: 480}, info)

	_, err = parseProbe([]byte(`{"streams":[],"format":{}}`))
	require.ErrorContains(t, err, "no video stream")

	_, err = parseProbe([]byte(`{"streams":[{"width":1,"height":1}],"format":{"duration":"abc"}}`))
	require.ErrorContains(t, err, "parse duration")

	_, err = parseProbe([]byte(`not json`))
	require.Error(t, err)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.000", formatSeconds(0))
	assert.Equal(t, "61.500", formatSeconds(61500*time.Millisecond))
}

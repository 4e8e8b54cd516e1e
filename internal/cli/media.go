package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gridworm/gridworm/internal/bridge"
	"github.com/gridworm/gridworm/internal/filex"
	"github.com/gridworm/gridworm/internal/thumbnail"
)

func (a *App) cmdThumb(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return a.usage("thumb")
	}
	src := args[0]
	var opts thumbnail.Options
	out := ""
	for _, arg := range args[1:] {
		if secs, err := strconv.ParseFloat(arg, 64); err == nil {
			opts.At = time.Duration(secs * float64(time.Second))
			continue
		}
		out = arg
	}

	url := a.thumbs.GetOrGenerate(ctx, thumbnail.Descriptor{Name: filepath.Base(src), URL: src}, opts)
	if url == thumbnail.NoThumbnail {
		fmt.Fprintln(a.out, "No thumbnail.")
		return nil
	}
	if !strings.HasPrefix(url, "data:") {
		fmt.Fprintln(a.out, "Static image, shown as is:", url)
		return nil
	}

	data, err := dataURLBytes(url)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Fprintf(a.out, "Thumbnail ready (%s)\n", humanize.Bytes(uint64(len(data))))
		return nil
	}
	if _, err := filex.WriteAtomic(out, bytes.NewReader(data), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Thumbnail written to %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
	return nil
}

func dataURLBytes(u string) ([]byte, error) {
	_, payload, ok := strings.Cut(u, ";base64,")
	if !ok {
		return nil, fmt.Errorf("unexpected thumbnail address")
	}
	return base64.StdEncoding.DecodeString(payload)
}

// cmdPrefetch warms the cache for every media file present in the media
// directory.
func (a *App) cmdPrefetch(ctx context.Context, args []string) error {
	metas, err := a.store.GetAllMetadata(ctx)
	if err != nil {
		return err
	}

	var ds []thumbnail.Descriptor
	for _, m := range metas {
		path := filepath.Join(a.cfg.Bridge.MediaDir, bridge.LocalName(m.ID, m.Name))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		ds = append(ds, thumbnail.Descriptor{ID: m.ID, Name: m.Name, Type: m.FileType, URL: path})
	}
	if len(ds) == 0 {
		fmt.Fprintln(a.out, "No local media to process.")
		return nil
	}

	n, err := a.thumbs.Prefetch(ctx, ds, thumbnail.Options{}, a.cfg.Thumbnails.Workers)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Thumbnails ready for %d of %d media files\n", n, len(ds))
	return nil
}

func (a *App) cmdStats(ctx context.Context, args []string) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	fmt.Fprintf(a.out, "cached thumbnails: %d\n", a.thumbs.Len())
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			name := f.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(a.out, "%s: %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(a.out, "%s: count=%d sum=%.3fs\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}

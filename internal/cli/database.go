package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gridworm/gridworm/internal/filex"
	"github.com/gridworm/gridworm/internal/models"
	"github.com/gridworm/gridworm/internal/store"
)

func (a *App) cmdDBExport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("dbexport")
	}
	snap, err := a.store.ExportDatabase(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if _, err := filex.WriteAtomic(args[0], bytes.NewReader(data), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d projects, %d media, %d books, %d settings (%s)\n",
		len(snap.Data.Projects), len(snap.Data.MediaMetadata), len(snap.Data.Books), len(snap.Data.Settings),
		humanize.Bytes(uint64(len(data))))
	return nil
}

func (a *App) cmdDBImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("dbimport")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := a.store.ImportDatabase(ctx, &snap); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d projects, %d media, %d books, %d settings\n",
		len(snap.Data.Projects), len(snap.Data.MediaMetadata), len(snap.Data.Books), len(snap.Data.Settings))
	return nil
}

func (a *App) cmdSize(ctx context.Context, args []string) error {
	u, err := a.store.DatabaseSize(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		fmt.Fprintln(a.out, "Storage usage is not available.")
		return nil
	}
	if u.Quota <= 0 {
		fmt.Fprintf(a.out, "Used %s\n", humanize.Bytes(uint64(u.Used)))
		return nil
	}
	fmt.Fprintf(a.out, "Used %s of %s (%.1f%%)\n",
		humanize.Bytes(uint64(u.Used)), humanize.Bytes(uint64(u.Quota)), u.Percentage)
	return nil
}

func (a *App) cmdCleanup(ctx context.Context, args []string) error {
	days := a.cfg.Maintenance.RetentionDays
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return a.usage("cleanup")
		}
		days = n
	}
	if days <= 0 {
		days = store.DefaultRetentionDays
	}
	n, err := a.store.ClearOldThumbnails(ctx, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s thumbnails older than %d days\n", humanize.Comma(int64(n)), days)
	return nil
}

func (a *App) cmdSweep(ctx context.Context, args []string) error {
	n, err := a.store.SweepOrphanThumbnails(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s orphaned thumbnails\n", humanize.Comma(int64(n)))
	return nil
}

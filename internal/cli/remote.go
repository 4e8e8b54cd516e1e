package cli

import (
	"context"
	"errors"
	"fmt"
)

var errNoBridge = errors.New("bridge is not configured")

func (a *App) cmdBackup(ctx context.Context, args []string) error {
	key, err := a.backup.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Uploaded", key)

	url, err := a.backup.PresignDownload(ctx, key)
	if err != nil {
		a.log.Warn(ctx, "presign failed", "key", key, "error", err)
		return nil
	}
	fmt.Fprintln(a.out, "Download link (15 min):", url)
	return nil
}

func (a *App) cmdRestore(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("restore")
	}
	if err := a.backup.Restore(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Restored", args[0])
	return nil
}

func (a *App) cmdBridge(ctx context.Context, args []string) error {
	if a.bridge == nil {
		return errNoBridge
	}
	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "status":
		st, err := a.bridge.Status(ctx)
		if err != nil {
			fmt.Fprintf(a.out, "Bridge at %s is disconnected\n", a.bridge.BaseURL())
			return nil
		}
		fmt.Fprintf(a.out, "Bridge at %s is connected: watching %s (%d files)\n",
			a.bridge.BaseURL(), st.WatchedPath, st.FileCount)
		return nil

	case "import":
		files, err := a.bridge.ImportAll(ctx)
		if err != nil {
			return err
		}
		imported, err := a.importer.Import(ctx, files)
		fmt.Fprintf(a.out, "Imported %d of %d files\n", len(imported), len(files))
		return err

	case "watch":
		if len(args) != 2 {
			return a.usage("bridge")
		}
		if err := a.bridge.Watch(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Companion now watches", args[1])
		return nil
	}
	return a.usage("bridge")
}

func (a *App) cmdMigrate(ctx context.Context, args []string) error {
	path := a.cfg.Legacy.DumpPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return a.usage("migrate")
	}
	report, err := a.migrate(ctx, path)
	if err != nil {
		return err
	}
	if report.AlreadyDone {
		fmt.Fprintln(a.out, "Legacy data was already migrated.")
		return nil
	}
	fmt.Fprintf(a.out, "Migrated %d projects, %d books, %d settings (%d skipped)\n",
		report.Projects, report.Books, report.Settings, report.Skipped)
	for _, e := range report.Errors {
		fmt.Fprintln(a.out, "  failed:", e)
	}
	return nil
}

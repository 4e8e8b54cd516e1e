package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"help":     {"help", "show this list", a.cmdHelp},
		"save":     {"save [id]", "save a new project, or update project id", a.cmdSave},
		"load":     {"load <id>", "print a project", a.cmdLoad},
		"list":     {"list", "list projects, most recently updated first", a.cmdList},
		"search":   {"search <text>", "find projects by name or author", a.cmdSearch},
		"delete":   {"delete <id>", "delete a project", a.cmdDelete},
		"export":   {"export <id> [dir]", "write a project to <slug>.gridworm.json", a.cmdExport},
		"import":   {"import <file>", "add a project from an exported file", a.cmdImport},
		"dbexport": {"dbexport <file>", "write the whole database to a JSON file", a.cmdDBExport},
		"dbimport": {"dbimport <file>", "replace the whole database from a JSON file", a.cmdDBImport},
		"size":     {"size", "show storage usage", a.cmdSize},
		"thumb":    {"thumb <file|url> [seconds] [out.jpg]", "generate a thumbnail", a.cmdThumb},
		"prefetch": {"prefetch", "generate thumbnails for all imported media", a.cmdPrefetch},
		"stats":    {"stats", "show thumbnail cache counters", a.cmdStats},
		"cleanup":  {"cleanup [days]", "delete thumbnails older than days (default 7)", a.cmdCleanup},
		"sweep":    {"sweep", "delete thumbnails of deleted media", a.cmdSweep},
		"backup":   {"backup", "upload a database snapshot", a.cmdBackup},
		"restore":  {"restore <key>", "replace the database with an uploaded snapshot", a.cmdRestore},
		"bridge":   {"bridge [status|import|watch <dir>]", "talk to the starmie companion", a.cmdBridge},
		"migrate":  {"migrate [dump.json]", "import legacy localStorage data", a.cmdMigrate},
	}
}

func (a *App) status() string {
	if a.watcher == nil {
		return ""
	}
	return " (" + stateName(a.watcher.Connected()) + ")"
}

// repl reads commands until "exit", end of input or ctx cancellation.
// Command errors are printed and the loop goes on.
func (a *App) repl(ctx context.Context) error {
	cmds := a.commands()
	if a.interactive {
		fmt.Fprintln(a.out, "Gridworm (type 'help' for commands)")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.interactive {
			fmt.Fprintf(a.out, "gridworm%s> ", a.status())
		}
		line, err := readLine(a.in)
		if err != nil {
			return err
		}
		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		name := strings.ToLower(args[0])
		if name == "exit" || name == "quit" {
			fmt.Fprintln(a.out, "Bye!")
			return nil
		}
		cmd, ok := cmds[name]
		if !ok {
			fmt.Fprintln(a.out, "Unknown command:", name)
			continue
		}
		if err := cmd.run(ctx, args[1:]); err != nil {
			a.log.Debug(ctx, "command failed", "command", name, "error", err)
			fmt.Fprintln(a.out, "error:", err)
		}
	}
}

func (a *App) cmdHelp(ctx context.Context, args []string) error {
	cmds := a.commands()
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Available commands:")
	for _, n := range names {
		fmt.Fprintf(a.out, "  %-40s %s\n", cmds[n].usage, cmds[n].help)
	}
	fmt.Fprintf(a.out, "  %-40s %s\n", "exit", "leave")
	return nil
}

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func (a *App) usage(name string) error {
	return usageError(a.commands()[name].usage)
}

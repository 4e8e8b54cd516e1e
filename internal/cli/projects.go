package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/gridworm/gridworm/internal/models"
	"github.com/gridworm/gridworm/internal/services"
)

func (a *App) cmdSave(ctx context.Context, args []string) error {
	var current *models.Project
	if len(args) > 0 {
		p, err := a.projects.Load(ctx, args[0])
		if err != nil {
			return err
		}
		current = p
	}

	req := services.SaveRequest{}
	var defName, defAuthor string
	if current != nil {
		req.ID = current.ID
		req.Payload = current.Payload
		defName, defAuthor = current.Name, current.Author
	}

	var err error
	if req.Name, err = prompt(a.in, a.out, "Project name", defName); err != nil {
		return err
	}
	if req.Author, err = prompt(a.in, a.out, "Author", defAuthor); err != nil {
		return err
	}
	payloadFile, err := prompt(a.in, a.out, "Workspace JSON file (empty to keep)", "")
	if err != nil {
		return err
	}
	if payloadFile != "" {
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &req.Payload); err != nil {
			return fmt.Errorf("workspace file: %w", err)
		}
	}

	p, err := a.projects.Save(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %q (%s)\n", p.Name, p.ID)
	return nil
}

func (a *App) cmdLoad(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("load")
	}
	p, err := a.projects.Load(ctx, args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}

func (a *App) cmdList(ctx context.Context, args []string) error {
	ps, err := a.projects.List(ctx)
	if err != nil {
		return err
	}
	a.printProjects(ps)
	return nil
}

func (a *App) cmdSearch(ctx context.Context, args []string) error {
	ps, err := a.projects.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.printProjects(ps)
	return nil
}

func (a *App) printProjects(ps []models.Project) {
	if len(ps) == 0 {
		fmt.Fprintln(a.out, "No projects.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAUTHOR\tMEDIA\tUPDATED")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Name, p.Author, len(p.Payload.MediaFiles), humanize.Time(p.UpdatedAt))
	}
	tw.Flush()
}

func (a *App) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("delete")
	}
	if err := a.projects.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted", args[0])
	return nil
}

func (a *App) cmdExport(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return a.usage("export")
	}
	dir := "."
	if len(args) == 2 {
		dir = args[1]
	}
	path, err := a.projects.ExportFile(ctx, args[0], dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Exported to", path)
	return nil
}

func (a *App) cmdImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("import")
	}
	p, err := a.projects.ImportFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %q (%s)\n", p.Name, p.ID)
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/andresuchdata/tutorstore/internal/namespace"
	"github.com/andresuchdata/tutorstore/internal/upload"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func parentFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "parent",
		Aliases: []string{"p"},
		Usage:   "ID of the containing folder (root when empty)",
	}
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "ls",
			Usage: "List the children of a folder",
			Flags: []cli.Flag{
				parentFlag(),
				&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Case-insensitive title filter"},
				&cli.StringFlag{Name: "category", Usage: "all, images, documents, videos or archives", Value: "all"},
				&cli.IntFlag{Name: "recent", Usage: "Show only the N most recently modified items"},
			},
			Action: listItems,
		},
		{
			Name:      "mkdir",
			Usage:     "Create a folder",
			ArgsUsage: "TITLE",
			Flags:     []cli.Flag{parentFlag()},
			Action:    makeFolder,
		},
		{
			Name:      "upload",
			Usage:     "Upload local files into a folder",
			ArgsUsage: "PATH...",
			Flags: []cli.Flag{
				parentFlag(),
				&cli.StringFlag{Name: "mode", Usage: "proxy or grant", EnvVars: []string{"UPLOAD_MODE"}},
			},
			Action: uploadFiles,
		},
		{
			Name:      "rename",
			Usage:     "Rename an item",
			ArgsUsage: "ID TITLE",
			Action:    renameItem,
		},
		{
			Name:      "mv",
			Usage:     "Move an item under another folder",
			ArgsUsage: "ID",
			Flags:     []cli.Flag{&cli.StringFlag{Name: "to", Usage: "Destination folder ID (root when empty)"}},
			Action:    moveItem,
		},
		{
			Name:      "reorder",
			Usage:     "Place an item where a sibling currently sits",
			ArgsUsage: "ID TARGET_ID",
			Action:    reorderItem,
		},
		{
			Name:   "sort",
			Usage:  "Sort the tree with folders first, then by title",
			Action: sortTree,
		},
		{
			Name:      "rm",
			Usage:     "Delete an item and everything under it",
			ArgsUsage: "ID",
			Action:    removeItem,
		},
		{
			Name:      "url",
			Usage:     "Print a signed download URL for a file",
			ArgsUsage: "ID",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "preview", Usage: "Render inline instead of as an attachment"}},
			Action:    fileURL,
		},
		{
			Name:      "zip",
			Usage:     "Download a folder's direct files as a ZIP archive",
			ArgsUsage: "FOLDER_ID",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output path (defaults to <title>.zip)"},
			},
			Action: zipFolder,
		},
		{
			Name:   "quota",
			Usage:  "Show storage usage against the quota",
			Action: showQuota,
		},
		{
			Name:   "watch",
			Usage:  "Follow changes made by other processes",
			Action: watchTree,
		},
	}
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return cli.Exit(fmt.Sprintf("%s: expected %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return nil
}

func printItems(w io.Writer, items []domain.StorageItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tSIZE\tMODIFIED")
	for _, it := range items {
		size := "-"
		if !it.IsFolder() {
			size = it.Size + " " + it.SizeUnit
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Kind, it.Title, size, humanize.Time(it.LastModified))
	}
	return tw.Flush()
}

func listItems(c *cli.Context) error {
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	parent := c.String("parent")

	var items []domain.StorageItem
	switch {
	case c.Int("recent") > 0:
		items = ns.Recent(parent, c.Int("recent"))
	default:
		items = ns.Search(parent, c.String("query"), namespace.ParseCategory(c.String("category")))
	}
	return printItems(c.App.Writer, items)
}

func makeFolder(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	folder, err := ns.CreateFolder(c.Context, c.String("parent"), c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, folder.ID)
	return nil
}

func uploadFiles(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	e := fromContext(c)
	ns, err := e.namespace(c.Context)
	if err != nil {
		return err
	}

	files := make([]upload.LocalFile, 0, c.NArg())
	for _, p := range c.Args().Slice() {
		f, err := upload.FromPath(p, c.String("parent"))
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	mode := e.cfg.Upload.Mode
	if c.IsSet("mode") {
		mode = c.String("mode")
	}
	coord := upload.NewCoordinator(e.client, ns,
		upload.WithMode(upload.ParseMode(mode)),
		upload.WithFolder(e.cfg.Upload.Folder),
		upload.WithConcurrency(e.cfg.Upload.MaxConcurrent),
		upload.WithOnTaskUpdate(func(t domain.UploadTask) {
			log.Debug().
				Str("file", t.FileName).
				Str("status", string(t.Status)).
				Float64("progress", t.Progress).
				Msg("upload progress")
		}),
	)

	res := coord.Upload(c.Context, files)
	for _, item := range res.Created {
		fmt.Fprintf(c.App.Writer, "uploaded %s (%s %s) as %s\n", item.Title, item.Size, item.SizeUnit, item.ID)
	}
	for _, r := range res.Rejected {
		fmt.Fprintf(c.App.ErrWriter, "rejected %s: %v\n", r.FileName, r.Err)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(c.App.ErrWriter, "failed %s: %v\n", f.FileName, f.Err)
	}
	if len(res.Rejected)+len(res.Failed) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func renameItem(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	return ns.Rename(c.Context, c.Args().Get(0), c.Args().Get(1))
}

func moveItem(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	return ns.Move(c.Context, c.Args().First(), c.String("to"))
}

func reorderItem(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	return ns.Reorder(c.Context, c.Args().Get(0), c.Args().Get(1))
}

func sortTree(c *cli.Context) error {
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	return ns.Sort(c.Context)
}

func removeItem(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	res, err := ns.Delete(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d item(s), freed %s\n", len(res.Removed), humanize.IBytes(uint64(res.FreedBytes)))
	for _, f := range res.Failed {
		fmt.Fprintf(c.App.ErrWriter, "object %s was not deleted: %v\n", f.Key, f.Err)
	}
	return nil
}

func fileURL(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	e := fromContext(c)
	ns, err := e.namespace(c.Context)
	if err != nil {
		return err
	}
	item, ok := ns.Get(c.Args().First())
	if !ok {
		return namespace.ErrNotFound
	}
	if item.IsFolder() {
		return cli.Exit("url: item is a folder; use zip", 2)
	}
	u, err := e.client.DownloadURL(c.Context, item.StorageKey, item.Title, c.Bool("preview"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, u)
	return nil
}

func zipFolder(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	e := fromContext(c)
	ns, err := e.namespace(c.Context)
	if err != nil {
		return err
	}
	folder, ok := ns.Get(c.Args().First())
	if !ok {
		return namespace.ErrNotFound
	}
	if !folder.IsFolder() {
		return namespace.ErrNotFolder
	}
	keys := ns.FileKeys(folder.ID)
	if len(keys) == 0 {
		return cli.Exit("zip: folder has no files", 1)
	}

	out := c.String("out")
	if out == "" {
		out = folder.Title + ".zip"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	failed, err := e.client.DownloadFolder(c.Context, folder.Title, keys, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%d of %d files)\n", out, len(keys)-len(failed), len(keys))
	for _, k := range failed {
		fmt.Fprintf(c.App.ErrWriter, "missing from archive: %s\n", k)
	}
	return nil
}

func showQuota(c *cli.Context) error {
	ns, err := fromContext(c).namespace(c.Context)
	if err != nil {
		return err
	}
	q := ns.Quota()
	used, usedUnit := domain.FormatSize(q.UsedBytes)
	limit, limitUnit := domain.FormatSize(q.LimitBytes)
	fmt.Fprintf(c.App.Writer, "%s %s of %s %s used (%s free)\n",
		used, usedUnit, limit, limitUnit, humanize.IBytes(uint64(q.AvailableBytes())))
	return nil
}

func watchTree(c *cli.Context) error {
	e := fromContext(c)
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var last domain.Snapshot
	ns, err := e.namespace(ctx, namespace.WithReloadHook(func(s domain.Snapshot) {
		if s.Usage == last.Usage && slices.Equal(s.Items, last.Items) {
			return
		}
		last = s
		fmt.Fprintf(c.App.Writer, "namespace changed: %d item(s), usage %s bytes\n", len(s.Items), s.Usage)
	}))
	if err != nil {
		return err
	}
	log.Info().Str("backend", e.cfg.Namespace.Backend).Msg("watching namespace")

	if err := ns.Watch(ctx, e.cfg.Namespace.PollInterval); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

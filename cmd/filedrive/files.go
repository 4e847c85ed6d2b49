package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/filedrive/filedrive/internal/drive"
	"github.com/filedrive/filedrive/pkg/bytesize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder]",
		Short: "List the contents of a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			folder := ""
			if len(args) > 0 {
				folder = args[0]
			}
			return a.list(ctx, folder)
		}),
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find files and folders whose name contains query",
		Args:  cobra.MinimumNArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			return a.search(ctx, strings.Join(args, " "))
		}),
	}
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-file> [remote-path]",
		Short: "Upload a file",
		Long: `Upload a local file. Without a remote path the file lands in the root
folder under its own name; a remote path ending in "/" names the target
folder. Use "-" to read from stdin (a remote file path is then required).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			remote := ""
			if len(args) > 1 {
				remote = args[1]
			}
			return a.put(ctx, args[0], remote)
		}),
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path> [local-file]",
		Short: "Download a file",
		Long:  `Download a file. The local name defaults to the remote file name; use "-" for stdout.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			local := ""
			if len(args) > 1 {
				local = args[1]
			}
			return a.get(ctx, args[0], local)
		}),
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <path>...",
		Aliases: []string{"delete"},
		Short:   "Delete files or folders (folders recursively)",
		Args:    cobra.MinimumNArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			return a.remove(ctx, args)
		}),
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <path> <new-name>",
		Aliases: []string{"rename"},
		Short:   "Rename a file or folder in place",
		Args:    cobra.ExactArgs(2),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			return a.rename(ctx, args[0], args[1])
		}),
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path> | mkdir <parent> <name>",
		Short: "Create a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			if len(args) == 2 {
				return a.mkdirIn(ctx, args[0], args[1])
			}
			return a.mkdir(ctx, args[0])
		}),
	}
}

func (a *app) list(ctx context.Context, folder string) error {
	entries, err := a.drive.List(ctx, a.tenant, folder)
	if err != nil {
		return err
	}

	crumbs := drive.Breadcrumbs(folder)
	trail := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		trail = append(trail, c.Name)
	}
	_, _ = fmt.Fprintln(a.out, strings.Join(trail, " / "))

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(a.out, "(empty)")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSIZE\tLAST MODIFIED")
	for _, e := range entries {
		if e.IsFolder {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\n", e.Name)
			continue
		}
		modified := "-"
		if !e.LastModified.IsZero() {
			modified = e.LastModified.Local().Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, bytesize.Format(e.Size), modified)
	}
	return w.Flush()
}

func (a *app) search(ctx context.Context, query string) error {
	results, err := a.drive.Search(ctx, a.tenant, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintln(a.out, "no matches")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tFOLDER\tTYPE")
	for _, r := range results {
		kind := "file"
		if r.IsFolder {
			kind = "folder"
		}
		folder := r.FolderPath
		if folder == "" {
			folder = drive.RootName
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, folder, kind)
	}
	return w.Flush()
}

func (a *app) put(ctx context.Context, local, remote string) error {
	src, size, err := openLocal(local)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if a.maxUpload > 0 && size > a.maxUpload {
		return fmt.Errorf("%s is %s, over the %s upload limit", local, bytesize.Format(size), bytesize.Format(a.maxUpload))
	}
	var body io.Reader = src
	if a.maxUpload > 0 && size < 0 {
		body = &limitedReader{r: src, remaining: a.maxUpload}
	}

	var stored string
	switch {
	case local == "-" && (remote == "" || strings.HasSuffix(remote, "/")):
		return errors.New("a remote file path is required when reading from stdin")
	case remote == "" || strings.HasSuffix(remote, "/"):
		stored, err = a.drive.UploadInto(ctx, a.tenant, remote, filepath.Base(local), body, size)
	default:
		stored, err = a.drive.Upload(ctx, a.tenant, remote, body, size)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.out, "uploaded %s\n", stored)
	return nil
}

// limitedReader fails once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errors.New("upload exceeds the configured size limit")
	}
	return n, err
}

func (a *app) get(ctx context.Context, remote, local string) error {
	rc, err := a.drive.Download(ctx, a.tenant, remote)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if local == "-" {
		_, err := io.Copy(a.out, rc)
		return err
	}
	if local == "" {
		local = path.Base(remote)
	}

	f, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}
	n, err := io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(local)
		return fmt.Errorf("write %s: %w", local, err)
	}

	_, _ = fmt.Fprintf(a.out, "downloaded %s (%s) to %s\n", remote, bytesize.Format(n), local)
	return nil
}

func (a *app) remove(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := a.drive.Delete(ctx, a.tenant, p); err != nil {
			errs = append(errs, err)
			continue
		}
		_, _ = fmt.Fprintf(a.out, "deleted %s\n", p)
	}
	return errors.Join(errs...)
}

func (a *app) rename(ctx context.Context, from, newName string) error {
	err := a.drive.Rename(ctx, a.tenant, from, newName)
	var rerr *drive.RenameError
	if errors.As(err, &rerr) && rerr.Stage == drive.RenameStageDelete {
		log.Warn().Str("from", rerr.From).Str("to", rerr.To).
			Msg("copy succeeded but the original could not be removed; both now exist")
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.out, "renamed %s to %s\n", from, newName)
	return nil
}

func (a *app) mkdir(ctx context.Context, folder string) error {
	if err := a.drive.CreateFolder(ctx, a.tenant, folder); err != nil {
		return err
	}
	created, _ := drive.FolderPath(folder)
	_, _ = fmt.Fprintf(a.out, "created %s\n", created)
	return nil
}

func (a *app) mkdirIn(ctx context.Context, parent, name string) error {
	created, err := a.drive.CreateFolderIn(ctx, a.tenant, parent, name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "created %s\n", created)
	return nil
}

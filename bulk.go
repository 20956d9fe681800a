package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivebox/internal/provider"
	"github.com/tonimelisma/drivebox/internal/selection"
)

// stdoutTarget selects standard output as the archive destination.
const stdoutTarget = "-"

var errTerminalOutput = errors.New("refusing to write a zip archive to a terminal, redirect stdout or use --output <file>")

func newBulkGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk-get <provider> [id|path...]",
		Short: "Download several files as one zip archive",
		Long: `Download files from Google Drive or Dropbox as a single zip archive.

The provider is listed first (the listing flags match 'drivebox ls'); each
given ID (Google Drive) or lower-case path (Dropbox) must appear in that
listing. Without IDs every listed file is selected. Folders are never
selected. The archive is written to <provider>-files.zip unless --output
names another file, or "-" for standard output.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBulkGet,
	}

	addListFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "archive path, or - for stdout")

	return cmd
}

// selectableFiles turns a listing into the selection manager's input.
// Folders are dropped.
func selectableFiles(entries []entry) []selection.File {
	out := make([]selection.File, 0, len(entries))

	for _, e := range entries {
		if e.IsFolder {
			continue
		}

		out = append(out, selection.File{ID: e.ID, Name: e.Name})
	}

	return out
}

// selectFiles records listing and selects ids from it, or all of it when
// ids is empty.
func selectFiles(m *selection.Manager, pid provider.ID, listing []selection.File, ids []string) error {
	if len(ids) == 0 {
		return m.SelectAll(pid, listing)
	}

	if err := m.SetListing(pid, listing); err != nil {
		return err
	}

	names := make(map[string]string, len(listing))
	for _, f := range listing {
		names[f.ID] = f.Name
	}

	for _, id := range ids {
		if m.IsSelected(pid, id) {
			continue
		}

		if _, err := m.Toggle(pid, selection.File{ID: id, Name: names[id]}); err != nil {
			return err
		}
	}

	return nil
}

func runBulkGet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	if output == stdoutTarget {
		if f, ok := cc.Stdout.(*os.File); ok && isTerminal(f) {
			return errTerminalOutput
		}
	}

	opts, err := listOptionsFrom(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	p, err := connectedProvider(a, args[0])
	if err != nil {
		return err
	}

	if !p.SupportsBulk() {
		return fmt.Errorf("%w: %s", selection.ErrBulkUnsupported, p)
	}

	entries, err := listProvider(ctx, a.client, p, opts)
	if err != nil {
		return err
	}

	if err := selectFiles(a.selections, p, selectableFiles(entries), args[1:]); err != nil {
		return err
	}

	cc.Statusf("Downloading %d file(s) from %s\n", a.selections.Len(p), p.DisplayName())

	var archive *selection.Archive

	write := func(w io.Writer) (int64, error) {
		var bulkErr error

		archive, bulkErr = a.selections.BulkAction(ctx, p, w)
		if bulkErr != nil {
			return 0, bulkErr
		}

		return archive.Bytes, nil
	}

	if output == stdoutTarget {
		if _, err := write(cc.Stdout); err != nil {
			return err
		}
	} else {
		if output == "" {
			output = selection.ArchiveName(p)
		}

		if _, err := downloadToFile(output, write); err != nil {
			return err
		}
	}

	cc.Statusf("Saved %d file(s) to %s (%s)\n", archive.Files, archiveTarget(output), formatSize(archive.Bytes))

	return nil
}

func archiveTarget(output string) string {
	if output == stdoutTarget {
		return "stdout"
	}

	return output
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/provider"
)

// googleFolderMime marks a Google Drive folder.
const googleFolderMime = "application/vnd.google-apps.folder"

// errNoFileTransfer is returned for file operations GitHub does not offer.
var errNoFileTransfer = errors.New("GitHub repositories are browse-only, use 'drivebox ls github <owner>/<repo>'")

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [provider] [path]",
		Short: "List files, folders and repositories",
		Long: `List the contents of a connected provider.

Without a provider, the root of every connected provider is listed. For Google
Drive the path is ignored and --limit/--offset/--sort/--order page the listing.
For Dropbox the path is a folder path. For GitHub an empty path lists
repositories and "<owner>/<repo>[/<dir>]" lists repository contents.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runLs,
	}

	addListFlags(cmd)

	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <provider> <id|path|owner/repo>",
		Short: "Display file, folder or repository metadata",
		Args:  cobra.ExactArgs(2),
		RunE:  runStat,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <provider> <id|path> [local-path]",
		Short: "Download a file",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runGet,
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <provider> <local-path> [remote-path]",
		Short: "Upload a file",
		Long: `Upload a file to Google Drive or Dropbox.

For Dropbox the remote path defaults to the root; a remote path ending in "/"
is a folder the file is placed in. For Google Drive the remote path is ignored;
use --parent and --description instead.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runPut,
	}

	cmd.Flags().StringSlice("parent", nil, "Google Drive parent folder ID (repeatable)")
	cmd.Flags().String("description", "", "Google Drive file description")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a Dropbox folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a Dropbox file or folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runRm,
	}
}

func newReposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List GitHub repositories",
		Args:  cobra.NoArgs,
		RunE:  runRepos,
	}

	cmd.Flags().Int("limit", 0, "maximum number of repositories")
	cmd.Flags().Int("offset", 0, "number of repositories to skip")

	return cmd
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 0, "maximum number of entries (Google Drive, GitHub)")
	cmd.Flags().Int("offset", 0, "number of entries to skip (Google Drive, GitHub)")
	cmd.Flags().String("sort", "", "sort field (Google Drive)")
	cmd.Flags().String("order", "", "sort order, asc or desc (Google Drive)")
	cmd.Flags().BoolP("recursive", "r", false, "list sub-folders too (Dropbox)")
}

// listOptions collects the listing flags of ls and bulk-get.
type listOptions struct {
	Path      string
	Recursive bool
	Page      api.ListOptions
}

func listOptionsFrom(cmd *cobra.Command) (listOptions, error) {
	var (
		opts listOptions
		err  error
	)

	f := cmd.Flags()

	if opts.Page.Limit, err = f.GetInt("limit"); err != nil {
		return opts, err
	}

	if opts.Page.Offset, err = f.GetInt("offset"); err != nil {
		return opts, err
	}

	if opts.Page.Sort, err = f.GetString("sort"); err != nil {
		return opts, err
	}

	if opts.Page.Order, err = f.GetString("order"); err != nil {
		return opts, err
	}

	if opts.Recursive, err = f.GetBool("recursive"); err != nil {
		return opts, err
	}

	return opts, nil
}

// entry is one listed file, folder or repository, whatever its provider.
type entry struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	IsFolder bool   `json:"is_folder"`
	Modified string `json:"modified,omitempty"`
}

func googleEntry(f *api.FileInfo) entry {
	return entry{
		Provider: provider.Google.String(),
		ID:       f.ID,
		Name:     f.Name,
		Size:     int64(f.Size),
		IsFolder: f.MimeType == googleFolderMime,
		Modified: f.ModifiedTime,
	}
}

func dropboxEntry(f *api.DropboxFile) entry {
	return entry{
		Provider: provider.Dropbox.String(),
		ID:       f.PathLower,
		Name:     f.Name,
		Size:     int64(f.Size),
		Modified: f.ClientModified,
	}
}

func repositoryEntry(r *api.Repository) entry {
	name := r.FullName
	if name == "" {
		name = r.Name
	}

	return entry{
		Provider: provider.GitHub.String(),
		ID:       r.ID.String(),
		Name:     name,
		IsFolder: true,
		Modified: r.UpdatedAt,
	}
}

// githubContent is the subset of GitHub's contents payload shown by ls.
type githubContent struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// decodeContents accepts both shapes GitHub returns: an array for a
// directory and a single object for a file.
func decodeContents(raw json.RawMessage) ([]githubContent, error) {
	var list []githubContent
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var one githubContent
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decoding repository contents: %w", err)
	}

	return []githubContent{one}, nil
}

// splitRepoPath splits "owner/repo/dir/sub" into owner, repo and "dir/sub".
func splitRepoPath(p string) (owner, repo, rest string, err error) {
	parts := strings.SplitN(strings.Trim(p, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("expected <owner>/<repo>[/<path>], got %q", p)
	}

	if len(parts) == 3 {
		rest = parts[2]
	}

	return parts[0], parts[1], rest, nil
}

// listProvider lists one provider.
func listProvider(ctx context.Context, client *api.Client, p provider.ID, opts listOptions) ([]entry, error) {
	switch p {
	case provider.Google:
		files, err := client.GoogleFiles(ctx, opts.Page)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", p.DisplayName(), err)
		}

		out := make([]entry, 0, len(files))
		for i := range files {
			out = append(out, googleEntry(&files[i]))
		}

		return out, nil

	case provider.Dropbox:
		files, err := client.DropboxFiles(ctx, opts.Path, opts.Recursive)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", p.DisplayName(), err)
		}

		out := make([]entry, 0, len(files))
		for i := range files {
			out = append(out, dropboxEntry(&files[i]))
		}

		return out, nil

	case provider.GitHub:
		if strings.Trim(opts.Path, "/") != "" {
			return listRepository(ctx, client, opts.Path)
		}

		repos, err := client.Repositories(ctx, opts.Page.Limit, opts.Page.Offset)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", p.DisplayName(), err)
		}

		out := make([]entry, 0, len(repos))
		for i := range repos {
			out = append(out, repositoryEntry(&repos[i]))
		}

		return out, nil

	default:
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupported, p.String())
	}
}

func listRepository(ctx context.Context, client *api.Client, repoPath string) ([]entry, error) {
	owner, repo, rest, err := splitRepoPath(repoPath)
	if err != nil {
		return nil, err
	}

	raw, err := client.Contents(ctx, owner, repo, rest)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s: %w", owner, repo, err)
	}

	contents, err := decodeContents(raw)
	if err != nil {
		return nil, err
	}

	out := make([]entry, 0, len(contents))
	for _, c := range contents {
		out = append(out, entry{
			Provider: provider.GitHub.String(),
			ID:       c.Path,
			Name:     c.Name,
			Size:     c.Size,
			IsFolder: c.Type == "dir",
		})
	}

	return out, nil
}

// listConnected lists the root of every given provider concurrently. Results
// keep the order of providers.
func listConnected(ctx context.Context, client *api.Client, providers []provider.ID, opts listOptions) ([]entry, error) {
	results := make([][]entry, len(providers))

	g, gctx := errgroup.WithContext(ctx)

	for i, p := range providers {
		g.Go(func() error {
			entries, err := listProvider(gctx, client, p, opts)
			if err != nil {
				return err
			}

			results[i] = entries

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []entry
	for _, r := range results {
		out = append(out, r...)
	}

	return out, nil
}

func runLs(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

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

	var entries []entry

	if len(args) == 0 {
		entries, err = listConnected(ctx, a.client, a.registry.Providers(), opts)
	} else {
		p, parseErr := connectedProvider(a, args[0])
		if parseErr != nil {
			return parseErr
		}

		if len(args) > 1 {
			opts.Path = args[1]
		}

		cc.Logger.Debug("ls", "provider", p.String(), "path", opts.Path)
		entries, err = listProvider(ctx, a.client, p, opts)
	}

	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, entries)
	}

	printEntriesTable(cc.Stdout, entries, len(args) == 0)

	return nil
}

// connectedProvider parses raw and checks the provider is on the roster.
func connectedProvider(a *app, raw string) (provider.ID, error) {
	p, err := provider.Parse(raw)
	if err != nil {
		return "", err
	}

	if !a.registry.Connected(p) {
		return "", fmt.Errorf("%s is not connected, run 'drivebox login %s'", p.DisplayName(), p)
	}

	return p, nil
}

// sortEntries orders entries by provider (first appearance), then folders
// first, then name.
func sortEntries(entries []entry) []entry {
	rank := make(map[string]int)
	for _, e := range entries {
		if _, ok := rank[e.Provider]; !ok {
			rank[e.Provider] = len(rank)
		}
	}

	sorted := make([]entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		if rank[a.Provider] != rank[b.Provider] {
			return rank[a.Provider] < rank[b.Provider]
		}

		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}

		return a.Name < b.Name
	})

	return sorted
}

func printEntriesTable(w io.Writer, entries []entry, withProvider bool) {
	headers := []string{"NAME", "SIZE", "MODIFIED", "ID"}
	if withProvider {
		headers = append([]string{"PROVIDER"}, headers...)
	}

	rows := make([][]string, 0, len(entries))

	for _, e := range sortEntries(entries) {
		name := e.Name
		size := formatSize(e.Size)

		if e.IsFolder {
			name += "/"
			size = "-"
		}

		row := []string{name, size, formatTimestamp(e.Modified), e.ID}
		if withProvider {
			row = append([]string{e.Provider}, row...)
		}

		rows = append(rows, row)
	}

	printTable(w, headers, rows)
}

func runStat(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

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

	target := args[1]

	var out any

	switch p {
	case provider.Google:
		out, err = a.client.GoogleFile(ctx, target)
	case provider.Dropbox:
		out, err = a.client.DropboxMetadata(ctx, target)
	case provider.GitHub:
		owner, repo, _, splitErr := splitRepoPath(target)
		if splitErr != nil {
			return splitErr
		}

		out, err = a.client.Repository(ctx, owner, repo)
	}

	if err != nil {
		return fmt.Errorf("resolving %q: %w", target, err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, out)
	}

	printStatText(cc.Stdout, out)

	return nil
}

func printStatText(w io.Writer, v any) {
	switch item := v.(type) {
	case *api.FileInfo:
		fmt.Fprintf(w, "Name:     %s\n", item.Name)
		fmt.Fprintf(w, "Size:     %s (%d bytes)\n", formatSize(int64(item.Size)), item.Size)
		fmt.Fprintf(w, "MIME:     %s\n", item.MimeType)
		fmt.Fprintf(w, "Modified: %s\n", formatTimestamp(item.ModifiedTime))
		fmt.Fprintf(w, "Created:  %s\n", formatTimestamp(item.CreatedTime))
		fmt.Fprintf(w, "ID:       %s\n", item.ID)

		if item.WebViewLink != "" {
			fmt.Fprintf(w, "Link:     %s\n", item.WebViewLink)
		}

	case *api.DropboxFile:
		fmt.Fprintf(w, "Name:     %s\n", item.Name)
		fmt.Fprintf(w, "Path:     %s\n", item.PathLower)
		fmt.Fprintf(w, "Size:     %s (%d bytes)\n", formatSize(int64(item.Size)), item.Size)
		fmt.Fprintf(w, "Modified: %s\n", formatTimestamp(item.ClientModified))

	case *api.Repository:
		visibility := "public"
		if item.Private {
			visibility = "private"
		}

		fmt.Fprintf(w, "Name:     %s\n", item.FullName)
		fmt.Fprintf(w, "Type:     %s repository\n", visibility)

		if item.Description != "" {
			fmt.Fprintf(w, "About:    %s\n", item.Description)
		}

		if item.Language != "" {
			fmt.Fprintf(w, "Language: %s\n", item.Language)
		}

		fmt.Fprintf(w, "Updated:  %s\n", formatTimestamp(item.UpdatedAt))
		fmt.Fprintf(w, "URL:      %s\n", item.HTMLURL)
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

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

	target := args[1]

	var (
		name     string
		download func(io.Writer) (int64, error)
	)

	switch p {
	case provider.Google:
		info, infoErr := a.client.GoogleFile(ctx, target)
		if infoErr != nil {
			return fmt.Errorf("resolving %q: %w", target, infoErr)
		}

		if info.MimeType == googleFolderMime {
			return fmt.Errorf("%q is a folder, not a file", info.Name)
		}

		name = info.Name
		download = func(w io.Writer) (int64, error) { return a.client.DownloadGoogleFile(ctx, target, w) }
	case provider.Dropbox:
		name = path.Base(target)
		download = func(w io.Writer) (int64, error) { return a.client.DownloadDropboxFile(ctx, target, w) }
	default:
		return errNoFileTransfer
	}

	localPath := filepath.Base(name)
	if len(args) > 2 {
		localPath = args[2]
	}

	cc.Logger.Debug("get", "provider", p.String(), "target", target, "local_path", localPath)

	n, err := downloadToFile(localPath, download)
	if err != nil {
		return err
	}

	cc.Statusf("Downloaded %s (%s)\n", localPath, formatSize(n))

	return nil
}

// downloadToFile writes through a .partial file and renames it into place,
// so an interrupted download never leaves a truncated file at localPath.
func downloadToFile(localPath string, download func(io.Writer) (int64, error)) (int64, error) {
	partialPath := localPath + ".partial"

	f, err := os.Create(partialPath)
	if err != nil {
		return 0, fmt.Errorf("creating %q: %w", partialPath, err)
	}

	n, err := download(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(partialPath)

		return 0, fmt.Errorf("downloading to %q: %w", localPath, err)
	}

	if err := os.Rename(partialPath, localPath); err != nil {
		return 0, fmt.Errorf("renaming download to %q: %w", localPath, err)
	}

	return n, nil
}

// dropboxUploadPath resolves the Dropbox destination for a local file. An
// empty remote or one ending in "/" names a folder.
func dropboxUploadPath(remote, localPath string) string {
	name := filepath.Base(localPath)
	trimmed := strings.TrimLeft(remote, "/")

	if trimmed == "" {
		return "/" + name
	}

	if strings.HasSuffix(trimmed, "/") {
		return "/" + trimmed + name
	}

	return "/" + trimmed
}

func runPut(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	localPath := args[1]

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %q: %w", localPath, err)
	}
	defer f.Close()

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

	var uploaded entry

	switch p {
	case provider.Google:
		parents, flagErr := cmd.Flags().GetStringSlice("parent")
		if flagErr != nil {
			return flagErr
		}

		description, flagErr := cmd.Flags().GetString("description")
		if flagErr != nil {
			return flagErr
		}

		info, upErr := a.client.UploadGoogleFile(ctx, filepath.Base(localPath), f, api.UploadOptions{
			Parents:     parents,
			Description: description,
		})
		if upErr != nil {
			return fmt.Errorf("uploading %q: %w", localPath, upErr)
		}

		uploaded = googleEntry(info)
	case provider.Dropbox:
		remote := ""
		if len(args) > 2 {
			remote = args[2]
		}

		dest := dropboxUploadPath(remote, localPath)

		info, upErr := a.client.UploadDropboxFile(ctx, dest, filepath.Base(localPath), f)
		if upErr != nil {
			return fmt.Errorf("uploading %q to %s: %w", localPath, dest, upErr)
		}

		uploaded = dropboxEntry(info)
	default:
		return errNoFileTransfer
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, uploaded)
	}

	cc.Statusf("Uploaded %s to %s (%s)\n", localPath, p.DisplayName(), uploaded.ID)

	return nil
}

func runMkdir(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	remotePath := "/" + strings.Trim(args[0], "/")
	if remotePath == "/" {
		return fmt.Errorf("cannot create root folder")
	}

	a, err := newApp(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	if _, err := connectedProvider(a, provider.Dropbox.String()); err != nil {
		return err
	}

	folder, err := a.client.CreateDropboxFolder(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("creating folder %q: %w", remotePath, err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, folder)
	}

	cc.Statusf("Created %s\n", folder.Path)

	return nil
}

// rmJSONOutput is the JSON output schema for the rm command.
type rmJSONOutput struct {
	Deleted string `json:"deleted"`
	Message string `json:"message,omitempty"`
}

func runRm(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	remotePath := "/" + strings.Trim(args[0], "/")
	if remotePath == "/" {
		return fmt.Errorf("refusing to delete the Dropbox root")
	}

	a, err := newApp(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	if _, err := connectedProvider(a, provider.Dropbox.String()); err != nil {
		return err
	}

	msg, err := a.client.DeleteDropboxFile(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("deleting %q: %w", remotePath, err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, rmJSONOutput{Deleted: remotePath, Message: msg})
	}

	cc.Statusf("Deleted %s\n", remotePath)

	return nil
}

func runRepos(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	offset, err := cmd.Flags().GetInt("offset")
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

	if _, err := connectedProvider(a, provider.GitHub.String()); err != nil {
		return err
	}

	repos, err := a.client.Repositories(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("listing repositories: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, repos)
	}

	printReposTable(cc.Stdout, repos)

	return nil
}

func printReposTable(w io.Writer, repos []api.Repository) {
	rows := make([][]string, 0, len(repos))

	for i := range repos {
		r := &repos[i]

		visibility := "public"
		if r.Private {
			visibility = "private"
		}

		rows = append(rows, []string{r.FullName, visibility, r.Language, formatTimestamp(r.UpdatedAt)})
	}

	printTable(w, []string{"REPOSITORY", "VISIBILITY", "LANGUAGE", "UPDATED"}, rows)
}

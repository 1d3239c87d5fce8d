package cli

import (
	"fmt"
	"strconv"

	uitable "github.com/cppforlife/go-cli-ui/ui/table"
	"github.com/spf13/cobra"

	"github.com/atinyakov/HubViewer/internal/client"
	"github.com/atinyakov/HubViewer/internal/client/storage"
	"github.com/atinyakov/HubViewer/internal/models"
)

// Tables whose columns can be hidden with "config column".
const (
	ReposTable = "repositories"
	TagsTable  = "tags"
)

// column is one optional table column.
type column[T any] struct {
	key   string
	title string
	value func(T) string
}

var repoColumns = []column[models.Repository]{
	{"name", "Name", func(r models.Repository) string { return r.Name }},
	{"description", "Description", func(r models.Repository) string { return r.Description }},
	{"private", "Private", func(r models.Repository) string { return strconv.FormatBool(r.IsPrivate) }},
	{"stars", "Stars", func(r models.Repository) string { return strconv.Itoa(r.StarCount) }},
	{"pulls", "Pulls", func(r models.Repository) string { return strconv.FormatInt(r.PullCount, 10) }},
	{"updated", "Last updated", func(r models.Repository) string { return r.LastUpdated }},
}

var tagColumns = []column[models.Tag]{
	{"name", "Tag", func(t models.Tag) string { return t.Name }},
	{"size", "Size", func(t models.Tag) string { return humanSize(t.FullSize) }},
	{"pushed", "Last pushed", func(t models.Tag) string { return t.TagLastPushed }},
	{"digest", "Digest", func(t models.Tag) string { return t.Digest }},
}

// ColumnKeys returns the column keys of table, or nil for an unknown table.
func ColumnKeys(table string) []string {
	var keys []string
	switch table {
	case ReposTable:
		for _, c := range repoColumns {
			keys = append(keys, c.key)
		}
	case TagsTable:
		for _, c := range tagColumns {
			keys = append(keys, c.key)
		}
	}
	return keys
}

func buildTable[T any](cfg storage.Config, name string, cols []column[T], rows []T) uitable.Table {
	var visible []column[T]
	for _, c := range cols {
		if cfg.ColumnVisible(name, c.key) {
			visible = append(visible, c)
		}
	}

	table := uitable.Table{Content: name}
	for _, c := range visible {
		table.Header = append(table.Header, uitable.NewHeader(c.title))
	}
	for _, row := range rows {
		values := make([]uitable.Value, 0, len(visible))
		for _, c := range visible {
			values = append(values, uitable.NewValueString(c.value(row)))
		}
		table.Rows = append(table.Rows, values)
	}
	return table
}

// NewReposCmd lists every repository of the active account's organization.
func NewReposCmd(o *Options) *cobra.Command {
	var opts client.RepositoryOptions
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.newClient(true)
			if err != nil {
				return err
			}
			listing, err := c.Repositories(cmd.Context(), opts)
			if err != nil {
				return err
			}
			table := buildTable(o.store.Config(), ReposTable, repoColumns, listing.Results)
			table.Print(cmd.OutOrStdout())
			if len(listing.Results) < listing.Count {
				fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d repositories\n", len(listing.Results), listing.Count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Ordering, "ordering", "", "sort key, e.g. last_updated or -name")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only repositories whose name contains this")
	return cmd
}

// NewTagsCmd lists one page of tags of a repository.
func NewTagsCmd(o *Options) *cobra.Command {
	var opts client.TagOptions
	cmd := &cobra.Command{
		Use:   "tags <repository>",
		Short: "List tags of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.newClient(true)
			if err != nil {
				return err
			}
			page, err := c.Tags(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			table := buildTable(o.store.Config(), TagsTable, tagColumns, page.Results)
			table.Print(cmd.OutOrStdout())
			if page.Next {
				fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d tags, more with --page %d\n", page.Page, page.Count, page.Page+1)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", client.DefaultPage, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", client.DefaultPageSize, "tags per page")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only tags whose name contains this")
	cmd.Flags().StringVar(&opts.Ordering, "ordering", "", "sort key, e.g. last_updated or name")
	return cmd
}

// NewTagCmd shows one tag and the command that pulls it.
func NewTagCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <repository> <tag>",
		Short: "Show a tag and its pull command",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.newClient(true)
			if err != nil {
				return err
			}
			acc, _ := o.store.Config().ActiveAccount()

			tag, err := c.TagDetails(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			pull, err := client.PullCommand(acc.Organization, args[0], tag.Name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tag:         %s\n", tag.Name)
			fmt.Fprintf(out, "Size:        %s\n", humanSize(tag.FullSize))
			fmt.Fprintf(out, "Last pushed: %s\n", tag.TagLastPushed)
			fmt.Fprintf(out, "Digest:      %s\n", tag.Digest)

			images := uitable.Table{
				Content: "images",
				Header: []uitable.Header{
					uitable.NewHeader("OS/Arch"),
					uitable.NewHeader("Size"),
					uitable.NewHeader("Digest"),
				},
			}
			for _, img := range tag.Images {
				platform := img.OS + "/" + img.Architecture
				if img.Variant != nil && *img.Variant != "" {
					platform += "/" + *img.Variant
				}
				images.Rows = append(images.Rows, []uitable.Value{
					uitable.NewValueString(platform),
					uitable.NewValueString(humanSize(img.Size)),
					uitable.NewValueString(img.Digest),
				})
			}
			fmt.Fprintln(out)
			images.Print(out)
			fmt.Fprintln(out)
			fmt.Fprintln(out, pull)
			return nil
		},
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

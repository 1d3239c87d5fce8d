package cli

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/atinyakov/HubViewer/internal/client/storage"
)

// NewConfigCmd groups the preference commands.
func NewConfigCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printConfig(cmd.OutOrStdout(), o.store.Config())
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "theme <light|dark|system>",
			Short: "Set the color theme",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := o.store.SetTheme(cmd.Context(), storage.Theme(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", cfg.Theme)
				return nil
			},
		},
		&cobra.Command{
			Use:   "language <es|en>",
			Short: "Set the interface language",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := o.store.SetLanguage(cmd.Context(), storage.Language(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Language set to %s\n", cfg.Language)
				return nil
			},
		},
		&cobra.Command{
			Use:   "column <table> <column> <true|false>",
			Short: "Show or hide a table column",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				table, column := args[0], args[1]
				keys := ColumnKeys(table)
				if keys == nil {
					return fmt.Errorf("unknown table %q, must be %s or %s", table, ReposTable, TagsTable)
				}
				if !slices.Contains(keys, column) {
					return fmt.Errorf("unknown column %q of %s, must be one of %v", column, table, keys)
				}
				visible, err := strconv.ParseBool(args[2])
				if err != nil {
					return fmt.Errorf("invalid visibility %q: %w", args[2], err)
				}
				if _, err := o.store.SetColumnVisible(cmd.Context(), table, column, visible); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Column %s.%s visible: %t\n", table, column, visible)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore default preferences and forget all accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := o.store.Reset(cmd.Context())
				if err != nil {
					return err
				}
				printConfig(cmd.OutOrStdout(), cfg)
				return nil
			},
		},
	)
	return cmd
}

func printConfig(w io.Writer, cfg storage.Config) {
	fmt.Fprintf(w, "theme:    %s\n", cfg.Theme)
	fmt.Fprintf(w, "language: %s\n", cfg.Language)
	fmt.Fprintf(w, "accounts: %d\n", len(cfg.Accounts))

	tables := make([]string, 0, len(cfg.Columns))
	for t := range cfg.Columns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		for _, key := range ColumnKeys(t) {
			if !cfg.ColumnVisible(t, key) {
				fmt.Fprintf(w, "hidden:   %s.%s\n", t, key)
			}
		}
	}
}

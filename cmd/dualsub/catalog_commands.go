package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dualsub/internal/catalog"
	"dualsub/internal/daemonrun"
	"dualsub/internal/logging"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var token string

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the media catalog",
	}
	catalogCmd.PersistentFlags().StringVar(&token, "token", "", "Catalog token (defaults to plex.token)")

	open := func() (catalog.Catalog, string, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, "", err
		}
		cat, _, err := daemonrun.BuildCatalog(cfg, logging.NewNop())
		if err != nil {
			return nil, "", err
		}
		t := strings.TrimSpace(token)
		if t == "" {
			t = cfg.Plex.Token
		}
		return cat, t, nil
	}

	catalogCmd.AddCommand(&cobra.Command{
		Use:   "libraries",
		Short: "List catalog libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, t, err := open()
			if err != nil {
				return err
			}
			libs, err := cat.Libraries(cmd.Context(), t)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, libs)
			}
			rows := make([][]string, 0, len(libs))
			for _, lib := range libs {
				rows = append(rows, []string{lib.ID, lib.Title, lib.Type})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{{header: "ID"}, {header: "Title", maxWidth: 48}, {header: "Type"}}, rows))
			return nil
		},
	})

	catalogCmd.AddCommand(&cobra.Command{
		Use:   "episodes <show-id>",
		Short: "List a show's episodes with their subtitle languages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, t, err := open()
			if err != nil {
				return err
			}
			items, err := cat.Episodes(cmd.Context(), t, args[0])
			if err != nil {
				return err
			}
			return printItems(cmd, ctx, items)
		},
	})

	catalogCmd.AddCommand(&cobra.Command{
		Use:   "movies <library-id>",
		Short: "List a movie library with subtitle languages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, t, err := open()
			if err != nil {
				return err
			}
			items, err := cat.Movies(cmd.Context(), t, args[0])
			if err != nil {
				return err
			}
			return printItems(cmd, ctx, items)
		},
	})

	return catalogCmd
}

func printItems(cmd *cobra.Command, ctx *commandContext, items []catalog.Item) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No items")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(itemColumns, buildItemRows(items)))
	return nil
}

var itemColumns = []column{
	{header: "ID"},
	{header: "Item", maxWidth: 48},
	{header: "External", right: true},
	{header: "Embedded", right: true},
	{header: "Languages", maxWidth: 40},
}

func buildItemRows(items []catalog.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		langs := it.Languages()
		display := "-"
		if len(langs) > 0 {
			display = strings.Join(langs, ", ")
		}
		rows = append(rows, []string{
			it.ID,
			it.Label(),
			strconv.Itoa(len(it.External)),
			strconv.Itoa(len(it.Embedded)),
			display,
		})
	}
	return rows
}

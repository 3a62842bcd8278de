package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
)

func searchCmd() *cobra.Command {
	var (
		opts        search.Options
		offline     bool
		recordsFile string
	)
	c := &cobra.Command{
		Use:   "search <query>",
		Short: "Refresh from the catalog and print ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cat, err := bootstrap.LoadCatalog(cfg, log)
			if err != nil {
				return err
			}
			if offline {
				cat = cat.StaticOnly()
			}
			comps, err := bootstrap.NewComponentsWithCatalog(cfg, cat, log)
			if err != nil {
				return err
			}
			if _, err = comps.Service.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			if recordsFile != "" {
				if err = submitFile(comps, recordsFile); err != nil {
					return err
				}
			}

			query := strings.Join(args, " ")
			renderResults(cmd.OutOrStdout(), comps.Service.Search(cmd.Context(), query, opts))
			return nil
		},
	}
	c.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (default from config)")
	c.Flags().StringVar(&opts.Category, "category", "", "only this category (dataset, api, document, section, custom)")
	c.Flags().StringVar(&opts.Source, "source", "", "only this source")
	c.Flags().StringVar(&opts.Type, "type", "", "only this type")
	c.Flags().BoolVar(&offline, "offline", false, "index only the static catalog entries, without crawling or harvesting")
	c.Flags().StringVar(&recordsFile, "records", "", "JSON file with an array of extra records to submit before searching")
	return c
}

func submitFile(comps *bootstrap.Components, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	var raws []map[string]any
	if err = json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("parse records: %w", err)
	}
	for i, raw := range raws {
		if _, err = comps.Service.Submit(raw); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func renderResults(w io.Writer, resp search.Response) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Style().Options.SeparateRows = true
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: titleWidth},
		{Number: 6, WidthMax: previewWidth},
	})
	t.AppendHeader(table.Row{"#", "Score", "Strategy", "Title", "Category", "Source"})

	for i, r := range resp.Results {
		b := r.Record.Base()
		t.AppendRow(table.Row{i + 1, fmt.Sprintf("%.1f", r.Relevance), r.SearchType, b.Title, r.Category, b.Source})
	}
	t.AppendFooter(table.Row{"Total", resp.Total, "", fmt.Sprintf("Query: %s", resp.Query), "", fmt.Sprintf("%dms", resp.TookMs)})

	fmt.Fprintf(w, "\nSearch Results:\n")
	t.Render()
	for _, s := range resp.Suggestions {
		fmt.Fprintf(w, "  * %s\n", s)
	}
}

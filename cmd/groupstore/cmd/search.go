package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/types"
)

var storeName string

var searchCmd = &cobra.Command{
	Use:   "search GROUP [QUERY]",
	Short: "Search a record group with a query string",
	Example: `  groupstore search Users 'Status=Active&OrderBy=Name&LimitBy=10'
  groupstore search Users 'Search=ann'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSearch,
}

var countCmd = &cobra.Command{
	Use:   "count GROUP [QUERY]",
	Short: "Count the records of a group matching a query string",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(searchCmd, countCmd)
	for _, c := range []*cobra.Command{searchCmd, countCmd} {
		c.Flags().StringVar(&storeName, "store", "", "storage name (default storage when empty)")
	}
}

func queryArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.stores.Close()

	ep, err := rt.service.Endpoint(ctx, storeName, args[0], nil)
	if err != nil {
		return err
	}

	resp := ep.Pull(ctx, api.Request{Query: queryArg(args)})
	if resp.Outcome != api.OK {
		return fmt.Errorf("search failed: %s: %v", resp.Outcome, resp.Payload)
	}

	var rows []types.Record
	switch payload := resp.Payload.(type) {
	case api.SearchResult:
		rows = payload.Items
		defer fmt.Fprintf(cmd.OutOrStdout(), "%d of %d records\n", len(rows), payload.Total)
	case []types.Record:
		rows = payload
	}

	conn, err := rt.stores.Get(ctx, storeName, nil)
	if err != nil {
		return err
	}
	g, err := rt.groups.Get(conn, args[0])
	if err != nil {
		return err
	}
	renderRecords(cmd, rows, g.Schema().IDField)
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.stores.Close()

	conn, err := rt.stores.Get(ctx, storeName, nil)
	if err != nil {
		return err
	}
	g, err := rt.groups.Get(conn, args[0])
	if err != nil {
		return err
	}

	params, err := filter.ParseParams(queryArg(args), g.Schema().SearchFields)
	if err != nil {
		return err
	}
	total, err := g.Count(ctx, params.Filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), total)
	return nil
}

// renderRecords prints rows as a table with idField first and the
// remaining columns sorted.
func renderRecords(cmd *cobra.Command, rows []types.Record, idField string) {
	seen := map[string]bool{idField: true}
	var rest []string
	for _, row := range rows {
		for field := range row {
			if !seen[field] {
				seen[field] = true
				rest = append(rest, field)
			}
		}
	}
	sort.Strings(rest)
	cols := append([]string{idField}, rest...)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(cols)
	for _, row := range rows {
		line := make([]string, len(cols))
		for i, col := range cols {
			if v, ok := row[col]; ok && v != nil {
				line[i] = fmt.Sprint(v)
			}
		}
		table.Append(line)
	}
	table.Render()
}

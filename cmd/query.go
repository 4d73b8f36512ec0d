// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/backend"
)

var (
	queryAll    bool
	queryFormat string
)

// queryCmd runs a SOQL query and prints the records.
var queryCmd = &cobra.Command{
	Use:   "query <soql>",
	Short: "Run a SOQL query",
	Long: `The query command runs a SOQL query through the REST API. Only the first page
of records is returned unless --all is given, in which case every page is
fetched and concatenated.`,
	Example: `  sfkit query "SELECT Id, Name FROM Account LIMIT 10"
  sfkit query --all --format table "SELECT Id, Email FROM Contact"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := openTransport()
		if err != nil {
			return err
		}
		res, err := backend.New(tr).Query(cmd.Context(), args[0], queryAll)
		if err != nil {
			return networkError(err, "running the query", tr.Session().InstanceURL)
		}
		switch queryFormat {
		case "table":
			return renderRecords(res)
		default:
			return writeJSON(os.Stdout, res)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryAll, "all", false, "Fetch every page of results")
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "Output format: json or table")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRecords prints records as a table. Columns are the union of the
// record keys, sorted, without the "attributes" envelope.
func renderRecords(res *backend.QueryResult) error {
	cols := recordColumns(res.Records)
	if len(cols) == 0 {
		pterm.Info.Printf("%d records\n", res.TotalSize)
		return nil
	}
	data := pterm.TableData{cols}
	for _, rec := range res.Records {
		row := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := rec[c]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		data = append(data, row)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	if !res.Done {
		pterm.Info.Printf("%d of %d records; pass --all to fetch the rest\n", len(res.Records), res.TotalSize)
	}
	return nil
}

func recordColumns(records []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if k == "attributes" || seen[k] {
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

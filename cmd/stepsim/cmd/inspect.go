package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/structs"
	"github.com/sarchlab/stepsim/datarecording"
	"github.com/sarchlab/stepsim/examples/ou"
	"github.com/sarchlab/stepsim/sim/hooking"
	"github.com/sarchlab/stepsim/simulation"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <recording.sqlite3>",
	Short: "Print the tables of a recording.",
	Long: "`inspect` lists the tables of a SQLite file written by `run` " +
		"with their row counts, and prints the first rows of the run info, " +
		"state monitor and tick trace tables.",
	Args: cobra.ExactArgs(1),
	RunE: inspectRecording,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	f := inspectCmd.Flags()
	f.Int("limit", 10, "Rows to print per table, 0 for all")
	f.StringArray("table", nil, "Only print the given table, repeatable")
}

type tableDumper func(
	ctx context.Context,
	r *datarecording.Reader,
	table string,
	sel datarecording.Selection,
) ([]any, error)

func dumpAs[T any](
	ctx context.Context,
	r *datarecording.Reader,
	table string,
	sel datarecording.Selection,
) ([]any, error) {
	entries, err := datarecording.Query[T](ctx, r, table, sel)
	if err != nil {
		return nil, err
	}

	rows := make([]any, len(entries))
	for i, e := range entries {
		rows[i] = e
	}

	return rows, nil
}

// knownTables maps the tables a run writes to the entries they hold.
var knownTables = map[string]tableDumper{
	simulation.RunInfoTable: dumpAs[simulation.RunInfoEntry],
	ou.MonitorTable:         dumpAs[ou.Sample],

	hooking.TickTable(simulation.TickTablePrefix): dumpAs[hooking.TickEntry],
	hooking.RunTable(simulation.TickTablePrefix):  dumpAs[hooking.RunEntry],
}

func inspectRecording(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	only, _ := cmd.Flags().GetStringArray("table")

	reader, err := datarecording.OpenReader(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx := cmd.Context()

	tables, err := reader.Tables(ctx)
	if err != nil {
		return err
	}

	for _, name := range only {
		if !slices.ContainsFunc(tables, func(t datarecording.TableInfo) bool {
			return t.Name == name
		}) {
			return fmt.Errorf("%w: %s", datarecording.ErrNoTable, name)
		}
	}

	out := cmd.OutOrStdout()

	for _, t := range tables {
		if len(only) > 0 && !slices.Contains(only, t.Name) {
			continue
		}

		fmt.Fprintf(out, "%s (%d rows)\n", t.Name, t.Rows)

		dump, ok := knownTables[t.Name]
		if !ok || t.Rows == 0 {
			continue
		}

		rows, err := dump(ctx, reader, t.Name,
			datarecording.Selection{Limit: limit})
		if err != nil {
			return err
		}

		if err := printRows(out, rows); err != nil {
			return err
		}

		if limit > 0 && t.Rows > limit {
			fmt.Fprintf(out, "... %d more\n", t.Rows-limit)
		}
	}

	return nil
}

func printRows(w io.Writer, rows []any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(structs.Names(rows[0]), "\t"))

	for _, row := range rows {
		values := structs.Values(row)

		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprint(v)
		}

		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}

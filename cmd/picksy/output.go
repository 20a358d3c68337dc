package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/picksy/desktop/internal/contract"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders a rounded table on a terminal and tab-separated rows
// everywhere else, so output stays greppable in pipes.
func printTable(cmd *cobra.Command, headers []string, rows [][]string, aligns []columnAlignment) {
	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		fmt.Fprintln(out, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
		return
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func photoRows(photos []contract.Photo, stackSizes map[string]int) [][]string {
	rows := make([][]string, 0, len(photos))
	for _, p := range photos {
		stack := "-"
		if p.InStack() {
			stack = p.StackKey()
			if n, ok := stackSizes[stack]; ok {
				stack = fmt.Sprintf("%s (%d)", shortID(stack), n)
			}
			if p.IsStackPrimary {
				stack += " *"
			}
		}
		rows = append(rows, []string{
			shortID(p.ID),
			p.Filename,
			yesNo(p.Favorite),
			stack,
			string(p.SyncStatus),
			orDash(p.AuthorPeerID),
		})
	}
	return rows
}

var photoHeaders = []string{"ID", "FILE", "FAVORITE", "STACK", "SYNC", "AUTHOR"}

func printPhotos(cmd *cobra.Command, asJSON bool, photos contract.Photos, stackSizes map[string]int) error {
	if asJSON {
		return writeJSON(cmd, photos)
	}
	if len(photos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Library is empty")
		return nil
	}
	printTable(cmd, photoHeaders, photoRows(photos, stackSizes), nil)
	return nil
}

package main

import (
	"fmt"
	"io"
	"strconv"

	ember "github.com/emberdb/goember"
	"github.com/olekukonko/tablewriter"
)

const nullText = "NULL"

// printCursor renders every remaining row of cur. Values are printed in
// their text form.
func printCursor(out io.Writer, cur *ember.ResultCursor) error {
	columns := cur.Columns()
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	rows := 0
	for cur.Next() {
		record := make([]string, len(columns))
		for i := range columns {
			v, err := cur.GetString(i + 1)
			if err != nil {
				return err
			}
			null, err := cur.WasNull()
			if err != nil {
				return err
			}
			if null {
				v = nullText
			}
			record[i] = v
		}
		table.Append(record)
		rows++
	}
	if err := cur.Err(); err != nil {
		return err
	}
	table.Render()
	fmt.Fprintln(out, rowCount(rows))
	return nil
}

func rowCount(n int) string {
	if n == 1 {
		return "(1 row)"
	}
	return "(" + strconv.Itoa(n) + " rows)"
}

func printStatus(out io.Writer, status *ember.QueryStatus) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"label", "status", "rows read", "error"})
	table.SetAutoFormatHeaders(false)
	table.Append([]string{status.Label, status.Status, strconv.FormatInt(status.RowsRead, 10), status.Error})
	table.Render()
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/s0up4200/eactl/filter"
)

// column is one table column, read from a record field
type column struct {
	header string
	field  string
}

// printRecords writes records as an aligned table or as a JSON array
func printRecords(w io.Writer, format string, records []filter.Record, columns []column) error {
	if format == "json" {
		return printJSON(w, records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	cells := make([]string, len(columns))
	for _, rec := range records {
		for i, c := range columns {
			cells[i] = formatCell(rec[c.field])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}

// printItem prints a single resource
func printItem(w io.Writer, format string, item any, columns []column) error {
	if format == "json" {
		return printJSON(w, item)
	}
	records, err := filter.ToRecords([]any{item})
	if err != nil {
		return err
	}
	return printRecords(w, format, records, columns)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatCell renders a record value for a table cell
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if val == "" {
			return "-"
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatCell(item)
		}
		return strings.Join(parts, ",")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

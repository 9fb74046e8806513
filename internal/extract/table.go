package extract

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

const (
	twMinWidth = 0
	twTabWidth = 8
	twPadding  = 2   // ensure columns have at least a space between them
	twPadChar  = ' ' // using a tab here creates 'jumpy' columns on output
	twFlags    = tabwriter.AlignRight
)

// WriteTable renders t as aligned text: one line per row, the row arguments
// first and then one column per result. Failed entries print as ERR.
func WriteTable(w io.Writer, t *Table) error {
	tw := tabwriter.NewWriter(w, twMinWidth, twTabWidth, twPadding, twPadChar, twFlags)

	header := make([]string, 0, len(t.Columns)+1)
	header = append(header, "args")
	for _, c := range t.Columns {
		header = append(header, c.Name)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")+"\t"); err != nil {
		return err
	}

	for i, row := range t.Rows {
		line := make([]string, 0, len(t.Columns)+1)
		line = append(line, formatArgs(row))
		for _, c := range t.Columns {
			line = append(line, formatEntry(c.Entries[i]))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(line, "\t")+"\t"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatArgs(args []cty.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return strings.Join(parts, ",")
}

func formatEntry(e Entry) string {
	if e.Err != nil {
		return "ERR"
	}
	return FormatValue(e.Value)
}

// FormatValue renders v for a table: whole numbers without a fraction,
// other numbers with four decimals, anything else in its canonical form.
func FormatValue(v cty.Value) string {
	if v == cty.NilVal || !v.IsKnown() || v.IsNull() || v.Type() != cty.Number {
		return value.FormatValue(v)
	}
	f, err := value.ToFloat(v)
	if err != nil {
		return value.FormatValue(v)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

package main

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/secretaria/internal/table"
	"github.com/JonMunkholm/secretaria/internal/views"
)

type previewOptions struct {
	view     string
	data     string
	search   string
	filters  []string
	pageSize int
	page     int
}

func newPreviewCmd() *cobra.Command {
	var opts previewOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a view's table from a JSON file",
		Long: `Run the table engine of a view over records read from a JSON array and
print one page to the terminal. The backend is not contacted.

Usage:
  secretaria preview --view contratos --data contratos.json
  secretaria preview --view usuarios --data - --search ana --filter Estado=Activo
  secretaria preview --view contratistas --data c.json --page-size 25 --page 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.view, "view", "", "View key ("+strings.Join(viewKeys(), ", ")+")")
	cmd.Flags().StringVar(&opts.data, "data", "-", "JSON array of records; - reads stdin")
	cmd.Flags().StringVar(&opts.search, "search", "", "Search text")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Keep only rows where COLUMN=VALUE (repeatable)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Rows per page (default: the view's)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page to print, starting at 1")
	_ = cmd.MarkFlagRequired("view")
	return cmd
}

func viewKeys() []string {
	var keys []string
	for _, v := range views.All() {
		keys = append(keys, v.Key)
	}
	return keys
}

// everyone grants every permission; a preview shows all actions.
type everyone struct{}

func (everyone) HasPermission(string) bool        { return true }
func (everyone) HasAnyPermission(...string) bool { return true }

func runPreview(stdin io.Reader, out io.Writer, opts previewOptions) error {
	v, ok := views.Get(opts.view)
	if !ok {
		return fmt.Errorf("unknown view %q (have %s)", opts.view, strings.Join(viewKeys(), ", "))
	}

	records, err := readRecords(stdin, opts.data)
	if err != nil {
		return err
	}

	e, err := v.NewEngine(everyone{})
	if err != nil {
		return err
	}
	e.SetData(records)
	if opts.search != "" {
		e.Search(opts.search)
	}
	for _, f := range opts.filters {
		if err := applyFilter(e, f); err != nil {
			return err
		}
	}
	if opts.pageSize > 0 {
		e.SetPageSize(opts.pageSize)
	}
	if !e.GoToPage(opts.page - 1) {
		return fmt.Errorf("page %d out of range (1-%d)", opts.page, e.PageCount())
	}

	fmt.Fprintln(out, renderTable(e))
	fmt.Fprintf(out, "%s · página %d de %d · %s de %s registros\n",
		v.Title, e.CurrentPage()+1, e.PageCount(),
		humanize.Comma(int64(len(e.Filtered()))), humanize.Comma(int64(e.Total())))
	return nil
}

func readRecords(stdin io.Reader, path string) ([]table.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []table.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

// applyFilter narrows a column to the one option whose label is value.
func applyFilter(e *table.Engine, arg string) error {
	column, value, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("filter %q: want COLUMN=VALUE", arg)
	}
	options := e.Options(column)
	if options == nil {
		return fmt.Errorf("filter %q: column is not filterable", arg)
	}
	index := -1
	for i, o := range options {
		if strings.EqualFold(e.OptionLabel(column, o.Value), value) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("filter %q: no option %q", arg, value)
	}
	if e.AllSelected(column) {
		e.ToggleAllOptions(column)
	}
	if !e.Options(column)[index].Selected {
		e.ToggleFilterOption(column, index)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func renderTable(e *table.Engine) string {
	cols := e.Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Label
	}

	var rows [][]string
	for _, row := range e.CurrentRows() {
		cells := e.Cells(row)
		line := make([]string, len(cells))
		for i, c := range cells {
			line[i] = plainText(c)
		}
		rows = append(rows, line)
	}

	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			s := cellStyle
			if col < len(cols) {
				switch cols[col].Align {
				case table.AlignRight:
					s = s.Align(lipgloss.Right)
				case table.AlignCenter:
					s = s.Align(lipgloss.Center)
				}
			}
			return s
		}).
		String()
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// plainText is the terminal rendering of a cell.
func plainText(c table.Cell) string {
	switch {
	case c.Icon != nil:
		return c.Icon.Title
	case c.Type == table.TypeBoolean:
		if strings.EqualFold(c.Text, "true") {
			return "sí"
		}
		return "no"
	case c.Trusted:
		return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(c.Text, "")))
	}
	return c.Text
}

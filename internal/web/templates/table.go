package templates

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// PageSizes are the choices offered by the page size selector.
var PageSizes = []int{5, 10, 25, 50, 100}

// TableView is everything the table partial needs, snapshotted from an
// engine while its lock is held.
type TableView struct {
	Key        string
	Root       string
	Query      string
	ShowSearch bool

	Headers []Header
	Rows    []Row
	Actions []table.Action

	ActiveFilters int
	Page          int // zero-based
	PageCount     int
	PageSize      int
	Shown         int
	Total         int
}

// Header is one column heading, with its filter dropdown when the column is
// filterable.
type Header struct {
	Label  string
	Align  table.Align
	Filter *FilterMenu
}

// FilterMenu is the dropdown state of one filterable column.
type FilterMenu struct {
	Column      string
	Open        bool
	Active      bool
	Query       string
	AllSelected bool
	Selected    int
	Options     []OptionView
}

// OptionView is one checkbox of a filter dropdown.
type OptionView struct {
	Index    int
	Label    string
	Selected bool
}

// Row is one rendered row of the current page.
type Row struct {
	ID       string
	Cells    []table.Cell
	MenuOpen bool
}

// TargetID is the element id the table partial replaces.
func (tv TableView) TargetID() string {
	return "table-" + tv.Key
}

// post builds the attributes of a control that posts to the table and swaps
// it in place.
func (tv TableView) post(path string) string {
	return `hx-post="` + href(tv.Root+path) + `" hx-target="#` + esc(tv.TargetID()) + `" hx-swap="outerHTML"`
}

// Table renders the table partial.
func Table(tv TableView) templ.Component {
	return component(func(h *writer) {
		h.raw(`<div id="`, esc(tv.TargetID()), `" class="data-table">`)
		h.render(toolbar(tv))

		h.raw(`<div class="table-wrap"><table><thead><tr>`)
		for _, hd := range tv.Headers {
			h.raw(`<th class="`, esc(classes("align-"+string(hd.Align), filteredClass(hd.Filter))), `">`)
			h.text(hd.Label)
			if hd.Filter != nil {
				h.render(filterMenu(tv, hd.Filter))
			}
			h.raw(`</th>`)
		}
		if len(tv.Actions) > 0 {
			h.raw(`<th class="align-center">Acciones</th>`)
		}
		h.raw(`</tr></thead><tbody>`)

		if len(tv.Rows) == 0 {
			span := len(tv.Headers)
			if len(tv.Actions) > 0 {
				span++
			}
			h.raw(`<tr class="empty"><td colspan="`, strconv.Itoa(span), `">`)
			if tv.Total == 0 {
				h.raw(`No hay registros.`)
			} else {
				h.raw(`Ningún registro coincide con la búsqueda o los filtros.`)
			}
			h.raw(`</td></tr>`)
		}
		for _, row := range tv.Rows {
			h.raw(`<tr>`)
			for _, c := range row.Cells {
				h.raw(`<td class="`, esc(classes("align-"+string(c.Align), c.Class)), `">`)
				h.render(CellContent(c))
				h.raw(`</td>`)
			}
			if len(tv.Actions) > 0 {
				h.render(rowActions(tv, row))
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table></div>`)

		h.render(pager(tv))
		h.raw(`</div>`)
	})
}

func filteredClass(f *FilterMenu) string {
	if f != nil && f.Active {
		return "filtered"
	}
	return ""
}

func toolbar(tv TableView) templ.Component {
	return component(func(h *writer) {
		h.raw(`<div class="table-toolbar">`)
		if tv.ShowSearch {
			h.raw(`<input type="search" name="q" placeholder="Buscar..." value="`, esc(tv.Query), `" `,
				tv.post("/search"), ` hx-trigger="input changed delay:300ms, search">`)
		}
		if tv.ActiveFilters > 0 {
			h.raw(`<button class="btn btn-link" `, tv.post("/filter/reset"), `>Limpiar filtros (`,
				strconv.Itoa(tv.ActiveFilters), `)</button>`)
		}
		h.raw(`<label class="page-size">Mostrar <select name="size" `, tv.post("/page-size"), `>`)
		for _, n := range PageSizes {
			sel := ""
			if n == tv.PageSize {
				sel = " selected"
			}
			s := strconv.Itoa(n)
			h.raw(`<option value="`, s, `"`, sel, `>`, s, `</option>`)
		}
		h.raw(`</select></label></div>`)
	})
}

func filterMenu(tv TableView, f *FilterMenu) templ.Component {
	return component(func(h *writer) {
		col := "/filter/" + pathSegment(f.Column)
		h.raw(`<span class="filter"><button class="filter-toggle" title="Filtrar" `, tv.post(col+"/menu"), `>`,
			`<i class="fas fa-filter"></i></button>`)
		if !f.Open {
			h.raw(`</span>`)
			return
		}
		h.raw(`<div class="filter-menu">`,
			`<input type="search" name="q" placeholder="Buscar opción..." value="`, esc(f.Query), `" `,
			tv.post(col+"/search"), ` hx-trigger="input changed delay:300ms, search">`)
		checked := ""
		if f.AllSelected {
			checked = " checked"
		}
		h.raw(`<label class="check all"><input type="checkbox"`, checked, ` `, tv.post(col+"/all"), `> Seleccionar todo</label>`,
			`<ul>`)
		for _, o := range f.Options {
			checked := ""
			if o.Selected {
				checked = " checked"
			}
			h.raw(`<li><label class="check"><input type="checkbox"`, checked, ` `,
				tv.post(col+"/toggle/"+strconv.Itoa(o.Index)), `> `)
			h.text(o.Label)
			h.raw(`</label></li>`)
		}
		if len(f.Options) == 0 {
			h.raw(`<li class="muted">Sin coincidencias</li>`)
		}
		h.raw(`</ul></div></span>`)
	})
}

func rowActions(tv TableView, row Row) templ.Component {
	return component(func(h *writer) {
		id := pathSegment(row.ID)
		h.raw(`<td class="align-center actions"><button class="menu-toggle" title="Acciones" `,
			tv.post("/menu/"+id), `><i class="fas fa-ellipsis-v"></i></button>`)
		if row.MenuOpen {
			h.raw(`<ul class="action-menu">`)
			for _, a := range tv.Actions {
				path := "/action/" + pathSegment(a.ID) + "/" + id
				if a.ID == table.ActionDelete {
					path = "/delete/" + id
				}
				h.raw(`<li><button `, tv.post(path), `>`,
					`<i class="`, esc(a.Icon), `"></i> `)
				h.text(a.Label)
				h.raw(`</button></li>`)
			}
			h.raw(`</ul>`)
		}
		h.raw(`</td>`)
	})
}

func pager(tv TableView) templ.Component {
	return component(func(h *writer) {
		h.raw(`<div class="table-footer"><span class="count">`)
		if tv.Shown == tv.Total {
			h.text(humanize.FormatInteger("#.###,", tv.Total) + " registros")
		} else {
			h.text(humanize.FormatInteger("#.###,", tv.Shown) + " de " + humanize.FormatInteger("#.###,", tv.Total) + " registros")
		}
		h.raw(`</span>`)
		if tv.PageCount > 1 {
			h.raw(`<nav class="pager">`)
			h.render(pageButton(tv, tv.Page-1, "&laquo;", tv.Page == 0))
			for i := 0; i < tv.PageCount; i++ {
				if !nearPage(i, tv.Page, tv.PageCount) {
					if i == tv.Page-3 || i == tv.Page+3 {
						h.raw(`<span class="gap">…</span>`)
					}
					continue
				}
				label := strconv.Itoa(i + 1)
				if i == tv.Page {
					h.raw(`<span class="current">`, label, `</span>`)
					continue
				}
				h.render(pageButton(tv, i, label, false))
			}
			h.render(pageButton(tv, tv.Page+1, "&raquo;", tv.Page >= tv.PageCount-1))
			h.raw(`</nav>`)
		}
		h.raw(`</div>`)
	})
}

// nearPage keeps the first and last page and two either side of the
// current one.
func nearPage(i, current, count int) bool {
	return i == 0 || i == count-1 || (i >= current-2 && i <= current+2)
}

func pageButton(tv TableView, page int, label string, disabled bool) templ.Component {
	return component(func(h *writer) {
		if disabled {
			h.raw(`<button disabled>`, label, `</button>`)
			return
		}
		h.raw(`<button `, tv.post("/page/"+strconv.Itoa(page)), `>`, label, `</button>`)
	})
}

// CellContent renders the inside of one table cell. Only trusted cells are
// written without escaping.
func CellContent(c table.Cell) templ.Component {
	return component(func(h *writer) {
		switch {
		case c.Icon != nil:
			h.raw(`<i class="`, esc(c.Icon.Class), `"`)
			if c.Icon.Color != "" {
				h.raw(` style="color: `, esc(c.Icon.Color), `"`)
			}
			h.raw(` title="`, esc(c.Icon.Title), `"></i>`)
		case c.Type == table.TypeLink && c.Href != "":
			h.raw(`<a href="`, href(c.Href), `">`)
			h.text(c.Text)
			h.raw(`</a>`)
		case c.Type == table.TypeBoolean && (c.Text == "true" || c.Text == "false"):
			if c.Text == "true" {
				h.raw(`<i class="fas fa-check text-success" title="Sí"></i>`)
			} else {
				h.raw(`<i class="fas fa-times text-muted" title="No"></i>`)
			}
		case c.Type == table.TypeProgress && !strings.Contains(c.Text, "<"):
			h.render(progressBar(c.Text))
		case c.Trusted:
			h.raw(c.Text)
		default:
			h.text(c.Text)
		}
	})
}

// progressBar draws a plain percentage value as a bar clamped to 0..100.
func progressBar(text string) templ.Component {
	return component(func(h *writer) {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(text, "%")), 64)
		if err != nil {
			h.text(text)
			return
		}
		v = min(max(v, 0), 100)
		pct := strconv.FormatFloat(v, 'f', -1, 64)
		h.raw(`<div class="progress" title="`, pct, `%"><div class="progress-bar" style="width: `, pct, `%"></div></div>`)
	})
}

func pathSegment(s string) string {
	return url.PathEscape(s)
}

// ListPage is a full page around a table.
func ListPage(p Page, title string, tv TableView, extra templ.Component) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<div class="page-header"><h1>`)
		h.text(title)
		h.raw(`</h1></div>`)
		h.render(extra)
		h.render(Table(tv))
	}))
}

package table

import (
	"net/url"
	"strings"
)

// Cell is one rendered table cell.
type Cell struct {
	Text  string
	Type  Type
	Align Align
	Class string

	// Trusted is set for markup produced by the caller (badges, icons,
	// html, progress). Renderers emit Text unescaped only when it is set.
	Trusted bool

	Href string // link columns
	Icon *Icon  // icon columns configured with record fields
}

// Icon describes an icon taken from record fields.
type Icon struct {
	Class string
	Color string
	Title string
}

// Cell renders column i of a row.
func (e *Engine) Cell(row DisplayRecord, i int) Cell {
	if i < 0 || i >= len(e.columns) {
		return Cell{}
	}
	col := e.columns[i]
	v := row.Value(col.Key)
	c := Cell{
		Type:    col.Type,
		Align:   col.Align,
		Trusted: col.Type.Trusted(),
	}
	if col.Align == "" {
		c.Align = AlignLeft
	}
	if col.CSSClassField != "" {
		c.Class = stringify(row.Value(col.CSSClassField))
	}

	switch f := col.format.(type) {
	case LinkFormat:
		c.Text = Render(v, f)
		switch {
		case c.Text == "":
		case f.Href == "":
			c.Href = c.Text
		default:
			c.Href = strings.ReplaceAll(f.Href, "{value}", url.PathEscape(c.Text))
		}
	case IconFormat:
		if f.ClassField != "" {
			c.Icon = &Icon{
				Class: stringify(row.Value(f.ClassField)),
				Color: stringify(row.Value(f.ColorField)),
				Title: stringify(row.Value(f.TitleField)),
			}
			c.Trusted = false
			c.Text = c.Icon.Title
			break
		}
		c.Text = Render(v, f)
	default:
		c.Text = Render(v, col.format)
	}
	return c
}

// Cells renders every column of a row.
func (e *Engine) Cells(row DisplayRecord) []Cell {
	out := make([]Cell, len(e.columns))
	for i := range e.columns {
		out[i] = e.Cell(row, i)
	}
	return out
}

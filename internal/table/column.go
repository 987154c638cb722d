package table

import "strings"

// Align is the horizontal alignment of a column.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ParseAlign accepts the English names and the Spanish ones used by older
// view definitions (izquierda, centrado, derecha). Anything else is left.
func ParseAlign(s string) Align {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center", "centrado", "centro":
		return AlignCenter
	case "right", "derecha":
		return AlignRight
	default:
		return AlignLeft
	}
}

// Type is the semantic type of a column, which selects its Format.
type Type string

const (
	TypeText     Type = "text"
	TypeNumber   Type = "number"
	TypeInteger  Type = "integer"
	TypePercent  Type = "percent"
	TypeCurrency Type = "currency"
	TypeMoney    Type = "money"
	TypeDate     Type = "date"
	TypeDateTime Type = "datetime"
	TypeTime     Type = "time"
	TypeLink     Type = "link"
	TypeBadge    Type = "badge"
	TypeProgress Type = "progress"
	TypeHTML     Type = "html"
	TypeIcon     Type = "icon"
	TypeBoolean  Type = "boolean"
)

var typeAliases = map[string]Type{
	"":         TypeText,
	"text":     TypeText,
	"number":   TypeNumber,
	"integer":  TypeInteger,
	"percent":  TypePercent,
	"currency": TypeCurrency,
	"money":    TypeMoney,
	"date":     TypeDate,
	"fecha":    TypeDate,
	"datetime": TypeDateTime,
	"time":     TypeTime,
	"link":     TypeLink,
	"badge":    TypeBadge,
	"progress": TypeProgress,
	"progreso": TypeProgress,
	"html":     TypeHTML,
	"icon":     TypeIcon,
	"icono":    TypeIcon,
	"boolean":  TypeBoolean,
	"booleano": TypeBoolean,
}

// ParseType resolves a type tag, including its Spanish aliases.
// An empty tag is text. Unknown tags report false.
func ParseType(s string) (Type, bool) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Trusted reports whether values of this type are pre-rendered markup that
// the caller is responsible for making safe.
func (t Type) Trusted() bool {
	switch t {
	case TypeBadge, TypeIcon, TypeHTML, TypeProgress:
		return true
	}
	return false
}

// Options holds free-form format parameters as they arrive from a view
// definition. They are decoded into a Format once, when columns are set.
type Options map[string]any

// Column describes how one field of a record is labelled, aligned and
// formatted.
type Column struct {
	Key           string
	Label         string
	Alias         string // name used by filterable-column lists; defaults to Label
	Align         Align
	Type          Type
	FormatOptions Options
	CSSClassField string // field whose value is used as the cell's CSS class
}

// FilterName returns the name a filterable-column list refers to this
// column by.
func (c Column) FilterName() string {
	if c.Alias != "" {
		return c.Alias
	}
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}

// boundColumn is a column with its format decoded.
type boundColumn struct {
	Column
	format Format
}

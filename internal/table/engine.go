package table

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Built-in row actions.
const (
	ActionView   = "consultar"
	ActionEdit   = "editar"
	ActionDelete = "eliminar"
)

// Action is a row-scoped operation the engine surfaces but does not perform.
type Action struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon" json:"icon"`
}

// ActionEvent is emitted when the user picks an action on a row.
type ActionEvent struct {
	Action string
	ID     string
	Record Record
}

// Props is the input surface supplied by the page that owns the table.
type Props struct {
	RootPath   string
	ShowView   bool
	ShowEdit   bool
	ShowDelete bool
	ShowSearch bool
	IDField    string // defaults to "id"
}

// Confirmer asks the user to confirm a destructive operation. Exactly one
// of onConfirm and onCancel is called, possibly much later.
type Confirmer interface {
	Confirm(ctx context.Context, message string, onConfirm, onCancel func(context.Context))
}

// Listener receives the events an engine emits to its parent page.
// Nil fields are ignored.
type Listener struct {
	OnAction func(context.Context, ActionEvent)
	OnDelete func(context.Context, Record)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for non-fatal problems.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConfirmer sets the collaborator used by RequestDelete.
func WithConfirmer(c Confirmer) Option {
	return func(e *Engine) { e.confirmer = c }
}

// WithListener sets the parent's event handlers.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listener = l }
}

// WithDecorator sets the function that derives display fields for each record.
func WithDecorator(d Decorator) Option {
	return func(e *Engine) { e.decorator = d }
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(e *Engine) { e.pageSize = n }
}

// optionalID is an id that may be absent.
type optionalID struct {
	id  string
	set bool
}

// Engine is the state of one table. See the package documentation for the
// pipeline it maintains.
type Engine struct {
	logger    *slog.Logger
	confirmer Confirmer
	listener  Listener
	decorator Decorator
	collator  *collate.Collator
	fold      cases.Caser

	props      Props
	columns    []boundColumn
	actions    []Action
	filterable []string
	data       []DisplayRecord

	query   string
	folded  string
	filters []*columnFilter

	filtered []DisplayRecord
	pages    [][]DisplayRecord
	current  int
	pageSize int

	openAction optionalID
	openFilter optionalID
}

// New returns an empty engine.
func New(props Props, opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		collator: collate.New(language.Spanish),
		fold:     cases.Fold(),
		props:    props,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pageSize <= 0 {
		e.pageSize = DefaultPageSize
	}
	e.refresh()
	return e
}

// SetProps replaces the input surface.
func (e *Engine) SetProps(p Props) {
	e.props = p
}

// Props returns the input surface.
func (e *Engine) Props() Props {
	return e.props
}

// SetColumns replaces the column metadata and decodes each column's format.
// Unknown type tags fall back to text with a warning.
func (e *Engine) SetColumns(cols []Column) {
	bound := make([]boundColumn, 0, len(cols))
	for _, c := range cols {
		t := c.Type
		if parsed, ok := ParseType(string(t)); ok {
			t = parsed
		}
		f, err := DecodeFormat(t, c.FormatOptions)
		if err != nil {
			e.logger.Warn("column format rejected, rendering as text",
				"column", c.Key,
				"type", c.Type,
				"error", err,
			)
			t, f = TypeText, TextFormat{}
		}
		c.Type = t
		bound = append(bound, boundColumn{Column: c, format: f})
	}
	e.columns = bound
	e.rebuildFilters()
	e.refresh()
}

// SetBoundColumns replaces the column metadata with columns whose formats
// were already decoded.
func (e *Engine) SetBoundColumns(cols []Column, formats []Format) error {
	if len(cols) != len(formats) {
		return fmt.Errorf("set columns: %d columns, %d formats", len(cols), len(formats))
	}
	bound := make([]boundColumn, len(cols))
	for i := range cols {
		if formats[i] == nil {
			return fmt.Errorf("set columns: column %q has no format", cols[i].Key)
		}
		bound[i] = boundColumn{Column: cols[i], format: formats[i]}
		bound[i].Type = formats[i].Kind()
	}
	e.columns = bound
	e.rebuildFilters()
	e.refresh()
	return nil
}

// Columns returns the current column metadata.
func (e *Engine) Columns() []Column {
	out := make([]Column, len(e.columns))
	for i, c := range e.columns {
		out[i] = c.Column
	}
	return out
}

// SetData replaces the dataset. Filter options are regenerated with every
// option selected.
func (e *Engine) SetData(records []Record) {
	e.data = make([]DisplayRecord, len(records))
	for i, r := range records {
		d := DisplayRecord{Original: r}
		if e.decorator != nil {
			d.Derived = e.decorate(r)
		}
		e.data[i] = d
	}
	e.rebuildFilters()
	e.refresh()
}

func (e *Engine) decorate(r Record) (derived map[string]string) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Warn("decorator failed", "panic", p)
			derived = nil
		}
	}()
	return e.decorator(r)
}

// SetActions replaces the custom action list.
func (e *Engine) SetActions(actions []Action) {
	e.actions = slices.Clone(actions)
}

// Actions returns the custom action list.
func (e *Engine) Actions() []Action {
	return slices.Clone(e.actions)
}

// SetFilterableColumns declares the columns, by alias, that support
// categorical filtering. All filters are reset to every option selected.
func (e *Engine) SetFilterableColumns(aliases []string) {
	e.filterable = slices.Clone(aliases)
	e.rebuildFilters()
	e.refresh()
}

// rebuildFilters regenerates the option list of every filterable column
// from the dataset.
func (e *Engine) rebuildFilters() {
	e.filters = e.filters[:0]
	for _, name := range e.filterable {
		col, ok := e.columnByName(name)
		if !ok {
			e.logger.Debug("filterable column not found", "column", name)
			continue
		}
		values := distinctValues(e.data, col.Key)
		sortValues(values, e.collator)
		e.filters = append(e.filters, newColumnFilter(col.Column, values))
	}
	if e.openFilter.set {
		if _, ok := e.filter(e.openFilter.id); !ok {
			e.openFilter = optionalID{}
		}
	}
}

// columnByName finds a column by filter name or key.
func (e *Engine) columnByName(name string) (boundColumn, bool) {
	for _, c := range e.columns {
		if c.FilterName() == name {
			return c, true
		}
	}
	for _, c := range e.columns {
		if c.Key == name {
			return c, true
		}
	}
	return boundColumn{}, false
}

// filter finds the filter of a column by key or filter name.
func (e *Engine) filter(column string) (*columnFilter, bool) {
	for _, f := range e.filters {
		if f.column.Key == column || f.column.FilterName() == column {
			return f, true
		}
	}
	return nil, false
}

// Search sets the free-text query. An empty query disables searching.
func (e *Engine) Search(text string) {
	e.query = text
	e.folded = e.fold.String(text)
	e.refresh()
}

// Query returns the current search text.
func (e *Engine) Query() string {
	return e.query
}

// ToggleFilterOption flips the selection of one option of a column filter.
// It reports false if the column or index does not exist.
func (e *Engine) ToggleFilterOption(column string, index int) bool {
	f, ok := e.filter(column)
	if !ok || index < 0 || index >= len(f.options) {
		return false
	}
	f.options[index].Selected = !f.options[index].Selected
	f.apply()
	e.refresh()
	return true
}

// ToggleAllOptions selects every option of a column, or clears them all if
// every option is already selected.
func (e *Engine) ToggleAllOptions(column string) bool {
	f, ok := e.filter(column)
	if !ok {
		return false
	}
	selected := !f.allSelected
	for i := range f.options {
		f.options[i].Selected = selected
	}
	f.apply()
	e.refresh()
	return true
}

// ResetFilters selects every option of every column.
func (e *Engine) ResetFilters() {
	for _, f := range e.filters {
		for i := range f.options {
			f.options[i].Selected = true
		}
		f.apply()
	}
	e.refresh()
}

// ActiveFilterCount is the number of columns whose selection excludes at
// least one option.
func (e *Engine) ActiveFilterCount() int {
	n := 0
	for _, f := range e.filters {
		if f.restricting() {
			n++
		}
	}
	return n
}

// FilterColumns returns the columns that have a categorical filter, in
// declaration order.
func (e *Engine) FilterColumns() []Column {
	out := make([]Column, len(e.filters))
	for i, f := range e.filters {
		out[i] = f.column
	}
	return out
}

// IsFiltered reports whether the column's filter excludes some option.
func (e *Engine) IsFiltered(column string) bool {
	f, ok := e.filter(column)
	return ok && f.restricting()
}

// Options returns a copy of a column's filter options.
func (e *Engine) Options(column string) []FilterOption {
	f, ok := e.filter(column)
	if !ok {
		return nil
	}
	return slices.Clone(f.options)
}

// AllSelected reports whether every option of the column is selected.
func (e *Engine) AllSelected(column string) bool {
	f, ok := e.filter(column)
	return ok && f.allSelected
}

// SelectedCount returns the number of selected options of a column.
func (e *Engine) SelectedCount(column string) int {
	f, ok := e.filter(column)
	if !ok {
		return 0
	}
	return len(f.active)
}

// FilterOptions returns the options of a column whose label contains query,
// case-folded, with their indices in the full option list.
func (e *Engine) FilterOptions(column, query string) []IndexedOption {
	f, ok := e.filter(column)
	if !ok {
		return nil
	}
	q := e.fold.String(strings.TrimSpace(query))
	out := make([]IndexedOption, 0, len(f.options))
	for i, o := range f.options {
		if q != "" && !strings.Contains(e.fold.String(e.OptionLabel(column, o.Value)), q) {
			continue
		}
		out = append(out, IndexedOption{Index: i, FilterOption: o})
	}
	return out
}

var markup = regexp.MustCompile(`<[^>]*>`)

// OptionLabel returns the plain-text label of a filter option. Markup in
// trusted columns is reduced to its text.
func (e *Engine) OptionLabel(column string, v any) string {
	col, ok := e.columnByName(column)
	if !ok {
		return stringify(v)
	}
	if col.Type.Trusted() {
		return strings.TrimSpace(html.UnescapeString(markup.ReplaceAllString(stringify(v), "")))
	}
	return Render(v, col.format)
}

// SetPageSize re-chunks the filtered rows. Sizes of zero or less select
// DefaultPageSize.
func (e *Engine) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	e.pageSize = n
	e.paginate()
}

// PageSize returns the page size in effect.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// GoToPage moves to page i. Out-of-range pages are rejected and the
// current page is kept.
func (e *Engine) GoToPage(i int) bool {
	if i < 0 || i >= len(e.pages) {
		return false
	}
	e.current = i
	return true
}

// Pages returns every page of the filtered rows.
func (e *Engine) Pages() [][]DisplayRecord {
	return e.pages
}

// PageCount is never less than one.
func (e *Engine) PageCount() int {
	return len(e.pages)
}

// CurrentPage returns the zero-based index of the current page.
func (e *Engine) CurrentPage() int {
	return e.current
}

// CurrentRows returns the rows of the current page.
func (e *Engine) CurrentRows() []DisplayRecord {
	return e.pages[e.current]
}

// Filtered returns every row that passes search and filters.
func (e *Engine) Filtered() []DisplayRecord {
	return e.filtered
}

// Total returns the size of the unfiltered dataset.
func (e *Engine) Total() int {
	return len(e.data)
}

// refresh runs the pipeline: search, categorical filters, pagination.
func (e *Engine) refresh() {
	rows := e.data
	if e.folded != "" {
		matched := make([]DisplayRecord, 0, len(rows))
		for _, r := range rows {
			if matchesQuery(r.Original, e.folded, e.fold) {
				matched = append(matched, r)
			}
		}
		rows = matched
	}
	for _, f := range e.filters {
		if !f.restricting() {
			continue
		}
		kept := make([]DisplayRecord, 0, len(rows))
		for _, r := range rows {
			if f.admits(r.Value(f.column.Key)) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	e.filtered = rows
	e.paginate()
}

func (e *Engine) paginate() {
	e.pages = paginate(e.filtered, e.pageSize)
	e.current = clampPage(e.current, len(e.pages))
}

// RowID returns the identifier of a record.
func (e *Engine) RowID(r Record) string {
	field := e.props.IDField
	if field == "" {
		field = "id"
	}
	return stringify(r[field])
}

// Row finds a record of the dataset by id.
func (e *Engine) Row(id string) (DisplayRecord, bool) {
	for _, r := range e.data {
		if e.RowID(r.Original) == id {
			return r, true
		}
	}
	return DisplayRecord{}, false
}

// HasActions reports whether rows carry any action at all.
func (e *Engine) HasActions() bool {
	return e.props.ShowView || e.props.ShowEdit || e.props.ShowDelete || len(e.actions) > 0
}

// ToggleActionMenu opens the action menu of a row, or closes it if it is
// already open. Any open filter menu is closed.
func (e *Engine) ToggleActionMenu(rowID string) {
	if e.openAction.set && e.openAction.id == rowID {
		e.openAction = optionalID{}
	} else {
		e.openAction = optionalID{id: rowID, set: true}
	}
	e.openFilter = optionalID{}
}

// ToggleFilterMenu opens the filter dropdown of a column, or closes it if
// it is already open. Any open action menu is closed.
func (e *Engine) ToggleFilterMenu(column string) bool {
	f, ok := e.filter(column)
	if !ok {
		return false
	}
	if e.openFilter.set && e.openFilter.id == f.column.Key {
		e.openFilter = optionalID{}
	} else {
		e.openFilter = optionalID{id: f.column.Key, set: true}
	}
	e.openAction = optionalID{}
	return true
}

// CloseMenus closes any open action menu or filter dropdown.
func (e *Engine) CloseMenus() {
	e.openAction = optionalID{}
	e.openFilter = optionalID{}
}

// OpenActionMenu returns the row whose action menu is open.
func (e *Engine) OpenActionMenu() (string, bool) {
	return e.openAction.id, e.openAction.set
}

// OpenFilterMenu returns the key of the column whose filter dropdown is open.
func (e *Engine) OpenFilterMenu() (string, bool) {
	return e.openFilter.id, e.openFilter.set
}

// knownAction reports whether id is an action rows currently offer.
func (e *Engine) knownAction(id string) bool {
	switch id {
	case ActionView:
		return e.props.ShowView
	case ActionEdit:
		return e.props.ShowEdit
	case ActionDelete:
		return e.props.ShowDelete
	}
	return slices.ContainsFunc(e.actions, func(a Action) bool { return a.ID == id })
}

// SelectAction emits an ActionEvent for a row and closes any open menu.
// Unknown action ids are logged and ignored.
func (e *Engine) SelectAction(ctx context.Context, actionID, rowID string, rec Record) bool {
	e.CloseMenus()
	if !e.knownAction(actionID) {
		e.logger.WarnContext(ctx, "unknown table action",
			"action", actionID,
			"row", rowID,
		)
		return false
	}
	if e.listener.OnAction != nil {
		e.listener.OnAction(ctx, ActionEvent{Action: actionID, ID: rowID, Record: rec})
	}
	return true
}

// DeleteMessage is the confirmation text shown before a record is deleted.
func DeleteMessage(rowID string) string {
	return fmt.Sprintf("¿Está seguro de borrar el registro %s? Esta acción no se puede revertir!", rowID)
}

// RequestDelete asks for confirmation and emits OnDelete only if the user
// confirms. It reports whether a confirmation was requested.
func (e *Engine) RequestDelete(ctx context.Context, rec Record) bool {
	e.CloseMenus()
	if e.confirmer == nil {
		e.logger.WarnContext(ctx, "delete requested without a confirmer", "row", e.RowID(rec))
		return false
	}
	onDelete := e.listener.OnDelete
	e.confirmer.Confirm(ctx, DeleteMessage(e.RowID(rec)),
		func(ctx context.Context) {
			if onDelete != nil {
				onDelete(ctx, rec)
			}
		},
		func(context.Context) {},
	)
	return true
}

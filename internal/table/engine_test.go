package table

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []Column{
	{Key: "id", Label: "ID", Align: AlignCenter, Type: TypeInteger},
	{Key: "nombre", Label: "Nombre"},
	{Key: "ciudad", Label: "Ciudad"},
	{Key: "valor", Label: "Valor", Type: TypeMoney},
	{Key: "activo", Label: "Estado", Alias: "Activo", Type: TypeBoolean},
}

func testRecords(n int) []Record {
	cities := []string{"Bogotá", "Medellín", "Cali", "Pasto", "Neiva"}
	out := make([]Record, n)
	for i := range n {
		out[i] = Record{
			"id":     i + 1,
			"nombre": fmt.Sprintf("Persona %02d", i+1),
			"ciudad": cities[i%len(cities)],
			"valor":  float64((i + 1) * 1000),
			"activo": i%2 == 0,
		}
	}
	return out
}

func newTestEngine(t *testing.T, records []Record, opts ...Option) *Engine {
	t.Helper()
	e := New(Props{ShowView: true, ShowEdit: true, ShowDelete: true}, opts...)
	e.SetColumns(testColumns)
	e.SetFilterableColumns([]string{"Ciudad", "Activo"})
	e.SetData(records)
	return e
}

func ids(rows []DisplayRecord) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Original["id"]
	}
	return out
}

func TestEngine_Pagination(t *testing.T) {
	e := newTestEngine(t, testRecords(25))

	require.Equal(t, 3, e.PageCount())
	var sizes []int
	for _, p := range e.Pages() {
		sizes = append(sizes, len(p))
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)

	e.SetPageSize(0)
	assert.Equal(t, DefaultPageSize, e.PageSize())
	assert.Equal(t, 3, e.PageCount())

	require.True(t, e.GoToPage(2))
	assert.False(t, e.GoToPage(5))
	assert.Equal(t, 2, e.CurrentPage())
	assert.False(t, e.GoToPage(-1))
	assert.Equal(t, 2, e.CurrentPage())
	assert.Len(t, e.CurrentRows(), 5)
}

func TestEngine_PagesReconstructFiltered(t *testing.T) {
	for _, size := range []int{1, 3, 7, 10, 25, 40} {
		e := newTestEngine(t, testRecords(23))
		e.Search("persona 1")
		e.SetPageSize(size)

		n := len(e.Filtered())
		want := max((n+size-1)/size, 1)
		require.Equal(t, want, e.PageCount(), "page size %d", size)

		var joined []DisplayRecord
		for _, p := range e.Pages() {
			assert.LessOrEqual(t, len(p), size)
			joined = append(joined, p...)
		}
		if diff := cmp.Diff(ids(e.Filtered()), ids(joined)); diff != "" {
			t.Errorf("page size %d: pages differ from filtered rows (-want +got):\n%s", size, diff)
		}
	}
}

func TestEngine_EmptyDatasetHasOneEmptyPage(t *testing.T) {
	e := newTestEngine(t, nil)

	require.Equal(t, 1, e.PageCount())
	assert.Empty(t, e.Pages()[0])
	assert.Empty(t, e.CurrentRows())
	assert.Equal(t, 0, e.CurrentPage())
	assert.True(t, e.GoToPage(0))
	assert.False(t, e.GoToPage(1))
}

func TestEngine_PageIndexClampsWhenDataShrinks(t *testing.T) {
	e := newTestEngine(t, testRecords(25))
	require.True(t, e.GoToPage(2))

	e.SetData(testRecords(12))
	assert.Equal(t, 2, e.PageCount())
	assert.Equal(t, 1, e.CurrentPage())

	e.Search("no existe")
	assert.Equal(t, 1, e.PageCount())
	assert.Equal(t, 0, e.CurrentPage())
}

func TestEngine_Search(t *testing.T) {
	records := []Record{
		{"id": 1, "nombre": "Ana García", "ciudad": "Bogotá"},
		{"id": 2, "nombre": "LUIS GARZÓN", "ciudad": "Cali"},
		{"id": 3, "nombre": "Pedro Ruiz", "ciudad": nil},
		{"id": 4, "nombre": "Marta", "ciudad": "Garagoa"},
	}

	tests := []struct {
		query string
		want  []any
	}{
		{"", []any{1, 2, 3, 4}},
		{"gar", []any{1, 2, 4}},
		{"GARZÓN", []any{2}},
		{"bogotá", []any{1}},
		{"3", []any{3}},
		{"zzz", []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e := newTestEngine(t, records)
			e.Search(tt.query)
			assert.Equal(t, tt.query, e.Query())

			got := ids(e.Filtered())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
			for _, r := range e.Filtered() {
				assert.True(t, matchesQuery(r.Original, e.fold.String(tt.query), e.fold))
			}
		})
	}
}

func TestEngine_SearchIgnoresDerivedFields(t *testing.T) {
	decorate := func(r Record) map[string]string {
		return map[string]string{"estado": `<span class="badge">Activo</span>`}
	}
	e := New(Props{}, WithDecorator(decorate))
	e.SetColumns(testColumns)
	e.SetData(testRecords(3))

	e.Search("span")
	assert.Empty(t, e.Filtered())
}

func TestEngine_ToggleAllThenOneOff(t *testing.T) {
	e := newTestEngine(t, testRecords(10))
	assert.Equal(t, 0, e.ActiveFilterCount())
	require.True(t, e.AllSelected("ciudad"))

	require.True(t, e.ToggleAllOptions("Ciudad"))
	assert.Equal(t, 0, e.SelectedCount("ciudad"))
	require.True(t, e.ToggleAllOptions("Ciudad"))
	require.True(t, e.AllSelected("ciudad"))

	opts := e.Options("ciudad")
	idx := -1
	for i, o := range opts {
		if o.Value == "Bogotá" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	require.True(t, e.ToggleFilterOption("ciudad", idx))

	assert.Equal(t, 1, e.ActiveFilterCount())
	assert.True(t, e.IsFiltered("Ciudad"))
	assert.False(t, e.AllSelected("ciudad"))
	assert.Len(t, e.Filtered(), 8)
	for _, r := range e.Filtered() {
		assert.NotEqual(t, "Bogotá", r.Original["ciudad"])
	}
}

func TestEngine_EmptySelectionImposesNoConstraint(t *testing.T) {
	e := newTestEngine(t, testRecords(10))
	require.True(t, e.ToggleAllOptions("ciudad"))

	assert.Equal(t, 1, e.ActiveFilterCount())
	assert.Len(t, e.Filtered(), 10)
}

func TestEngine_FilterConstrainsAndRelaxes(t *testing.T) {
	records := testRecords(20)
	records = append(records, Record{"id": 21, "nombre": "Sin ciudad", "ciudad": nil, "activo": true})
	e := newTestEngine(t, records)
	require.Len(t, e.Filtered(), 21)

	opts := e.Options("ciudad")
	require.Len(t, opts, 5)
	for i := 1; i < len(opts); i++ {
		require.True(t, e.ToggleFilterOption("ciudad", i))
	}
	allowed := map[any]bool{opts[0].Value: true}

	prev := len(e.Filtered())
	for _, r := range e.Filtered() {
		assert.True(t, allowed[r.Original["ciudad"]], "unexpected ciudad %v", r.Original["ciudad"])
	}

	for i := 1; i < len(opts); i++ {
		require.True(t, e.ToggleFilterOption("ciudad", i))
		allowed[opts[i].Value] = true

		got := len(e.Filtered())
		assert.GreaterOrEqual(t, got, prev, "selecting %v shrank the result", opts[i].Value)
		prev = got
		for _, r := range e.Filtered() {
			if e.IsFiltered("ciudad") {
				assert.True(t, allowed[r.Original["ciudad"]])
			}
		}
	}

	// Every option selected again: same as no filter, nil values included.
	assert.Equal(t, 0, e.ActiveFilterCount())
	assert.Len(t, e.Filtered(), 21)
}

func TestEngine_FiltersCombineWithAnd(t *testing.T) {
	e := newTestEngine(t, testRecords(20))

	for i, o := range e.Options("ciudad") {
		if o.Value != "Cali" {
			e.ToggleFilterOption("ciudad", i)
		}
	}
	for i, o := range e.Options("activo") {
		if o.Value != true {
			e.ToggleFilterOption("Activo", i)
		}
	}

	assert.Equal(t, 2, e.ActiveFilterCount())
	require.NotEmpty(t, e.Filtered())
	for _, r := range e.Filtered() {
		assert.Equal(t, "Cali", r.Original["ciudad"])
		assert.Equal(t, true, r.Original["activo"])
	}

	e.ResetFilters()
	assert.Equal(t, 0, e.ActiveFilterCount())
	assert.Len(t, e.Filtered(), 20)
}

func TestEngine_SearchRunsBeforeFilters(t *testing.T) {
	e := newTestEngine(t, testRecords(20))
	for i, o := range e.Options("ciudad") {
		if o.Value != "Pasto" {
			e.ToggleFilterOption("ciudad", i)
		}
	}
	e.Search("persona 0")

	assert.Equal(t, []any{4, 9}, ids(e.Filtered()))
}

func TestEngine_SetDataIsIdempotent(t *testing.T) {
	e := newTestEngine(t, testRecords(17))
	pages := e.Pages()
	options := e.Options("ciudad")

	e.SetData(testRecords(17))
	if diff := cmp.Diff(pages, e.Pages()); diff != "" {
		t.Errorf("pages changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(options, e.Options("ciudad")); diff != "" {
		t.Errorf("options changed (-first +second):\n%s", diff)
	}
}

func TestEngine_SetDataResetsFilters(t *testing.T) {
	e := newTestEngine(t, testRecords(10))
	e.ToggleFilterOption("ciudad", 0)
	require.Equal(t, 1, e.ActiveFilterCount())

	e.SetData(testRecords(10))
	assert.Equal(t, 0, e.ActiveFilterCount())
	assert.True(t, e.AllSelected("ciudad"))
}

func TestEngine_DoesNotMutateRecords(t *testing.T) {
	records := testRecords(3)
	decorate := func(r Record) map[string]string {
		return map[string]string{"estado": "<b>" + r["nombre"].(string) + "</b>"}
	}
	e := New(Props{}, WithDecorator(decorate))
	e.SetColumns(testColumns)
	e.SetData(records)

	_, ok := records[0]["estado"]
	assert.False(t, ok)
	assert.Equal(t, "<b>Persona 01</b>", e.Filtered()[0].Value("estado"))
	assert.Equal(t, "Persona 01", e.Filtered()[0].Value("nombre"))
}

func TestEngine_DecoratorPanicIsRecovered(t *testing.T) {
	e := New(Props{}, WithDecorator(func(Record) map[string]string { panic("boom") }))
	e.SetData(testRecords(2))
	assert.Len(t, e.Filtered(), 2)
}

func TestEngine_OptionsAreSortedAndDistinct(t *testing.T) {
	records := []Record{
		{"v": "Zeta"}, {"v": 3}, {"v": "árbol"}, {"v": true}, {"v": nil},
		{"v": 1.0}, {"v": "Banco"}, {"v": 3}, {"v": int64(1)}, {"v": false},
	}
	e := New(Props{})
	e.SetColumns([]Column{{Key: "v", Label: "Valor"}})
	e.SetFilterableColumns([]string{"Valor"})
	e.SetData(records)

	var got []any
	for _, o := range e.Options("v") {
		got = append(got, o.Value)
		assert.True(t, o.Selected)
	}
	want := []any{1.0, 3, "árbol", "Banco", "Zeta", false, true}
	assert.Equal(t, want, got)
}

func TestEngine_FilterOptionsSearch(t *testing.T) {
	e := newTestEngine(t, testRecords(10))

	got := e.FilterOptions("Ciudad", "BOG")
	require.Len(t, got, 1)
	assert.Equal(t, "Bogotá", got[0].Value)
	assert.Equal(t, "Bogotá", e.Options("ciudad")[got[0].Index].Value)

	assert.Len(t, e.FilterOptions("ciudad", ""), 5)
	assert.Nil(t, e.FilterOptions("nope", ""))
}

func TestEngine_UnknownFilterTargets(t *testing.T) {
	e := newTestEngine(t, testRecords(5))
	assert.False(t, e.ToggleFilterOption("nope", 0))
	assert.False(t, e.ToggleFilterOption("ciudad", 99))
	assert.False(t, e.ToggleAllOptions("nope"))
	assert.False(t, e.ToggleFilterMenu("nope"))
	assert.Equal(t, 2, len(e.FilterColumns()))
}

func TestEngine_Menus(t *testing.T) {
	e := newTestEngine(t, testRecords(5))

	e.ToggleActionMenu("1")
	e.ToggleActionMenu("2")
	id, open := e.OpenActionMenu()
	assert.True(t, open)
	assert.Equal(t, "2", id)

	e.ToggleActionMenu("2")
	_, open = e.OpenActionMenu()
	assert.False(t, open)

	e.ToggleActionMenu("3")
	require.True(t, e.ToggleFilterMenu("Ciudad"))
	_, open = e.OpenActionMenu()
	assert.False(t, open)
	col, open := e.OpenFilterMenu()
	assert.True(t, open)
	assert.Equal(t, "ciudad", col)

	e.CloseMenus()
	_, open = e.OpenFilterMenu()
	assert.False(t, open)
}

func TestEngine_SelectAction(t *testing.T) {
	var events []ActionEvent
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	e := newTestEngine(t, testRecords(3),
		WithLogger(logger),
		WithListener(Listener{OnAction: func(_ context.Context, ev ActionEvent) {
			events = append(events, ev)
		}}),
	)
	e.SetActions([]Action{{ID: "roles", Label: "Gestionar Roles", Icon: "fas fa-user-shield"}})
	rec := e.Filtered()[0].Original

	e.ToggleActionMenu("1")
	assert.True(t, e.SelectAction(context.Background(), "roles", "1", rec))
	_, open := e.OpenActionMenu()
	assert.False(t, open)

	assert.True(t, e.SelectAction(context.Background(), ActionEdit, "1", rec))

	e.ToggleActionMenu("1")
	assert.False(t, e.SelectAction(context.Background(), "imprimir", "1", rec))
	_, open = e.OpenActionMenu()
	assert.False(t, open)
	assert.True(t, strings.Contains(logs.String(), "unknown table action"))

	require.Len(t, events, 2)
	assert.Equal(t, ActionEvent{Action: "roles", ID: "1", Record: rec}, events[0])
	assert.Equal(t, ActionEdit, events[1].Action)
}

func TestEngine_SelectActionRespectsProps(t *testing.T) {
	e := New(Props{ShowView: true})
	assert.True(t, e.HasActions())
	assert.True(t, e.SelectAction(context.Background(), ActionView, "1", nil))
	assert.False(t, e.SelectAction(context.Background(), ActionEdit, "1", nil))
	assert.False(t, e.SelectAction(context.Background(), ActionDelete, "1", nil))

	assert.False(t, New(Props{}).HasActions())
}

type fakeConfirmer struct {
	message   string
	onConfirm func(context.Context)
	onCancel  func(context.Context)
}

func (f *fakeConfirmer) Confirm(_ context.Context, message string, onConfirm, onCancel func(context.Context)) {
	f.message = message
	f.onConfirm = onConfirm
	f.onCancel = onCancel
}

func TestEngine_RequestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed", func(t *testing.T) {
		var deleted []Record
		conf := &fakeConfirmer{}
		e := newTestEngine(t, testRecords(3),
			WithConfirmer(conf),
			WithListener(Listener{OnDelete: func(_ context.Context, r Record) { deleted = append(deleted, r) }}),
		)
		rec := e.Filtered()[1].Original

		require.True(t, e.RequestDelete(ctx, rec))
		assert.Empty(t, deleted)
		assert.Equal(t, DeleteMessage("2"), conf.message)
		assert.Contains(t, conf.message, "no se puede revertir")

		conf.onConfirm(ctx)
		require.Len(t, deleted, 1)
		assert.Equal(t, rec, deleted[0])
	})

	t.Run("cancelled", func(t *testing.T) {
		var deleted []Record
		conf := &fakeConfirmer{}
		e := newTestEngine(t, testRecords(3),
			WithConfirmer(conf),
			WithListener(Listener{OnDelete: func(_ context.Context, r Record) { deleted = append(deleted, r) }}),
		)

		require.True(t, e.RequestDelete(ctx, e.Filtered()[0].Original))
		conf.onCancel(ctx)
		assert.Empty(t, deleted)
	})

	t.Run("no confirmer", func(t *testing.T) {
		called := false
		e := newTestEngine(t, testRecords(1),
			WithListener(Listener{OnDelete: func(context.Context, Record) { called = true }}),
		)
		assert.False(t, e.RequestDelete(ctx, e.Filtered()[0].Original))
		assert.False(t, called)
	})
}

func TestEngine_SetColumnsUnknownTypeFallsBackToText(t *testing.T) {
	var logs bytes.Buffer
	e := New(Props{}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	e.SetColumns([]Column{{Key: "x", Label: "X", Type: "rating"}})

	assert.Equal(t, TypeText, e.Columns()[0].Type)
	assert.Contains(t, logs.String(), "column format rejected")
}

func TestEngine_Cells(t *testing.T) {
	e := New(Props{})
	e.SetColumns([]Column{
		{Key: "id", Label: "ID", Align: AlignCenter, Type: TypeInteger},
		{Key: "valor", Label: "Valor", Type: TypeMoney, CSSClassField: "clase"},
		{Key: "web", Label: "Web", Type: TypeLink, FormatOptions: Options{"href": "/buscar/{value}"}},
		{Key: "estado", Label: "Estado", Type: TypeBadge},
		{Key: "tipo", Label: "Tipo", Type: "icono", FormatOptions: Options{"clave_class": "icono", "clave_title": "titulo"}},
	})
	e.SetData([]Record{{
		"id": 7, "valor": 1234.5, "clase": "text-end", "web": "a b",
		"estado": `<span class="badge">Activo</span>`, "icono": "fas fa-file", "titulo": "Contrato",
	}})

	cells := e.Cells(e.CurrentRows()[0])
	require.Len(t, cells, 5)

	assert.Equal(t, Cell{Text: "7", Type: TypeInteger, Align: AlignCenter}, cells[0])
	assert.Equal(t, "$ 1.234,50", cells[1].Text)
	assert.Equal(t, "text-end", cells[1].Class)
	assert.Equal(t, AlignLeft, cells[1].Align)
	assert.Equal(t, "/buscar/a%20b", cells[2].Href)
	assert.True(t, cells[3].Trusted)
	assert.Equal(t, `<span class="badge">Activo</span>`, cells[3].Text)
	require.NotNil(t, cells[4].Icon)
	assert.Equal(t, Icon{Class: "fas fa-file", Title: "Contrato"}, *cells[4].Icon)
	assert.False(t, cells[4].Trusted)

	assert.Equal(t, Cell{}, e.Cell(e.CurrentRows()[0], 9))
}

func TestEngine_OptionLabelStripsMarkup(t *testing.T) {
	e := New(Props{})
	e.SetColumns([]Column{{Key: "estado", Label: "Estado", Type: TypeBadge}, {Key: "valor", Label: "Valor", Type: TypeMoney}})

	assert.Equal(t, "Activo & listo", e.OptionLabel("Estado", `<span class="badge">Activo &amp; listo</span>`))
	assert.Equal(t, "$ 10,00", e.OptionLabel("valor", 10))
}

func TestEngine_RowLookup(t *testing.T) {
	e := New(Props{IDField: "codigo"})
	e.SetData([]Record{{"codigo": "A-1"}, {"codigo": 2}})

	r, ok := e.Row("2")
	require.True(t, ok)
	assert.Equal(t, 2, r.Original["codigo"])
	_, ok = e.Row("3")
	assert.False(t, ok)
}

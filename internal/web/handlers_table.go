package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/logging"
	"github.com/JonMunkholm/secretaria/internal/notify"
	"github.com/JonMunkholm/secretaria/internal/table"
	"github.com/JonMunkholm/secretaria/internal/views"
	mw "github.com/JonMunkholm/secretaria/internal/web/middleware"
	"github.com/JonMunkholm/secretaria/internal/web/templates"
)

// Messages shown after row operations.
const (
	msgDeleted = "Registro eliminado correctamente"
	msgUpdated = "Registro actualizado correctamente"
)

type viewKey struct{}

// viewCtx resolves {view}, checks the user may open it and attaches the
// view to the request.
func (s *Server) viewCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := views.Get(chi.URLParam(r, "view"))
		if !ok {
			s.respondError(w, r, fmt.Errorf("%w: %s", errViewNotFound, chi.URLParam(r, "view")), http.StatusNotFound)
			return
		}
		if !v.Allowed(auth.FromContext(r.Context())) {
			logging.FromContext(r.Context()).Warn("view not allowed", "view", v.Key)
			mw.Redirect(w, r, mw.HomePath)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewKey{}, v)))
	})
}

func viewFrom(r *http.Request) views.View {
	v, _ := r.Context().Value(viewKey{}).(views.View)
	return v
}

// newInstance builds a fresh engine for the view and loads its data.
func (s *Server) newInstance(ctx context.Context, v views.View, p period) (*instance, error) {
	inst := &instance{view: v, optionQuery: make(map[string]string), period: p}

	opts := []table.Option{
		table.WithLogger(logging.WithFields(ctx, "view", v.Key)),
		table.WithConfirmer(s.notifier),
		table.WithListener(table.Listener{
			OnAction: func(ctx context.Context, ev table.ActionEvent) { s.onAction(ctx, inst, ev) },
			OnDelete: func(ctx context.Context, rec table.Record) { s.onDelete(ctx, inst, rec) },
		}),
	}
	if v.PageSize == 0 {
		opts = append(opts, table.WithPageSize(s.cfg.Table.PageSize))
	}
	e, err := v.NewEngine(auth.FromContext(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("build table %s: %w", v.Key, err)
	}
	inst.engine = e
	s.reload(ctx, inst)
	return inst, nil
}

// reload fetches the view's records into the engine. Failures are reported
// to the user and leave the engine with an empty dataset. Callers hold
// inst.mu or own inst exclusively.
func (s *Server) reload(ctx context.Context, inst *instance) {
	records, err := s.fetch(ctx, inst.view, inst.period)
	if err != nil {
		logging.FromContext(ctx).Error("failed to load records", "view", inst.view.Key, "error", err)
		if sid := notify.SessionFrom(ctx); sid != "" {
			s.notifier.Error(sid, api.FormatUserError(err))
		}
		records = nil
	}
	inst.engine.SetData(records)
	clear(inst.optionQuery)
}

func (s *Server) fetch(ctx context.Context, v views.View, p period) ([]table.Record, error) {
	var out []table.Record
	err := s.call(ctx, func(svc *api.Services) error {
		var err error
		if v.Resource == "actividades" && p.set() {
			out, err = svc.Actividades.PorPeriodo(ctx, p.ContratoID, p.Mes, p.Anio)
			return err
		}
		res, ok := svc.For(v.Resource)
		if !ok {
			return fmt.Errorf("no backend collection %q", v.Resource)
		}
		out, err = res.List(ctx)
		return err
	})
	return out, err
}

// instanceFor returns the cached instance of the request's view, building
// it when missing.
func (s *Server) instanceFor(r *http.Request) (*instance, error) {
	v := viewFrom(r)
	sid := sessionID(r)
	if inst, ok := s.instances.get(sid, v.Key); ok {
		return inst, nil
	}
	inst, err := s.newInstance(r.Context(), v, period{})
	if err != nil {
		return nil, err
	}
	s.instances.put(sid, inst)
	return inst, nil
}

// handleList renders the full page of a view with freshly loaded data.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	p := parsePeriod(r.URL.Query())
	inst, err := s.newInstance(r.Context(), v, p)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.instances.put(sessionID(r), inst)

	inst.mu.Lock()
	tv := snapshot(inst)
	inst.mu.Unlock()

	var extra templ.Component
	if v.Resource == "actividades" {
		extra = templates.PeriodForm(v.RootPath(), formatID(p.ContratoID), formatInt(p.Mes), formatInt(p.Anio))
	}
	s.render(w, r, http.StatusOK, templates.ListPage(s.page(r, v.Title, v.Key, v.Breadcrumb), v.Title, tv, extra))
}

func parsePeriod(q url.Values) period {
	id, _ := strconv.ParseInt(q.Get("contrato_id"), 10, 64)
	mes, _ := strconv.Atoi(q.Get("mes"))
	anio, _ := strconv.Atoi(q.Get("anio"))
	return period{ContratoID: id, Mes: mes, Anio: anio}
}

func formatID(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func formatInt(n int) string {
	return formatID(int64(n))
}

// mutate runs op on the request's engine under its lock and answers with the
// re-rendered table.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, inst *instance) error) {
	inst, err := s.instanceFor(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	ctx, out := withOutcome(r.Context())
	inst.mu.Lock()
	err = op(ctx, inst)
	tv := snapshot(inst)
	inst.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if out.redirect != "" {
		mw.Redirect(w, r, out.redirect)
		return
	}
	s.renderTable(w, r, tv)
}

// renderTable writes the table partial followed by the overlay as an
// out-of-band swap.
func (s *Server) renderTable(w http.ResponseWriter, r *http.Request, tv templates.TableView) {
	ret := viewFrom(r).RootPath()
	if cur := r.Header.Get("HX-Current-URL"); cur != "" {
		if u, err := url.Parse(cur); err == nil {
			ret = mw.SafeReturn(u.RequestURI(), ret)
		}
	}
	s.render(w, r, http.StatusOK, templ.Join(templates.Table(tv), templates.OverlayOOB(s.overlay(r, ret))))
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(context.Context, *instance) error { return nil })
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.FormValue("q")
	s.mutate(w, r, func(_ context.Context, inst *instance) error {
		inst.engine.Search(q)
		return nil
	})
}

func (s *Server) handlePageSize(w http.ResponseWriter, r *http.Request) {
	// Invalid sizes fall back to the engine default.
	n, _ := strconv.Atoi(r.FormValue("size"))
	s.mutate(w, r, func(_ context.Context, inst *instance) error {
		inst.engine.SetPageSize(n)
		return nil
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	s.mutate(w, r, func(ctx context.Context, inst *instance) error {
		if err != nil || !inst.engine.GoToPage(n) {
			logging.FromContext(ctx).Debug("page out of range", "page", chi.URLParam(r, "n"))
		}
		return nil
	})
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(_ context.Context, inst *instance) error {
		inst.engine.ResetFilters()
		clear(inst.optionQuery)
		return nil
	})
}

func (s *Server) handleFilterMenu(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "column")
	s.mutate(w, r, func(ctx context.Context, inst *instance) error {
		if !inst.engine.ToggleFilterMenu(col) {
			logging.FromContext(ctx).Warn("unknown filter column", "column", col)
		}
		return nil
	})
}

func (s *Server) handleToggleAll(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "column")
	s.mutate(w, r, func(ctx context.Context, inst *instance) error {
		if !inst.engine.ToggleAllOptions(col) {
			logging.FromContext(ctx).Warn("unknown filter column", "column", col)
		}
		return nil
	})
}

func (s *Server) handleToggleOption(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "column")
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	s.mutate(w, r, func(ctx context.Context, inst *instance) error {
		if err != nil || !inst.engine.ToggleFilterOption(col, idx) {
			logging.FromContext(ctx).Warn("unknown filter option", "column", col, "index", chi.URLParam(r, "index"))
		}
		return nil
	})
}

func (s *Server) handleOptionSearch(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "column")
	q := r.FormValue("q")
	s.mutate(w, r, func(_ context.Context, inst *instance) error {
		inst.optionQuery[col] = q
		return nil
	})
}

func (s *Server) handleActionMenu(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutate(w, r, func(_ context.Context, inst *instance) error {
		inst.engine.ToggleActionMenu(id)
		return nil
	})
}

func (s *Server) handleCloseMenus(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(_ context.Context, inst *instance) error {
		inst.engine.CloseMenus()
		return nil
	})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	id := chi.URLParam(r, "id")
	s.mutate(w, r, func(ctx context.Context, inst *instance) error {
		row, ok := inst.engine.Row(id)
		if !ok {
			inst.engine.CloseMenus()
			return fmt.Errorf("%w: %s", errRecordNotFound, id)
		}
		if !inst.engine.SelectAction(ctx, action, id, row.Original) {
			return fmt.Errorf("%w: %s", errUnknownAction, action)
		}
		return nil
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutate(w, r, func(ctx context.Context, inst *instance) error {
		row, ok := inst.engine.Row(id)
		if !ok {
			inst.engine.CloseMenus()
			return fmt.Errorf("%w: %s", errRecordNotFound, id)
		}
		if !inst.engine.Props().ShowDelete {
			inst.engine.CloseMenus()
			return fmt.Errorf("%w: %s", errUnknownAction, table.ActionDelete)
		}
		s.requestDelete(ctx, inst, row.Original)
		return nil
	})
}

// onAction handles the events an engine emits. It runs with inst.mu held.
func (s *Server) onAction(ctx context.Context, inst *instance, ev table.ActionEvent) {
	root := inst.view.RootPath()
	id := url.PathEscape(ev.ID)
	switch ev.Action {
	case table.ActionView:
		redirectTo(ctx, root+"/"+id)
	case table.ActionEdit:
		redirectTo(ctx, root+"/"+id+"/editar")
	case table.ActionDelete:
		s.requestDelete(ctx, inst, ev.Record)
	case "roles":
		redirectTo(ctx, "/v/usuarios/"+id+"/roles")
	case "permisos":
		redirectTo(ctx, "/v/roles/"+id+"/permisos")
	case "cambiar-estado":
		s.confirmToggleUser(ctx, inst, ev.Record)
	default:
		logging.FromContext(ctx).Warn("table action has no handler", "view", inst.view.Key, "action", ev.Action)
	}
}

// requestDelete refuses guarded records and otherwise asks the engine to
// confirm the deletion. It runs with inst.mu held.
func (s *Server) requestDelete(ctx context.Context, inst *instance, rec table.Record) {
	if inst.view.Guard.Blocks(rec) {
		inst.engine.CloseMenus()
		s.notifier.Warning(notify.SessionFrom(ctx), inst.view.Guard.Message)
		return
	}
	inst.engine.RequestDelete(ctx, rec)
}

// onDelete runs once the user confirms a deletion, from the request that
// answered the confirmation. Contracts are liquidated rather than removed.
func (s *Server) onDelete(ctx context.Context, inst *instance, rec table.Record) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	id := rec[idField(inst.view)]
	sid := notify.SessionFrom(ctx)
	err := s.call(ctx, func(svc *api.Services) error {
		if inst.view.Resource == "contratos" {
			return svc.Contratos.CambiarEstado(ctx, id, api.EstadoLiquidado)
		}
		res, ok := svc.For(inst.view.Resource)
		if !ok {
			return fmt.Errorf("no backend collection %q", inst.view.Resource)
		}
		return res.Delete(ctx, id)
	})
	if err != nil {
		logging.FromContext(ctx).Error("delete failed", "view", inst.view.Key, "id", id, "error", err)
		s.notifier.Error(sid, api.FormatUserError(err))
		return
	}
	logging.FromContext(ctx).Info("record deleted", "view", inst.view.Key, "id", id)
	s.notifier.Success(sid, msgDeleted)
	s.reload(ctx, inst)
}

// confirmToggleUser asks before activating or deactivating a user.
func (s *Server) confirmToggleUser(ctx context.Context, inst *instance, rec table.Record) {
	activo := truthy(rec["activo"])
	verb, done := "activar", "activado"
	if activo {
		verb, done = "desactivar", "desactivado"
	}
	nombre := fmt.Sprint(rec["nombre"])
	if rec["nombre"] == nil {
		nombre = fmt.Sprint(rec["email"])
	}
	id := rec[idField(inst.view)]

	s.notifier.Confirm(ctx, fmt.Sprintf(`¿Está seguro de %s al usuario "%s"?`, verb, nombre),
		func(ctx context.Context) {
			inst.mu.Lock()
			defer inst.mu.Unlock()

			sid := notify.SessionFrom(ctx)
			err := s.call(ctx, func(svc *api.Services) error {
				return svc.Usuarios.CambiarEstado(ctx, id, !activo)
			})
			if err != nil {
				s.notifier.Error(sid, api.FormatUserError(err))
				return
			}
			s.notifier.Success(sid, "Usuario "+done+" correctamente")
			s.reload(ctx, inst)
		}, nil)
}

func idField(v views.View) string {
	if v.IDField != "" {
		return v.IDField
	}
	return "id"
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	}
	return false
}

// snapshot copies what the table partial needs out of the engine. Callers
// hold inst.mu.
func snapshot(inst *instance) templates.TableView {
	e := inst.engine
	props := e.Props()
	tv := templates.TableView{
		Key:           inst.view.Key,
		Root:          inst.view.RootPath(),
		Query:         e.Query(),
		ShowSearch:    props.ShowSearch,
		ActiveFilters: e.ActiveFilterCount(),
		Page:          e.CurrentPage(),
		PageCount:     e.PageCount(),
		PageSize:      e.PageSize(),
		Shown:         len(e.Filtered()),
		Total:         e.Total(),
	}

	filterable := make(map[string]bool)
	for _, c := range e.FilterColumns() {
		filterable[c.Key] = true
	}
	openFilter, filterOpen := e.OpenFilterMenu()
	for _, c := range e.Columns() {
		h := templates.Header{Label: c.Label, Align: c.Align}
		if h.Align == "" {
			h.Align = table.AlignLeft
		}
		if filterable[c.Key] {
			m := &templates.FilterMenu{
				Column:      c.Key,
				Open:        filterOpen && openFilter == c.Key,
				Active:      e.IsFiltered(c.Key),
				Query:       inst.optionQuery[c.Key],
				AllSelected: e.AllSelected(c.Key),
				Selected:    e.SelectedCount(c.Key),
			}
			if m.Open {
				for _, o := range e.FilterOptions(c.Key, m.Query) {
					m.Options = append(m.Options, templates.OptionView{
						Index:    o.Index,
						Label:    e.OptionLabel(c.Key, o.Value),
						Selected: o.Selected,
					})
				}
			}
			h.Filter = m
		}
		tv.Headers = append(tv.Headers, h)
	}

	openRow, rowOpen := e.OpenActionMenu()
	for _, row := range e.CurrentRows() {
		id := e.RowID(row.Original)
		tv.Rows = append(tv.Rows, templates.Row{
			ID:       id,
			Cells:    e.Cells(row),
			MenuOpen: rowOpen && openRow == id,
		})
	}

	if props.ShowView {
		tv.Actions = append(tv.Actions, table.Action{ID: table.ActionView, Label: "Consultar", Icon: "fas fa-eye"})
	}
	if props.ShowEdit {
		tv.Actions = append(tv.Actions, table.Action{ID: table.ActionEdit, Label: "Editar", Icon: "fas fa-edit"})
	}
	tv.Actions = append(tv.Actions, e.Actions()...)
	if props.ShowDelete {
		tv.Actions = append(tv.Actions, table.Action{ID: table.ActionDelete, Label: "Eliminar", Icon: "fas fa-trash"})
	}
	return tv
}

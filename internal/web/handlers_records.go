package web

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/logging"
	"github.com/JonMunkholm/secretaria/internal/table"
	"github.com/JonMunkholm/secretaria/internal/views"
	mw "github.com/JonMunkholm/secretaria/internal/web/middleware"
	"github.com/JonMunkholm/secretaria/internal/web/templates"
)

// getRecord fetches one record of a view from the backend.
func (s *Server) getRecord(ctx context.Context, v views.View, id string) (table.Record, error) {
	var rec table.Record
	err := s.call(ctx, func(svc *api.Services) error {
		var err error
		if v.Resource == "actividades" {
			rec, err = svc.Actividades.Get(ctx, id)
			return err
		}
		res, ok := svc.For(v.Resource)
		if !ok {
			return fmt.Errorf("no backend collection %q", v.Resource)
		}
		rec, err = res.Get(ctx, id)
		return err
	})
	return rec, err
}

// handleDetail renders one record with the view's columns and formats.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	p := auth.FromContext(r.Context())
	props := v.Props(p)
	if !props.ShowView {
		mw.Redirect(w, r, v.RootPath())
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := s.getRecord(r.Context(), v, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	// A one-row engine renders the cells exactly as the list does.
	e, err := v.NewEngine(p, table.WithLogger(logging.WithFields(r.Context(), "view", v.Key)))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	e.SetData([]table.Record{rec})
	row := e.CurrentRows()[0]

	d := templates.Detail{
		Title: v.Title + " · " + id,
		Back:  v.RootPath(),
	}
	if props.ShowEdit {
		d.EditURL = v.RootPath() + "/" + url.PathEscape(id) + "/editar"
	}
	for i, c := range e.Columns() {
		d.Fields = append(d.Fields, templates.Field{Label: c.Label, Cell: e.Cell(row, i)})
	}
	crumbs := append(slices.Clone(v.Breadcrumb), "Detalle")
	s.render(w, r, http.StatusOK, templates.DetailPage(s.page(r, d.Title, v.Key, crumbs), d))
}

// editableFields lists the scalar fields of rec in key order. The id and
// timestamps are not editable.
func editableFields(rec table.Record, idKey string) []templates.EditField {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	title := cases.Title(language.Spanish)
	var out []templates.EditField
	for _, k := range keys {
		if k == idKey || strings.HasSuffix(k, "_at") || strings.HasPrefix(k, "fecha_creacion") {
			continue
		}
		f := templates.EditField{Name: k, Label: title.String(strings.ReplaceAll(k, "_", " "))}
		switch v := rec[k].(type) {
		case string:
			f.Kind, f.Value = "text", v
		case float64:
			f.Kind, f.Value = "number", strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			f.Kind, f.Value = "checkbox", strconv.FormatBool(v)
		default:
			continue
		}
		out = append(out, f)
	}
	return out
}

// applyForm copies submitted values onto the editable fields of rec.
func applyForm(rec table.Record, form url.Values, fields []templates.EditField) error {
	for _, f := range fields {
		vals, ok := form[f.Name]
		if !ok {
			continue
		}
		// Checkboxes post a hidden "false" before the box's "true".
		raw := vals[len(vals)-1]
		switch f.Kind {
		case "number":
			n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("campo %s: número inválido %q", f.Label, raw)
			}
			rec[f.Name] = n
		case "checkbox":
			rec[f.Name] = raw == "true"
		default:
			rec[f.Name] = raw
		}
	}
	return nil
}

func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	if !v.Props(auth.FromContext(r.Context())).ShowEdit {
		mw.Redirect(w, r, v.RootPath())
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := s.getRecord(r.Context(), v, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	f := templates.EditForm{
		Title:  "Editar " + strings.ToLower(v.Title) + " " + id,
		Action: r.URL.Path,
		Back:   v.RootPath(),
		ID:     id,
		Fields: editableFields(rec, idField(v)),
	}
	crumbs := append(slices.Clone(v.Breadcrumb), "Editar")
	s.render(w, r, http.StatusOK, templates.EditPage(s.page(r, f.Title, v.Key, crumbs), f))
}

// handleSaveEdit writes the form back with a PUT of the whole record.
func (s *Server) handleSaveEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := viewFrom(r)
	if !v.Props(auth.FromContext(ctx)).ShowEdit {
		mw.Redirect(w, r, v.RootPath())
		return
	}
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	rec, err := s.getRecord(ctx, v, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := applyForm(rec, r.PostForm, editableFields(rec, idField(v))); err != nil {
		s.notifier.Error(sessionID(r), err.Error())
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	err = s.call(ctx, func(svc *api.Services) error {
		res, ok := svc.For(v.Resource)
		if !ok {
			return fmt.Errorf("no backend collection %q", v.Resource)
		}
		_, err := res.Update(ctx, rec)
		return err
	})
	if err != nil {
		logging.FromContext(ctx).Error("update failed", "view", v.Key, "id", id, "error", err)
		s.notifier.Error(sessionID(r), api.FormatUserError(err))
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	logging.FromContext(ctx).Info("record updated", "view", v.Key, "id", id)
	s.instances.drop(sessionID(r), v.Key)
	s.notifier.Success(sessionID(r), msgUpdated)
	http.Redirect(w, r, v.RootPath(), http.StatusSeeOther)
}

// displayName is the record's nombre, or fallback.
func displayName(rec table.Record, fallback string) string {
	if n, ok := rec["nombre"].(string); ok && n != "" {
		return n
	}
	return fallback
}

// roleNames reads the roles of a user record, which arrive either as names
// or as role objects.
func roleNames(v any) []string {
	items, _ := v.([]any)
	var out []string
	for _, it := range items {
		switch t := it.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if n, ok := t["nombre"].(string); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

func (s *Server) handleRolesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var (
		user  table.Record
		roles []table.Record
	)
	err := s.call(ctx, func(svc *api.Services) error {
		var err error
		if user, err = svc.Usuarios.Get(ctx, id); err != nil {
			return err
		}
		roles, err = svc.Roles.List(ctx)
		return err
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	current := roleNames(user["roles"])
	f := templates.RolesForm{
		Title:  "Roles de " + displayName(user, id),
		Action: r.URL.Path,
		Back:   "/v/usuarios",
	}
	for _, rol := range roles {
		name, _ := rol["nombre"].(string)
		if name == "" {
			continue
		}
		label := name
		if d, ok := rol["descripcion"].(string); ok && d != "" {
			label = name + ": " + d
		}
		f.Options = append(f.Options, templates.RoleOption{
			Name:     name,
			Label:    label,
			Selected: slices.Contains(current, name),
		})
	}
	s.render(w, r, http.StatusOK, templates.RolesPage(s.page(r, f.Title, "usuarios", []string{"Configuración", "Usuarios", "Roles"}), f))
}

func (s *Server) handleSaveRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	roles := r.PostForm["roles"]
	if roles == nil {
		roles = []string{}
	}

	// The backend expects numeric user ids where it can get them.
	var userID any = id
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		userID = n
	}
	err := s.call(ctx, func(svc *api.Services) error {
		return svc.Usuarios.AsignarRoles(ctx, userID, roles)
	})
	if err != nil {
		logging.FromContext(ctx).Error("assign roles failed", "user_id", id, "error", err)
		s.notifier.Error(sessionID(r), api.FormatUserError(err))
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	s.instances.drop(sessionID(r), "usuarios")
	s.notifier.Success(sessionID(r), "Roles actualizados correctamente")
	http.Redirect(w, r, "/v/usuarios", http.StatusSeeOther)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var (
		rol      table.Record
		permisos []api.Permiso
	)
	err := s.call(ctx, func(svc *api.Services) error {
		var err error
		if rol, err = svc.Roles.Get(ctx, id); err != nil {
			return err
		}
		permisos, err = svc.Roles.Permisos(ctx, id)
		return err
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	slices.SortFunc(permisos, func(a, b api.Permiso) int {
		return cmp.Or(cmp.Compare(a.Modulo, b.Modulo), cmp.Compare(a.Nombre, b.Nombre))
	})
	var groups []templates.PermissionGroup
	for _, p := range permisos {
		mod := cmp.Or(p.Modulo, "General")
		if len(groups) == 0 || groups[len(groups)-1].Module != mod {
			groups = append(groups, templates.PermissionGroup{Module: mod})
		}
		name := p.Nombre
		if p.Descripcion != "" {
			name += ": " + p.Descripcion
		}
		g := &groups[len(groups)-1]
		g.Names = append(g.Names, name)
	}

	title := "Permisos del rol " + displayName(rol, id)
	s.render(w, r, http.StatusOK, templates.PermissionsPage(s.page(r, title, "roles", []string{"Configuración", "Roles", "Permisos"}), title, "/v/roles", groups))
}

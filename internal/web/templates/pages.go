package templates

import (
	"fmt"
	"sort"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// LoginForm is the state of the login page.
type LoginForm struct {
	Email     string
	ReturnURL string
	Error     string
}

// LoginPage renders the sign-in form.
func LoginPage(p Page, f LoginForm) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<section class="login"><h1>Iniciar sesión</h1>`)
		if f.Error != "" {
			h.render(ErrorAlert(f.Error, "", ""))
		}
		h.raw(`<form method="post" action="/login">`,
			`<input type="hidden" name="returnUrl" value="`, esc(f.ReturnURL), `">`,
			`<label>Correo electrónico<input type="email" name="email" required autofocus value="`, esc(f.Email), `"></label>`,
			`<label>Contraseña<input type="password" name="password" required></label>`,
			`<button type="submit" class="btn btn-primary">Ingresar</button>`,
			`</form></section>`)
	}))
}

// MenuPage lists the views the user may open, by group.
func MenuPage(p Page) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<h1>Bienvenido`)
		if p.User != nil {
			h.raw(`, `)
			h.text(p.User.Nombre)
		}
		h.raw(`</h1>`)
		if len(p.Menu) == 0 {
			h.raw(`<p class="muted">No tiene vistas disponibles. Solicite permisos a un administrador.</p>`)
			return
		}
		for _, g := range p.Menu {
			h.raw(`<section class="menu-cards"><h2>`)
			h.text(g.Name)
			h.raw(`</h2><div class="cards">`)
			for _, it := range g.Items {
				h.raw(`<a class="card" href="`, href(it.Href), `"><i class="`, esc(it.Icon), `"></i><span>`)
				h.text(it.Title)
				h.raw(`</span></a>`)
			}
			h.raw(`</div></section>`)
		}
	}))
}

// Field is one labelled cell on a detail page.
type Field struct {
	Label string
	Cell  table.Cell
}

// Detail is the state of a record detail page.
type Detail struct {
	Title   string
	Back    string
	EditURL string
	Fields  []Field
}

// DetailPage renders a read-only record.
func DetailPage(p Page, d Detail) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<div class="page-header"><h1>`)
		h.text(d.Title)
		h.raw(`</h1><div class="actions"><a class="btn" href="`, href(d.Back), `">Volver</a>`)
		if d.EditURL != "" {
			h.raw(`<a class="btn btn-primary" href="`, href(d.EditURL), `">Editar</a>`)
		}
		h.raw(`</div></div><dl class="detail">`)
		for _, f := range d.Fields {
			h.raw(`<dt>`)
			h.text(f.Label)
			h.raw(`</dt><dd>`)
			h.render(CellContent(f.Cell))
			h.raw(`</dd>`)
		}
		h.raw(`</dl>`)
	}))
}

// EditField is one editable scalar of a record.
type EditField struct {
	Name  string
	Label string
	Value string
	Kind  string // text, number or checkbox
}

// EditForm is the state of a record edit page.
type EditForm struct {
	Title  string
	Action string
	Back   string
	ID     string
	Fields []EditField
}

// EditPage renders a simple form over the scalar fields of a record.
func EditPage(p Page, f EditForm) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<h1>`)
		h.text(f.Title)
		h.raw(`</h1><form method="post" class="edit" action="`, href(f.Action), `">`,
			`<input type="hidden" name="id" value="`, esc(f.ID), `">`)
		for _, fld := range f.Fields {
			h.raw(`<label>`)
			h.text(fld.Label)
			switch fld.Kind {
			case "checkbox":
				checked := ""
				if fld.Value == "true" {
					checked = " checked"
				}
				h.raw(`<input type="hidden" name="`, esc(fld.Name), `" value="false">`,
					`<input type="checkbox" name="`, esc(fld.Name), `" value="true"`, checked, `>`)
			case "number":
				h.raw(`<input type="number" step="any" name="`, esc(fld.Name), `" value="`, esc(fld.Value), `">`)
			default:
				h.raw(`<input type="text" name="`, esc(fld.Name), `" value="`, esc(fld.Value), `">`)
			}
			h.raw(`</label>`)
		}
		h.raw(`<div class="actions"><a class="btn" href="`, href(f.Back), `">Cancelar</a>`,
			`<button type="submit" class="btn btn-primary">Guardar</button></div></form>`)
	}))
}

// RoleOption is one checkbox on the role assignment page.
type RoleOption struct {
	Name     string
	Label    string
	Selected bool
}

// RolesForm is the state of the role assignment page.
type RolesForm struct {
	Title   string
	Action  string
	Back    string
	Options []RoleOption
}

// RolesPage renders the role assignment form of a user.
func RolesPage(p Page, f RolesForm) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<h1>`)
		h.text(f.Title)
		h.raw(`</h1><form method="post" class="roles" action="`, href(f.Action), `">`)
		for _, o := range f.Options {
			checked := ""
			if o.Selected {
				checked = " checked"
			}
			h.raw(`<label class="check"><input type="checkbox" name="roles" value="`, esc(o.Name), `"`, checked, `> `)
			h.text(o.Label)
			h.raw(`</label>`)
		}
		h.raw(`<div class="actions"><a class="btn" href="`, href(f.Back), `">Cancelar</a>`,
			`<button type="submit" class="btn btn-primary">Guardar</button></div></form>`)
	}))
}

// PermissionGroup is the permissions of one module.
type PermissionGroup struct {
	Module string
	Names  []string
}

// PermissionsPage lists the permissions granted to a role.
func PermissionsPage(p Page, title, back string, groups []PermissionGroup) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<div class="page-header"><h1>`)
		h.text(title)
		h.raw(`</h1><a class="btn" href="`, href(back), `">Volver</a></div>`)
		if len(groups) == 0 {
			h.raw(`<p class="muted">El rol no tiene permisos asignados.</p>`)
			return
		}
		for _, g := range groups {
			h.raw(`<section class="permissions"><h3>`)
			h.text(g.Module)
			h.raw(`</h3><ul>`)
			for _, n := range g.Names {
				h.raw(`<li>`)
				h.text(n)
				h.raw(`</li>`)
			}
			h.raw(`</ul></section>`)
		}
	}))
}

// PeriodForm narrows the activity list to one contract and month.
func PeriodForm(root, contratoID, mes, anio string) templ.Component {
	return component(func(h *writer) {
		h.raw(`<form method="get" class="period" action="`, href(root), `">`,
			`<label>Contrato<input type="number" name="contrato_id" value="`, esc(contratoID), `"></label>`,
			`<label>Mes<input type="number" min="1" max="12" name="mes" value="`, esc(mes), `"></label>`,
			`<label>Año<input type="number" min="2000" name="anio" value="`, esc(anio), `"></label>`,
			`<button type="submit" class="btn">Consultar</button></form>`)
	})
}

// SessionsPage lists the user's open sessions as the backend reports them.
func SessionsPage(p Page, sessions []map[string]any) templ.Component {
	return Layout(p, component(func(h *writer) {
		h.raw(`<div class="page-header"><h1>Sesiones activas</h1>`,
			`<form method="post" action="/sesiones/cerrar"><button type="submit" class="btn btn-danger">Cerrar todas las sesiones</button></form></div>`)
		if len(sessions) == 0 {
			h.raw(`<p class="muted">No hay sesiones registradas.</p>`)
			return
		}
		for _, s := range sessions {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			h.raw(`<dl class="detail session">`)
			for _, k := range keys {
				h.raw(`<dt>`)
				h.text(k)
				h.raw(`</dt><dd>`)
				h.text(fmt.Sprint(s[k]))
				h.raw(`</dd>`)
			}
			h.raw(`</dl>`)
		}
	}))
}

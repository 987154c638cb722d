// Package views declares the list pages of the console. Each view names the
// backend resource it lists and carries the column, filter and action
// configuration for its table, decoded from embedded YAML.
package views

import (
	"slices"
	"strings"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// Permissions is the subset of the auth collaborator views consult.
type Permissions interface {
	HasPermission(name string) bool
	HasAnyPermission(names ...string) bool
}

// ActionDef is a custom row action and the permission needed to see it.
type ActionDef struct {
	table.Action
	Permission string
}

// RowActions gates the built-in row actions. A nil field hides the action;
// an empty permission shows it to everyone.
type RowActions struct {
	View   *string
	Edit   *string
	Delete *string
}

// DeleteGuard refuses deletion of records whose Field holds one of Values.
type DeleteGuard struct {
	Field   string
	Values  []string
	Message string
}

// Blocks reports whether the guard refuses to delete rec.
func (g *DeleteGuard) Blocks(rec table.Record) bool {
	if g == nil || g.Field == "" {
		return false
	}
	v, ok := rec[g.Field].(string)
	return ok && slices.ContainsFunc(g.Values, func(s string) bool {
		return strings.EqualFold(s, v)
	})
}

// View is one list page.
type View struct {
	Key         string
	Group       string
	Title       string
	Icon        string
	Breadcrumb  []string
	Resource    string
	IDField     string
	Permissions []string // any of

	Columns    []table.Column
	Formats    []table.Format
	Filterable []string
	Actions    []ActionDef
	RowActions RowActions
	Decorator  table.Decorator
	Guard      *DeleteGuard
	PageSize   int
}

// RootPath is where the view is served.
func (v View) RootPath() string {
	return "/v/" + v.Key
}

// Allowed reports whether p may open the view.
func (v View) Allowed(p Permissions) bool {
	return len(v.Permissions) == 0 || p.HasAnyPermission(v.Permissions...)
}

func gate(perm *string, p Permissions) bool {
	if perm == nil {
		return false
	}
	return *perm == "" || p.HasPermission(*perm)
}

// Props returns the table input surface for a user.
func (v View) Props(p Permissions) table.Props {
	return table.Props{
		RootPath:   v.RootPath(),
		ShowView:   gate(v.RowActions.View, p),
		ShowEdit:   gate(v.RowActions.Edit, p),
		ShowDelete: gate(v.RowActions.Delete, p),
		ShowSearch: true,
		IDField:    v.IDField,
	}
}

// ActionsFor returns the custom actions a user may see.
func (v View) ActionsFor(p Permissions) []table.Action {
	var out []table.Action
	for _, a := range v.Actions {
		if a.Permission == "" || p.HasPermission(a.Permission) {
			out = append(out, a.Action)
		}
	}
	return out
}

// NewEngine builds a table engine configured for this view and user.
func (v View) NewEngine(p Permissions, opts ...table.Option) (*table.Engine, error) {
	if v.Decorator != nil {
		opts = append([]table.Option{table.WithDecorator(v.Decorator)}, opts...)
	}
	if v.PageSize > 0 {
		opts = append([]table.Option{table.WithPageSize(v.PageSize)}, opts...)
	}
	e := table.New(v.Props(p), opts...)
	if err := e.SetBoundColumns(v.Columns, v.Formats); err != nil {
		return nil, err
	}
	e.SetFilterableColumns(v.Filterable)
	e.SetActions(v.ActionsFor(p))
	return e, nil
}

package views

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/secretaria/internal/table"
)

//go:embed defs/*.yaml
var embedded embed.FS

type viewFile struct {
	Key         string         `yaml:"key"`
	Group       string         `yaml:"group"`
	Title       string         `yaml:"title"`
	Icon        string         `yaml:"icon"`
	Breadcrumb  []string       `yaml:"breadcrumb"`
	Resource    string         `yaml:"resource"`
	IDField     string         `yaml:"id_field"`
	Permissions []string       `yaml:"permissions"`
	Decorator   string         `yaml:"decorator"`
	PageSize    int            `yaml:"page_size"`
	Filterable  []string       `yaml:"filterable"`
	Columns     []columnFile   `yaml:"columns"`
	Actions     []actionFile   `yaml:"actions"`
	RowActions  rowActionsFile `yaml:"row_actions"`
	DeleteGuard *guardFile     `yaml:"delete_guard"`
}

type columnFile struct {
	Key      string         `yaml:"key"`
	Label    string         `yaml:"label"`
	Alias    string         `yaml:"alias"`
	Align    string         `yaml:"align"`
	Type     string         `yaml:"type"`
	Format   map[string]any `yaml:"format"`
	ClassKey string         `yaml:"class_field"`
}

type actionFile struct {
	ID         string `yaml:"id"`
	Label      string `yaml:"label"`
	Icon       string `yaml:"icon"`
	Permission string `yaml:"permission"`
}

type rowActionsFile struct {
	View   *string `yaml:"view"`
	Edit   *string `yaml:"edit"`
	Delete *string `yaml:"delete"`
}

type guardFile struct {
	Field   string   `yaml:"field"`
	Values  []string `yaml:"values"`
	Message string   `yaml:"message"`
}

// Decode parses one view definition. Unknown fields, column types and
// decorators are errors.
func Decode(data []byte) (View, error) {
	var f viewFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return View{}, fmt.Errorf("decode view: %w", err)
	}
	return f.view()
}

func (f viewFile) view() (View, error) {
	if f.Key == "" {
		return View{}, errors.New("view has no key")
	}
	if f.Resource == "" {
		return View{}, fmt.Errorf("view %s: no resource", f.Key)
	}
	if len(f.Columns) == 0 {
		return View{}, fmt.Errorf("view %s: no columns", f.Key)
	}

	v := View{
		Key:         f.Key,
		Group:       f.Group,
		Title:       f.Title,
		Icon:        f.Icon,
		Breadcrumb:  f.Breadcrumb,
		Resource:    f.Resource,
		IDField:     f.IDField,
		Permissions: f.Permissions,
		Filterable:  f.Filterable,
		PageSize:    f.PageSize,
		RowActions: RowActions{
			View:   f.RowActions.View,
			Edit:   f.RowActions.Edit,
			Delete: f.RowActions.Delete,
		},
	}
	if v.Title == "" {
		v.Title = f.Key
	}

	seen := make(map[string]bool, len(f.Columns))
	names := make(map[string]bool, len(f.Columns))
	for _, c := range f.Columns {
		if c.Key == "" {
			return View{}, fmt.Errorf("view %s: column without key", f.Key)
		}
		if seen[c.Key] {
			return View{}, fmt.Errorf("view %s: duplicate column %q", f.Key, c.Key)
		}
		seen[c.Key] = true

		t, ok := table.ParseType(c.Type)
		if !ok {
			return View{}, fmt.Errorf("view %s column %s: %w: %q", f.Key, c.Key, table.ErrUnknownType, c.Type)
		}
		format, err := table.DecodeFormat(t, c.Format)
		if err != nil {
			return View{}, fmt.Errorf("view %s column %s: %w", f.Key, c.Key, err)
		}
		col := table.Column{
			Key:           c.Key,
			Label:         c.Label,
			Alias:         c.Alias,
			Align:         table.ParseAlign(c.Align),
			Type:          t,
			FormatOptions: c.Format,
			CSSClassField: c.ClassKey,
		}
		names[col.FilterName()] = true
		v.Columns = append(v.Columns, col)
		v.Formats = append(v.Formats, format)
	}

	for _, name := range f.Filterable {
		if !names[name] && !seen[name] {
			return View{}, fmt.Errorf("view %s: filterable column %q not found", f.Key, name)
		}
	}

	for _, a := range f.Actions {
		if a.ID == "" {
			return View{}, fmt.Errorf("view %s: action without id", f.Key)
		}
		switch a.ID {
		case table.ActionView, table.ActionEdit, table.ActionDelete:
			return View{}, fmt.Errorf("view %s: action %q is built in, use row_actions", f.Key, a.ID)
		}
		v.Actions = append(v.Actions, ActionDef{
			Action:     table.Action{ID: a.ID, Label: a.Label, Icon: a.Icon},
			Permission: a.Permission,
		})
	}

	if f.Decorator != "" {
		d, ok := decorators[f.Decorator]
		if !ok {
			return View{}, fmt.Errorf("view %s: unknown decorator %q", f.Key, f.Decorator)
		}
		v.Decorator = d
	}

	if f.DeleteGuard != nil {
		v.Guard = &DeleteGuard{
			Field:   f.DeleteGuard.Field,
			Values:  f.DeleteGuard.Values,
			Message: f.DeleteGuard.Message,
		}
	}
	return v, nil
}

// LoadFS decodes every *.yaml file under dir, in file name order.
func LoadFS(fsys fs.FS, dir string) ([]View, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read view definitions: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	views := make([]View, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		v, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		views = append(views, v)
	}
	return views, nil
}

// RegisterEmbedded registers the built-in views.
func RegisterEmbedded() error {
	vs, err := LoadFS(embedded, "defs")
	if err != nil {
		return err
	}
	for _, v := range vs {
		Register(v)
	}
	return nil
}

func init() {
	if err := RegisterEmbedded(); err != nil {
		panic(err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// Contract states.
const (
	EstadoActivo     = "activo"
	EstadoSuspendido = "suspendido"
	EstadoFinalizado = "finalizado"
	EstadoLiquidado  = "liquidado"
)

// Services bundles the backend collections for one authenticated client.
type Services struct {
	Contratos    *Contratos
	Contratistas *Resource
	Entidades    *Resource
	Actividades  *Actividades
	Usuarios     *Usuarios
	Roles        *Roles
}

// NewServices binds every collection to c.
func NewServices(c *Client) *Services {
	return &Services{
		Contratos:    &Contratos{Resource: c.Resource("contratos")},
		Contratistas: c.Resource("contratistas"),
		Entidades:    c.Resource("entidades"),
		Actividades:  &Actividades{Resource: c.Resource("actividades")},
		Usuarios:     &Usuarios{Resource: c.Resource("usuarios")},
		Roles:        &Roles{Resource: c.Resource("roles")},
	}
}

// For returns the collection called name.
func (s *Services) For(name string) (*Resource, bool) {
	switch name {
	case "contratos":
		return s.Contratos.Resource, true
	case "contratistas":
		return s.Contratistas, true
	case "entidades":
		return s.Entidades, true
	case "actividades":
		return s.Actividades.Resource, true
	case "usuarios":
		return s.Usuarios.Resource, true
	case "roles":
		return s.Roles.Resource, true
	}
	return nil, false
}

// Contratos is the contracts collection.
type Contratos struct {
	*Resource
}

// CambiarEstado moves a contract to another state.
func (c *Contratos) CambiarEstado(ctx context.Context, id any, estado string) error {
	return c.patch(ctx, "estado", map[string]any{"id": id, "estado": estado})
}

// Usuarios is the users collection.
type Usuarios struct {
	*Resource
}

// CambiarEstado activates or deactivates a user.
func (u *Usuarios) CambiarEstado(ctx context.Context, id any, activo bool) error {
	return u.patch(ctx, "estado", map[string]any{"id": id, "activo": activo})
}

// AsignarRoles replaces the roles of a user.
func (u *Usuarios) AsignarRoles(ctx context.Context, id any, roles []string) error {
	return u.c.Do(ctx, http.MethodPost, u.name+"/roles", map[string]any{"id": id, "roles": roles}, nil)
}

// Permiso is one permission attached to a role.
type Permiso struct {
	ID          int64  `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Modulo      string `json:"modulo"`
}

// Roles is the roles collection.
type Roles struct {
	*Resource
}

// Permisos lists the permissions of a role.
func (r *Roles) Permisos(ctx context.Context, rolID string) ([]Permiso, error) {
	var out []Permiso
	if err := r.c.Do(ctx, http.MethodGet, r.name+"/"+url.PathEscape(rolID)+"/permisos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Actividades is the daily activity log.
type Actividades struct {
	*Resource
}

// PorPeriodo lists the activities of a contract for one month.
func (a *Actividades) PorPeriodo(ctx context.Context, contratoID int64, mes, anio int) ([]table.Record, error) {
	q := url.Values{}
	q.Set("contrato_id", strconv.FormatInt(contratoID, 10))
	q.Set("mes", strconv.Itoa(mes))
	q.Set("anio", strconv.Itoa(anio))

	var resp struct {
		Actividades json.RawMessage `json:"actividades"`
	}
	if err := a.c.Do(ctx, http.MethodGet, a.name+"/periodo?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Actividades) == 0 {
		return []table.Record{}, nil
	}
	return decodeList(ctx, a.c.logger, a.name, resp.Actividades)
}

// Get fetches one activity; the backend wraps it in {"actividad": ...}.
func (a *Actividades) Get(ctx context.Context, id string) (table.Record, error) {
	var resp struct {
		Actividad table.Record `json:"actividad"`
	}
	if err := a.c.Do(ctx, http.MethodGet, a.name+"/detalle?id="+url.QueryEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Actividad == nil {
		return nil, fmt.Errorf("actividad %s: %w", id, &Error{Method: http.MethodGet, Path: a.name + "/detalle", Status: http.StatusNotFound})
	}
	return resp.Actividad, nil
}

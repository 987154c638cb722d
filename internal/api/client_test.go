package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/secretaria/internal/table"
)

type captured struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

// backend starts a test server that records the last request and replies
// with status and body.
func backend(t *testing.T, status int, body string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		got.Query = r.URL.RawQuery
		got.Auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &got.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	return c, got
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	c, err := New("http://example.com/api")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/", c.BaseURL())
}

func TestResourceList(t *testing.T) {
	c, got := backend(t, http.StatusOK, `[{"id":1,"nombre":"A"},{"id":2,"nombre":"B"}]`)

	recs, err := c.WithToken("tok").Resource("entidades").List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0]["nombre"])
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/entidades", got.Path)
	assert.Equal(t, "Bearer tok", got.Auth)
}

func TestResourceList_NonArrayIsEmpty(t *testing.T) {
	c, _ := backend(t, http.StatusOK, `{"data":[]}`)

	recs, err := c.Resource("entidades").List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestResourceCRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{"id":7}`)
		rec, err := c.Resource("contratos").Get(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, float64(7), rec["id"])
		assert.Equal(t, "/api/contratos/7", got.Path)
	})

	t.Run("create", func(t *testing.T) {
		c, got := backend(t, http.StatusCreated, `{"id":8}`)
		_, err := c.Resource("contratos").Create(ctx, table.Record{"numero": "X"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, got.Method)
		assert.Equal(t, "X", got.Body["numero"])
	})

	t.Run("update puts on the collection", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{}`)
		_, err := c.Resource("contratos").Update(ctx, table.Record{"id": 3, "numero": "Y"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, got.Method)
		assert.Equal(t, "/api/contratos", got.Path)
		assert.Equal(t, float64(3), got.Body["id"])
	})

	t.Run("delete sends id in body", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, ``)
		require.NoError(t, c.Resource("roles").Delete(ctx, 9))
		assert.Equal(t, http.MethodDelete, got.Method)
		assert.Equal(t, "/api/roles", got.Path)
		assert.Equal(t, map[string]any{"id": float64(9)}, got.Body)
	})
}

func TestDo_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		code    string
	}{
		{"embedded error string", http.StatusOK, `{"error":"número duplicado"}`, "número duplicado", "API004"},
		{"success false", http.StatusOK, `{"success":false,"message":"no permitido"}`, "no permitido", "API004"},
		{"bad request", http.StatusBadRequest, `{"error":"campo requerido"}`, "campo requerido", "API001"},
		{"unauthorized", http.StatusUnauthorized, ``, "Unauthorized", "AUTH001"},
		{"forbidden", http.StatusForbidden, `{"error":"x"}`, "x", "AUTH002"},
		{"not found", http.StatusNotFound, ``, "Not Found", "API002"},
		{"server error", http.StatusBadGateway, `<html>`, "Bad Gateway", "API003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := backend(t, tt.status, tt.body)
			_, err := c.Resource("contratos").Get(context.Background(), "1")
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.code, MapError(err).Code)
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	c, _ := backend(t, http.StatusUnauthorized, ``)
	err := c.Do(context.Background(), http.MethodGet, "auth/validate", nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsUnauthorized(errors.New("boom")))
	assert.Equal(t, 0, StatusOf(nil))
}

func TestServices(t *testing.T) {
	ctx := context.Background()

	t.Run("contratos cambiar estado", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{"success":true}`)
		require.NoError(t, NewServices(c).Contratos.CambiarEstado(ctx, 4, EstadoLiquidado))
		assert.Equal(t, http.MethodPatch, got.Method)
		assert.Equal(t, "/api/contratos/estado", got.Path)
		assert.Equal(t, "liquidado", got.Body["estado"])
	})

	t.Run("usuarios cambiar estado", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{}`)
		require.NoError(t, NewServices(c).Usuarios.CambiarEstado(ctx, 2, false))
		assert.Equal(t, "/api/usuarios/estado", got.Path)
		assert.Equal(t, false, got.Body["activo"])
	})

	t.Run("usuarios asignar roles", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{}`)
		require.NoError(t, NewServices(c).Usuarios.AsignarRoles(ctx, 2, []string{"admin"}))
		assert.Equal(t, http.MethodPost, got.Method)
		assert.Equal(t, "/api/usuarios/roles", got.Path)
		assert.Equal(t, []any{"admin"}, got.Body["roles"])
	})

	t.Run("roles permisos", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `[{"id":1,"nombre":"contratos.ver","modulo":"contratos"}]`)
		perms, err := NewServices(c).Roles.Permisos(ctx, "3")
		require.NoError(t, err)
		assert.Equal(t, "/api/roles/3/permisos", got.Path)
		require.Len(t, perms, 1)
		assert.Equal(t, "contratos.ver", perms[0].Nombre)
	})

	t.Run("actividades por periodo", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{"actividades":[{"id":1},{"id":2}]}`)
		recs, err := NewServices(c).Actividades.PorPeriodo(ctx, 5, 3, 2025)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
		assert.Equal(t, "/api/actividades/periodo", got.Path)
		assert.Equal(t, "anio=2025&contrato_id=5&mes=3", got.Query)
	})

	t.Run("actividades detalle", func(t *testing.T) {
		c, got := backend(t, http.StatusOK, `{"actividad":{"id":1,"descripcion":"x"}}`)
		rec, err := NewServices(c).Actividades.Get(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "x", rec["descripcion"])
		assert.Equal(t, "id=1", got.Query)
	})

	t.Run("for", func(t *testing.T) {
		c, _ := backend(t, http.StatusOK, `[]`)
		s := NewServices(c)
		r, ok := s.For("usuarios")
		require.True(t, ok)
		assert.Equal(t, "usuarios", r.Name())
		_, ok = s.For("nope")
		assert.False(t, ok)
	})
}

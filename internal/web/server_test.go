package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/config"
	"github.com/JonMunkholm/secretaria/internal/notify"
	"github.com/JonMunkholm/secretaria/internal/session"
	"github.com/JonMunkholm/secretaria/internal/table"
)

// backend imitates the REST API the console talks to.
type backend struct {
	mu        sync.Mutex
	contratos []map[string]any
	estados   []map[string]any // bodies received by PATCH contratos/estado
	listFails bool
}

func newBackend() *backend {
	return &backend{contratos: []map[string]any{
		{"id": 1, "numero_contrato": "CT-001", "contratista_nombre": "Alfa Ltda", "entidad_nombre": "Alcaldía",
			"objeto_contrato": "Asesoría", "estado": "activo", "valor_total": 1500000},
		{"id": 2, "numero_contrato": "CT-002", "contratista_nombre": "Beta SAS", "entidad_nombre": "Gobernación",
			"objeto_contrato": "Obra", "estado": "finalizado", "valor_total": 0},
	}}
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	user := map[string]any{"id": 7, "nombre": "Ana", "email": "ana@example.com",
		"roles": []string{"secretaria"}, "permisos": []string{"contratos.gestionar"}}

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Credenciales inválidas"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true, "access_token": "tok", "refresh_token": "ref",
			"expires_in": 3600, "user": user,
		})
	})
	mux.HandleFunc("GET /api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "user": user})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	mux.HandleFunc("GET /api/contratos", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.listFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(b.contratos)
	})
	mux.HandleFunc("PATCH /api/contratos/estado", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.estados = append(b.estados, body)
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	return mux
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Session.CookieName = "sid"
	cfg.Session.IdleTTL = time.Hour
	cfg.Security.EnableCSP = true
	cfg.Table.PageSize = 10
	cfg.Table.InstanceTTL = time.Minute
	return cfg
}

type harness struct {
	t        *testing.T
	server   *Server
	backend  *backend
	notifier *notify.Notifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := newBackend()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL + "/api")
	require.NoError(t, err)
	notifier := notify.New()
	manager := auth.NewManager(client, session.NewMemoryStore())
	t.Cleanup(manager.Close)

	s, err := NewServer(Deps{Config: testConfig(), Auth: manager, Notifier: notifier, Client: client})
	require.NoError(t, err)
	return &harness{t: t, server: s, backend: b, notifier: notifier}
}

func (h *harness) do(method, target string, form url.Values, cookie *http.Cookie, htmx bool) *httptest.ResponseRecorder {
	h.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func (h *harness) login() *http.Cookie {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/login", url.Values{"email": {"ana@example.com"}, "password": {"secret"}}, nil, false)
	require.Equal(h.t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" && c.Value != "" {
			return c
		}
	}
	h.t.Fatal("login set no session cookie")
	return nil
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", nil, nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSecurityHeaders(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/login", nil, nil, false)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "script-src 'self' https://unpkg.com")
	assert.Contains(t, csp, "frame-ancestors 'none'")
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/static/app.js", nil, nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "responseHandling")
}

func TestRootRedirects(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/", nil, nil, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/", nil, h.login(), false)
	assert.Equal(t, "/menu", rec.Header().Get("Location"))
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/login", url.Values{"email": {"ana@example.com"}, "password": {"mal"}}, nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "No fue posible iniciar sesión")
	assert.Contains(t, rec.Body.String(), `value="ana@example.com"`)

	rec = h.do(http.MethodPost, "/login", url.Values{"email": {""}, "password": {""}}, nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ingrese su correo y contraseña")
}

func TestLoginRedirectsToReturnURL(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/v/contratos", nil, nil, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?returnUrl=%2Fv%2Fcontratos", rec.Header().Get("Location"))

	form := url.Values{"email": {"ana@example.com"}, "password": {"secret"}, "returnUrl": {"/v/contratos"}}
	rec = h.do(http.MethodPost, "/login", form, nil, false)
	assert.Equal(t, "/v/contratos", rec.Header().Get("Location"))

	// Foreign targets are ignored.
	form.Set("returnUrl", "https://evil.example/")
	rec = h.do(http.MethodPost, "/login", form, nil, false)
	assert.Equal(t, "/menu", rec.Header().Get("Location"))
}

func TestHTMXRedirectWhenLoggedOut(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/v/contratos/search", url.Values{"q": {"x"}}, nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}

func TestMenuListsAllowedViews(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/menu", nil, h.login(), false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/v/contratos"`)
	assert.NotContains(t, body, `href="/v/roles"`)
	assert.Contains(t, body, "Bienvenido, Ana")
}

func TestViewPermissions(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()

	rec := h.do(http.MethodGet, "/v/roles", nil, cookie, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/menu", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/v/nada", nil, cookie, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPage(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/v/contratos", nil, h.login(), false)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `id="table-contratos"`)
	assert.Contains(t, body, "CT-001")
	assert.Contains(t, body, "CT-002")
	assert.Contains(t, body, "Alfa Ltda")
	assert.Contains(t, body, "badge")
}

func TestSearchPartial(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)

	rec := h.do(http.MethodPost, "/v/contratos/search", url.Values{"q": {"beta"}}, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "CT-002")
	assert.NotContains(t, body, "CT-001")
	assert.NotContains(t, body, "<html")
	assert.Contains(t, body, `hx-swap-oob`)

	// The instance keeps the query between requests.
	rec = h.do(http.MethodGet, "/v/contratos/table", nil, cookie, true)
	assert.NotContains(t, rec.Body.String(), "CT-001")
}

func TestFilterPartials(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)

	rec := h.do(http.MethodPost, "/v/contratos/filter/contratista_nombre/menu", nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Beta SAS")

	// Clear every option, then select the second.
	h.do(http.MethodPost, "/v/contratos/filter/contratista_nombre/all", nil, cookie, true)
	rec = h.do(http.MethodPost, "/v/contratos/filter/contratista_nombre/toggle/1", nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "CT-002")
	assert.NotContains(t, body, "CT-001")

	rec = h.do(http.MethodPost, "/v/contratos/filter/reset", nil, cookie, true)
	assert.Contains(t, rec.Body.String(), "CT-001")
}

func TestPagination(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)

	rec := h.do(http.MethodPost, "/v/contratos/page-size", url.Values{"size": {"1"}}, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CT-001")
	assert.NotContains(t, rec.Body.String(), "CT-002")

	rec = h.do(http.MethodPost, "/v/contratos/page/1", nil, cookie, true)
	assert.Contains(t, rec.Body.String(), "CT-002")

	// Out of range keeps the current page.
	rec = h.do(http.MethodPost, "/v/contratos/page/9", nil, cookie, true)
	assert.Contains(t, rec.Body.String(), "CT-002")
}

func TestViewActionRedirects(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)

	rec := h.do(http.MethodPost, "/v/contratos/action/"+table.ActionView+"/2", nil, cookie, true)
	assert.Equal(t, "/v/contratos/2", rec.Header().Get("HX-Redirect"))

	rec = h.do(http.MethodPost, "/v/contratos/action/"+table.ActionEdit+"/2", nil, cookie, true)
	assert.Equal(t, "/v/contratos/2/editar", rec.Header().Get("HX-Redirect"))

	rec = h.do(http.MethodPost, "/v/contratos/action/volar/2", nil, cookie, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/v/contratos/action/"+table.ActionView+"/99", nil, cookie, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "#overlay", rec.Header().Get("HX-Retarget"))
}

func TestDeleteConfirmed(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)

	rec := h.do(http.MethodPost, "/v/contratos/delete/2", nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), table.DeleteMessage("2"))

	pending := h.notifier.Pending(cookie.Value)
	require.Len(t, pending, 1)

	form := url.Values{"confirmed": {"true"}, "return": {"/v/contratos"}}
	rec = h.do(http.MethodPost, "/confirm/"+pending[0].ID, form, cookie, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/v/contratos", rec.Header().Get("Location"))

	h.backend.mu.Lock()
	require.Len(t, h.backend.estados, 1)
	assert.Equal(t, api.EstadoLiquidado, h.backend.estados[0]["estado"])
	assert.EqualValues(t, 2, h.backend.estados[0]["id"])
	h.backend.mu.Unlock()

	notes := h.notifier.Drain(cookie.Value)
	var messages []string
	for _, n := range notes {
		messages = append(messages, n.Message)
	}
	assert.Contains(t, messages, msgDeleted)
	assert.Empty(t, h.notifier.Pending(cookie.Value))
}

func TestDeleteCancelled(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)
	h.do(http.MethodPost, "/v/contratos/delete/2", nil, cookie, true)

	pending := h.notifier.Pending(cookie.Value)
	require.Len(t, pending, 1)
	h.do(http.MethodPost, "/confirm/"+pending[0].ID, url.Values{"confirmed": {"false"}}, cookie, false)

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Empty(t, h.backend.estados)
}

func TestDeleteGuardedRecord(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)

	rec := h.do(http.MethodPost, "/v/contratos/delete/1", nil, cookie, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No se puede eliminar un contrato activo")
	assert.Empty(t, h.notifier.Pending(cookie.Value))
}

func TestConfirmUnknownID(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	rec := h.do(http.MethodPost, "/confirm/missing", url.Values{"confirmed": {"true"}, "return": {"//evil"}}, cookie, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/menu", rec.Header().Get("Location"))

	notes := h.notifier.Drain(cookie.Value)
	require.NotEmpty(t, notes)
	assert.Equal(t, notify.KindWarning, notes[len(notes)-1].Kind)
}

func TestLoadFailureShowsEmptyTable(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.backend.mu.Lock()
	h.backend.listFails = true
	h.backend.mu.Unlock()

	rec := h.do(http.MethodGet, "/v/contratos", nil, cookie, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "CT-001")
	assert.Contains(t, rec.Body.String(), "toast-error")
}

func TestLogoutDropsState(t *testing.T) {
	h := newHarness(t)
	cookie := h.login()
	h.do(http.MethodGet, "/v/contratos", nil, cookie, false)
	require.Equal(t, 1, h.server.instances.len())

	rec := h.do(http.MethodPost, "/logout", nil, cookie, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, h.server.instances.len())

	rec = h.do(http.MethodGet, "/menu", nil, cookie, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

package templates

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/notify"
)

// HTMXSource is where pages load htmx from. The security headers allow it.
const HTMXSource = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"

// MenuItem links to one view.
type MenuItem struct {
	Key   string
	Title string
	Icon  string
	Href  string
}

// MenuGroup is a titled section of the sidebar.
type MenuGroup struct {
	Name  string
	Items []MenuItem
}

// Overlay carries the flash notifications and the confirmation dialog.
type Overlay struct {
	Notifications []notify.Notification
	Confirmations []notify.Confirmation
	// Return is where the browser goes after answering a confirmation.
	Return string
}

// Page is the frame shared by every full page.
type Page struct {
	Title      string
	Breadcrumb []string
	User       *auth.User
	Menu       []MenuGroup
	Active     string
	Overlay    Overlay
}

// Layout renders a full HTML document around body.
func Layout(p Page, body templ.Component) templ.Component {
	return component(func(h *writer) {
		h.raw(`<!DOCTYPE html><html lang="es"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(p.Title)
		h.raw(` · Secretaría</title>`,
			`<link rel="stylesheet" href="/static/app.css">`,
			`<script src="`, HTMXSource, `" defer></script>`,
			`<script src="/static/app.js" defer></script>`,
			`</head><body>`)

		if p.User != nil {
			h.render(sidebar(p))
		}
		h.raw(`<main class="content">`)
		if len(p.Breadcrumb) > 0 {
			h.render(Breadcrumb(p.Breadcrumb))
		}
		h.render(body)
		h.raw(`</main>`)
		h.raw(`<div id="overlay">`)
		h.render(overlayBody(p.Overlay))
		h.raw(`</div></body></html>`)
	})
}

func sidebar(p Page) templ.Component {
	return component(func(h *writer) {
		h.raw(`<nav class="sidebar"><a class="brand" href="/menu">Secretaría</a>`)
		for _, g := range p.Menu {
			h.raw(`<div class="menu-group"><h4>`)
			h.text(g.Name)
			h.raw(`</h4><ul>`)
			for _, it := range g.Items {
				cls := ""
				if it.Key == p.Active {
					cls = ` class="active"`
				}
				h.raw(`<li`, cls, `><a href="`, href(it.Href), `"><i class="`, esc(it.Icon), `"></i> `)
				h.text(it.Title)
				h.raw(`</a></li>`)
			}
			h.raw(`</ul></div>`)
		}
		h.raw(`<div class="user"><span>`)
		h.text(p.User.Nombre)
		h.raw(`</span><form method="post" action="/logout"><button type="submit" class="link">Cerrar sesión</button></form></div></nav>`)
	})
}

// Breadcrumb renders the trail above a page title.
func Breadcrumb(items []string) templ.Component {
	return component(func(h *writer) {
		h.raw(`<ol class="breadcrumb"><li><a href="/menu">Inicio</a></li>`)
		for i, it := range items {
			if i == len(items)-1 {
				h.raw(`<li class="current">`)
			} else {
				h.raw(`<li>`)
			}
			h.text(it)
			h.raw(`</li>`)
		}
		h.raw(`</ol>`)
	})
}

// OverlayOOB re-renders the overlay as an HTMX out-of-band swap, appended
// to partial responses.
func OverlayOOB(o Overlay) templ.Component {
	return component(func(h *writer) {
		h.raw(`<div id="overlay" hx-swap-oob="true">`)
		h.render(overlayBody(o))
		h.raw(`</div>`)
	})
}

func overlayBody(o Overlay) templ.Component {
	return component(func(h *writer) {
		if len(o.Notifications) > 0 {
			h.raw(`<div class="toasts">`)
			for _, n := range o.Notifications {
				ms := strconv.FormatInt(n.Duration.Milliseconds(), 10)
				h.raw(`<div class="toast toast-`, esc(string(n.Kind)), `" role="status" data-duration="`, ms, `">`)
				h.text(n.Message)
				h.raw(`</div>`)
			}
			h.raw(`</div>`)
		}
		// One dialog at a time; the oldest question is asked first.
		if len(o.Confirmations) > 0 {
			h.render(ConfirmDialog(o.Confirmations[0], o.Return))
		}
	})
}

// ConfirmDialog asks the user to answer a pending confirmation. It posts a
// plain form so it works without scripts.
func ConfirmDialog(c notify.Confirmation, returnTo string) templ.Component {
	return component(func(h *writer) {
		h.raw(`<div class="modal-backdrop"><div class="modal" role="dialog" aria-modal="true">`,
			`<h3>Confirmar</h3><p>`)
		h.text(c.Message)
		h.raw(`</p><form method="post" action="/confirm/`, esc(c.ID), `">`,
			`<input type="hidden" name="return" value="`, esc(returnTo), `">`,
			`<button type="submit" name="confirmed" value="false" class="btn">Cancelar</button>`,
			`<button type="submit" name="confirmed" value="true" class="btn btn-danger">Aceptar</button>`,
			`</form></div></div>`)
	})
}

// ErrorAlert renders a user-facing error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return component(func(h *writer) {
		h.raw(`<div class="alert alert-error" role="alert"><strong>`)
		h.text(message)
		h.raw(`</strong>`)
		if action != "" {
			h.raw(` <span>`)
			h.text(action)
			h.raw(`</span>`)
		}
		if code != "" {
			h.raw(` <small>(Código: `)
			h.text(code)
			h.raw(`)</small>`)
		}
		h.raw(`</div>`)
	})
}

// ErrorPage renders an error as a full page.
func ErrorPage(p Page, message, action, code string) templ.Component {
	return Layout(p, ErrorAlert(message, action, code))
}

package views

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// decorators derive the display-only fields of each view, by name.
var decorators = map[string]table.Decorator{
	"contratos":    decorateContrato,
	"contratistas": decorateContratista("Activo", "Inactivo"),
	"entidades":    decorateContratista("Activa", "Inactiva"),
	"actividades":  decorateActividad,
	"usuarios":     decorateUsuario,
	"roles":        decorateRol,
}

func badge(class, text string) string {
	return fmt.Sprintf(`<span class="badge %s">%s</span>`, class, templ.EscapeString(text))
}

func muted(text string) string {
	return `<span class="text-muted">` + templ.EscapeString(text) + `</span>`
}

func str(r table.Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func num(r table.Record, key string) (float64, bool) {
	switch n := r[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func fecha(v any) string {
	if s := table.FormatValue(v, table.TypeDate, nil); s != "" {
		return templ.EscapeString(s)
	}
	return "N/A"
}

func decorateContrato(r table.Record) map[string]string {
	d := map[string]string{
		"fecha_periodo": `<div class="text-center"><small class="text-muted">Inicio:</small> ` +
			fecha(r["fecha_inicio"]) + `<br><small class="text-muted">Fin:</small> ` +
			fecha(r["fecha_terminacion"]) + `</div>`,
		"dias_info":    diasInfo(r),
		"estado_badge": estadoContrato(str(r, "estado")),
	}
	if v, ok := num(r, "valor_total"); ok && v != 0 {
		d["valor_formateado"] = "<strong>" + templ.EscapeString(table.FormatValue(v, table.TypeMoney, table.Options{"digitInfo": "1-0-2"})) + "</strong>"
	} else {
		d["valor_formateado"] = muted("$ 0")
	}
	return d
}

func diasInfo(r table.Record) string {
	dias, ok := num(r, "dias_restantes")
	if !ok {
		return muted("N/A")
	}
	n := int(dias)
	switch {
	case n < 0:
		return badge("badge-danger", fmt.Sprintf("Vencido hace %d días", -n))
	case n == 0:
		return badge("badge-warning", "Vence hoy")
	case n <= 30:
		return badge("badge-warning", fmt.Sprintf("%d días", n))
	case n <= 90:
		return badge("badge-info", fmt.Sprintf("%d días", n))
	default:
		return badge("badge-success", fmt.Sprintf("%d días", n))
	}
}

var estadosContrato = map[string][2]string{
	"activo":     {"badge-success", "Activo"},
	"suspendido": {"badge-warning", "Suspendido"},
	"finalizado": {"badge-secondary", "Finalizado"},
	"liquidado":  {"badge-info", "Liquidado"},
}

func estadoContrato(estado string) string {
	if estado == "" {
		return badge("badge-secondary", "Sin estado")
	}
	if b, ok := estadosContrato[estado]; ok {
		return badge(b[0], b[1])
	}
	return badge("badge-secondary", estado)
}

// decorateContratista serves contractors and entities, which differ only in
// the gender of the status label.
func decorateContratista(active, inactive string) table.Decorator {
	return func(r table.Record) map[string]string {
		d := map[string]string{"contratos_info": contratosInfo(r)}
		switch a := r["activo"].(type) {
		case bool:
			if a {
				d["activo_badge"] = badge("badge-success", active)
			} else {
				d["activo_badge"] = badge("badge-danger", inactive)
			}
		default:
			d["activo_badge"] = badge("badge-secondary", "Desconocido")
		}
		return d
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func contratosInfo(r table.Record) string {
	total, _ := num(r, "total_contratos")
	activos, _ := num(r, "contratos_activos")
	if total == 0 {
		return muted("Sin contratos")
	}
	var b strings.Builder
	b.WriteString(`<div class="text-center">`)
	if activos > 0 {
		b.WriteString(badge("badge-success me-1", plural(int(activos), "activo")))
	}
	if inactivos := int(total - activos); inactivos > 0 {
		b.WriteString(badge("badge-secondary", plural(inactivos, "inactivo")))
	}
	fmt.Fprintf(&b, `<div class="small text-muted mt-1">Total: %d</div></div>`, int(total))
	return b.String()
}

const descripcionMax = 100

func decorateActividad(r table.Record) map[string]string {
	desc := []rune(str(r, "descripcion_actividad"))
	corta := string(desc)
	if len(desc) > descripcionMax {
		corta = string(desc[:descripcionMax]) + "..."
	}
	d := map[string]string{
		"contrato_numero":   str(r, "numero_contrato"),
		"descripcion_corta": "<div>" + templ.EscapeString(corta) + "</div>",
	}
	if d["contrato_numero"] == "" {
		d["contrato_numero"] = "N/A"
	}
	if str(r, "transcripcion_texto") != "" {
		d["descripcion_corta"] += `<small class="text-muted"><i class="fas fa-microphone"></i> Con transcripción</small>`
	}

	switch obligaciones, _ := r["obligaciones"].([]any); {
	case len(obligaciones) == 0:
		d["obligacion_info"] = muted("Sin asociar")
	case str(r, "obligaciones_info") != "":
		d["obligacion_info"] = `<div class="small">` + templ.EscapeString(str(r, "obligaciones_info")) + `</div>`
	default:
		parts := make([]string, 0, len(obligaciones))
		for _, o := range obligaciones {
			m, _ := o.(map[string]any)
			n, _ := num(m, "numero_obligacion")
			text := []rune(str(m, "descripcion"))
			if len(text) > 50 {
				text = text[:50]
			}
			parts = append(parts, fmt.Sprintf("<strong>%d.</strong> %s...", int(n), templ.EscapeString(string(text))))
		}
		d["obligacion_info"] = `<div class="small">` + strings.Join(parts, " | ") + `</div>`
	}

	if n, _ := num(r, "total_archivos"); n > 0 {
		d["adjuntos_badge"] = badge("badge-info", fmt.Sprintf("%d archivo(s)", int(n)))
	} else {
		d["adjuntos_badge"] = badge("badge-secondary", "Sin archivos")
	}
	if p, _ := r["procesado_ia"].(bool); p {
		d["procesado_badge"] = `<span class="badge badge-success"><i class="fas fa-robot"></i> Procesado</span>`
	} else {
		d["procesado_badge"] = badge("badge-warning", "Pendiente")
	}
	return d
}

var (
	roleNames = map[string]string{
		"admin":      "Administrador",
		"secretaria": "Secretaria",
		"supervisor": "Supervisor",
		"usuario":    "Usuario",
	}
	roleClasses = map[string]string{
		"admin":      "badge-primary",
		"secretaria": "badge-info",
		"supervisor": "badge-warning",
		"usuario":    "badge-secondary",
	}
)

// SystemRole reports whether a role ships with the backend and cannot be
// deleted.
func SystemRole(name string) bool {
	_, ok := roleNames[strings.ToLower(name)]
	return ok
}

func decorateUsuario(r table.Record) map[string]string {
	d := make(map[string]string, 3)

	roles, _ := r["roles"].([]any)
	if len(roles) == 0 {
		d["roles_badges"] = muted("Sin roles")
	} else {
		var b strings.Builder
		for _, role := range roles {
			key := fmt.Sprint(role)
			name, ok := roleNames[key]
			if !ok {
				name = key
			}
			class, ok := roleClasses[key]
			if !ok {
				class = "badge-secondary"
			}
			b.WriteString(badge(class+" me-1", name))
		}
		d["roles_badges"] = b.String()
	}

	if a, _ := r["activo"].(bool); a {
		d["activo_text"] = "Activo"
		d["activo_class"] = "badge-success"
	} else {
		d["activo_text"] = "Inactivo"
		d["activo_class"] = "badge-danger"
	}
	return d
}

func decorateRol(r table.Record) map[string]string {
	if SystemRole(str(r, "nombre")) {
		return map[string]string{"tipo_badge": badge("badge-info", "Sistema")}
	}
	return map[string]string{"tipo_badge": badge("badge-secondary", "Personalizado")}
}


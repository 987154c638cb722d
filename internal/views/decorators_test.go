package views

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/secretaria/internal/table"
)

func TestDiasInfo(t *testing.T) {
	tests := []struct {
		dias any
		want string
	}{
		{nil, `<span class="text-muted">N/A</span>`},
		{-3.0, `<span class="badge badge-danger">Vencido hace 3 días</span>`},
		{0.0, `<span class="badge badge-warning">Vence hoy</span>`},
		{30.0, `<span class="badge badge-warning">30 días</span>`},
		{31.0, `<span class="badge badge-info">31 días</span>`},
		{90.0, `<span class="badge badge-info">90 días</span>`},
		{91.0, `<span class="badge badge-success">91 días</span>`},
	}
	for _, tt := range tests {
		got := diasInfo(table.Record{"dias_restantes": tt.dias})
		assert.Equal(t, tt.want, got, "dias %v", tt.dias)
	}
}

func TestDecorateContrato(t *testing.T) {
	d := decorateContrato(table.Record{
		"fecha_inicio":      "2024-01-15",
		"fecha_terminacion": nil,
		"valor_total":       12500000.0,
		"estado":            "suspendido",
	})

	assert.Contains(t, d["fecha_periodo"], "15/01/2024")
	assert.Contains(t, d["fecha_periodo"], "Fin:</small> N/A")
	assert.Equal(t, "<strong>$ 12.500.000</strong>", d["valor_formateado"])
	assert.Equal(t, `<span class="badge badge-warning">Suspendido</span>`, d["estado_badge"])

	d = decorateContrato(table.Record{"estado": "<script>"})
	assert.Equal(t, `<span class="text-muted">$ 0</span>`, d["valor_formateado"])
	assert.NotContains(t, d["estado_badge"], "<script>")
}

func TestContratosInfo(t *testing.T) {
	assert.Equal(t, `<span class="text-muted">Sin contratos</span>`, contratosInfo(table.Record{}))

	got := contratosInfo(table.Record{"total_contratos": 3.0, "contratos_activos": 1.0})
	assert.Contains(t, got, "1 activo<")
	assert.Contains(t, got, "2 inactivos")
	assert.Contains(t, got, "Total: 3")
}

func TestDecorateEntidad(t *testing.T) {
	d := decorators["entidades"](table.Record{"activo": false})
	assert.Equal(t, `<span class="badge badge-danger">Inactiva</span>`, d["activo_badge"])

	d = decorators["contratistas"](table.Record{})
	assert.Equal(t, `<span class="badge badge-secondary">Desconocido</span>`, d["activo_badge"])
}

func TestDecorateActividad(t *testing.T) {
	long := strings.Repeat("á", 120)
	d := decorateActividad(table.Record{
		"descripcion_actividad": long,
		"transcripcion_texto":   "hola",
		"obligaciones": []any{
			map[string]any{"numero_obligacion": 2.0, "descripcion": "Apoyar la gestión"},
		},
		"total_archivos": 2.0,
		"procesado_ia":   true,
	})

	assert.Contains(t, d["descripcion_corta"], strings.Repeat("á", 100)+"...")
	assert.Contains(t, d["descripcion_corta"], "Con transcripción")
	assert.Equal(t, `<div class="small"><strong>2.</strong> Apoyar la gestión...</div>`, d["obligacion_info"])
	assert.Equal(t, `<span class="badge badge-info">2 archivo(s)</span>`, d["adjuntos_badge"])
	assert.Contains(t, d["procesado_badge"], "Procesado")
	assert.Equal(t, "N/A", d["contrato_numero"])

	d = decorateActividad(table.Record{})
	assert.Equal(t, `<span class="text-muted">Sin asociar</span>`, d["obligacion_info"])
	assert.Equal(t, `<span class="badge badge-warning">Pendiente</span>`, d["procesado_badge"])
}

func TestDecorateUsuario(t *testing.T) {
	d := decorateUsuario(table.Record{"roles": []any{"admin", "auditor"}, "activo": true})
	assert.Equal(t,
		`<span class="badge badge-primary me-1">Administrador</span><span class="badge badge-secondary me-1">auditor</span>`,
		d["roles_badges"])
	assert.Equal(t, "Activo", d["activo_text"])
	assert.Equal(t, "badge-success", d["activo_class"])

	d = decorateUsuario(table.Record{})
	assert.Equal(t, `<span class="text-muted">Sin roles</span>`, d["roles_badges"])
	assert.Equal(t, "badge-danger", d["activo_class"])
}

func TestDecorateRol(t *testing.T) {
	assert.Contains(t, decorateRol(table.Record{"nombre": "Supervisor"})["tipo_badge"], "Sistema")
	assert.Contains(t, decorateRol(table.Record{"nombre": "Contador"})["tipo_badge"], "Personalizado")
	assert.True(t, SystemRole("ADMIN"))
}

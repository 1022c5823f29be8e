package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

var _ gatepass.Observer = (*Collector)(nil)

// Collector contadores de pases de portería con registro propio.
type Collector struct {
	registry    *prometheus.Registry
	guards      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	autoCreate  *prometheus.CounterVec
}

// New registra los contadores y los colectores de proceso y runtime.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		guards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "guard_failures_total",
			Help:      "Transiciones bloqueadas por guarda (asignación, cumplimiento, campos, discrepancia).",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "transitions_total",
			Help:      "Transiciones de estado confirmadas por estado destino.",
		}, []string{"status"}),
		autoCreate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "auto_create_total",
			Help:      "Resultados de la cola de creación automática.",
		}, []string{"outcome"}),
	}
	c.registry.MustRegister(
		c.guards, c.transitions, c.autoCreate,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) GuardFailed(kind string) { c.guards.WithLabelValues(kind).Inc() }

func (c *Collector) Transition(status entity.RecordStatus) {
	c.transitions.WithLabelValues(string(status)).Inc()
}

func (c *Collector) AutoCreate(outcome string) { c.autoCreate.WithLabelValues(outcome).Inc() }

// Handler exposición /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry para pruebas y colectores adicionales.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

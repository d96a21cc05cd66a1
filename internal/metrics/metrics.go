package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Registry owns the process collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	reg             *prometheus.Registry
	salesTotal      *prometheus.CounterVec
	salesAmount     *prometheus.CounterVec
	stockMovements  *prometheus.CounterVec
	barcodeLookups  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		salesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sales_total",
			Help: "Completed sales by payment method.",
		}, []string{"payment_method"}),
		salesAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sales_amount_total",
			Help: "Net amount of completed sales by payment method.",
		}, []string{"payment_method"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_stock_movements_total",
			Help: "Stock movements appended to the ledger by reason.",
		}, []string{"reason"}),
		barcodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_barcode_lookups_total",
			Help: "Barcode lookups by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.salesTotal,
		r.salesAmount,
		r.stockMovements,
		r.barcodeLookups,
		r.requestDuration,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveSale(method string, net decimal.Decimal) {
	if r == nil {
		return
	}
	amount, _ := net.Float64()
	r.salesTotal.WithLabelValues(method).Inc()
	r.salesAmount.WithLabelValues(method).Add(amount)
}

func (r *Registry) ObserveMovement(reason string) {
	if r == nil {
		return
	}
	r.stockMovements.WithLabelValues(reason).Inc()
}

func (r *Registry) ObserveBarcodeLookup(outcome string) {
	if r == nil {
		return
	}
	r.barcodeLookups.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveRequest(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

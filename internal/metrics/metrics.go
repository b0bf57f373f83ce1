// metrics публикует метрики Prometheus: операции хранилищ, состояние
// подключения и исход переключений.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/connection"
	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "datacore"

// Результаты операций в метках.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics — набор коллекторов процесса.
type Metrics struct {
	ops      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	state    *prometheus.GaugeVec
	switches *prometheus.CounterVec
	http     *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg (nil -> prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "CRUD calls against the active store.",
		}, []string{"kind", "collection", "op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of CRUD calls against the active store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "collection", "op"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (1 for the current kind/status pair).",
		}, []string{"kind", "status"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_switches_total",
			Help:      "Store switch attempts by requested kind and result.",
		}, []string{"kind", "result"}),
		http: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of admin API requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.ops, m.latency, m.state, m.switches, m.http)

	return m
}

// ObserveState отражает снимок состояния подключения в gauge.
func (m *Metrics) ObserveState(s models.ConnectionState) {
	m.state.Reset()
	m.state.WithLabelValues(string(s.Kind), string(s.Status)).Set(1)
}

// ObserveSwitch учитывает попытку переключения.
func (m *Metrics) ObserveSwitch(kind models.StoreKind, err error) {
	m.switches.WithLabelValues(string(kind), result(err)).Inc()
}

// ObserveHTTP учитывает обработанный HTTP-запрос (route — шаблон маршрута).
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.http.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Dialer оборачивает d так, что каждое открытое хранилище инструментировано.
func (m *Metrics) Dialer(d connection.Dialer) connection.Dialer {
	return dialer{next: d, m: m}
}

// Instrument оборачивает хранилище счётчиками и гистограммой операций.
func (m *Metrics) Instrument(st storage.Store) storage.Store {
	kind := string(st.Kind())

	return &store{
		Store:     st,
		news:      wrap(st.News(), m, kind),
		services:  wrap(st.Services(), m, kind),
		incidents: wrap(st.Incidents(), m, kind),
		gallery:   wrap(st.Gallery(), m, kind),
	}
}

func (m *Metrics) track(kind string, entity models.Entity, op string, start time.Time, err error) {
	m.ops.WithLabelValues(kind, string(entity), op, result(err)).Inc()
	m.latency.WithLabelValues(kind, string(entity), op).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	if err != nil {
		return resultError
	}

	return resultOK
}

type dialer struct {
	next connection.Dialer
	m    *Metrics
}

func (d dialer) Dial(ctx context.Context, kind models.StoreKind, target models.DirectTarget) (storage.Store, error) {
	st, err := d.next.Dial(ctx, kind, target)
	if err != nil {
		return nil, err
	}

	return d.m.Instrument(st), nil
}

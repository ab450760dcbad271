package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes recorded by ObserveRefresh.
const (
	OutcomeRenewed = "renewed"
	OutcomeDenied  = "denied"
	OutcomeReused  = "reused"
)

// Metrics tracks request and token refresh activity of an authenticated client.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RefreshAttempts prometheus.Counter
	RefreshOutcomes *prometheus.CounterVec
	RefreshWaiters  prometheus.Counter
	RefreshDuration prometheus.Histogram
}

// New creates client metrics registered with reg. A nil reg leaves them
// unregistered, which tests use to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_requests_total",
			Help: "Requests issued to the API, by HTTP status class",
		}, []string{"class"}),
		RefreshAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "authclient_refresh_requests_total",
			Help: "Refresh calls that reached the network",
		}),
		RefreshOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_refresh_outcomes_total",
			Help: "Outcomes of the shared refresh slot: renewed, denied, or reused when another caller already renewed",
		}, []string{"outcome"}),
		RefreshWaiters: factory.NewCounter(prometheus.CounterOpts{
			Name: "authclient_refresh_waiters_total",
			Help: "Callers that joined a refresh already in flight",
		}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "authclient_refresh_duration_seconds",
			Help:    "Duration of refresh calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveRequest records one completed request. Status 0 means the request
// never got a response.
func (m *Metrics) ObserveRequest(status int) {
	m.Requests.WithLabelValues(statusClass(status)).Inc()
}

// ObserveRefreshCall records a refresh that reached the network.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveRefreshCall(start time.Time) {
	m.RefreshAttempts.Inc()
	m.RefreshDuration.Observe(time.Since(start).Seconds())
}

// ObserveRefresh records how one run of the refresh slot ended.
func (m *Metrics) ObserveRefresh(outcome string) {
	m.RefreshOutcomes.WithLabelValues(outcome).Inc()
}

// IncrementRefreshWaiters records a caller joining an in-flight refresh.
func (m *Metrics) IncrementRefreshWaiters() {
	m.RefreshWaiters.Inc()
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status == 401:
		return "401"
	case status < 200 || status >= 600:
		return "other"
	default:
		return strconv.Itoa(status/100) + "xx"
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 20s), gateway calls time out at paypal.timeout ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000, 20000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	}
	return metric
}

var gatewayCalls = &Metric{
	ID:          "gwCnt",
	Name:        "gateway_calls_total",
	Description: "PayPal API calls, partitioned by operation and result.",
	Type:        "counter_vec",
	Args:        []string{"op", "result"},
}

var gatewayDur = &Metric{
	ID:          "gwDur",
	Name:        "gateway_dur_ms",
	Description: "PayPal API call latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"op"},
}

var payoutJobs = &Metric{
	ID:          "jobCnt",
	Name:        "payout_jobs_total",
	Description: "Escrow/payout jobs processed by the sweeper, partitioned by kind and result.",
	Type:        "counter_vec",
	Args:        []string{"kind", "result"},
}

var payoutJobDur = &Metric{
	ID:          "jobDur",
	Name:        "payout_job_dur_ms",
	Description: "Escrow/payout job latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"kind"},
}

var transitions = &Metric{
	ID:          "txTrans",
	Name:        "transaction_transitions_total",
	Description: "Transaction status transitions.",
	Type:        "counter_vec",
	Args:        []string{"from", "to"},
}

const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Payments records business metrics. A nil *Payments is valid and records nothing.
type Payments struct {
	gatewayCalls *prometheus.CounterVec
	gatewayDur   *prometheus.HistogramVec
	payoutJobs   *prometheus.CounterVec
	payoutJobDur *prometheus.HistogramVec
	transitions  *prometheus.CounterVec
}

func NewPayments(reg prometheus.Registerer) (*Payments, error) {
	const subsystem = "payment"
	p := &Payments{
		gatewayCalls: NewMetric(gatewayCalls, subsystem).(*prometheus.CounterVec),
		gatewayDur:   NewMetric(gatewayDur, subsystem).(*prometheus.HistogramVec),
		payoutJobs:   NewMetric(payoutJobs, subsystem).(*prometheus.CounterVec),
		payoutJobDur: NewMetric(payoutJobDur, subsystem).(*prometheus.HistogramVec),
		transitions:  NewMetric(transitions, subsystem).(*prometheus.CounterVec),
	}
	for _, c := range []prometheus.Collector{p.gatewayCalls, p.gatewayDur, p.payoutJobs, p.payoutJobDur, p.transitions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Payments) ObserveGatewayCall(op, result string, start time.Time) {
	if p == nil {
		return
	}
	p.gatewayCalls.WithLabelValues(op, result).Inc()
	p.gatewayDur.WithLabelValues(op).Observe(MillisecondsSince(start))
}

func (p *Payments) ObservePayoutJob(kind, result string, start time.Time) {
	if p == nil {
		return
	}
	p.payoutJobs.WithLabelValues(kind, result).Inc()
	p.payoutJobDur.WithLabelValues(kind).Observe(MillisecondsSince(start))
}

func (p *Payments) IncTransition(from, to string) {
	if p == nil {
		return
	}
	p.transitions.WithLabelValues(from, to).Inc()
}

func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

const (
	RefererKey = "X-Referer"
)

var Module = fx.Options(
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(NewPayments),
)

package metrics

/* derived from https://github.com/zsais/go-gin-prometheus
edits:
- zap logger instead of the std logger
- no push gateway, no basic auth
- route template ("/api/transactions/:id") as the url label
*/

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqSz = &Metric{
	ID:          "reqSz",
	Name:        "req_sz_bytes",
	Description: "The HTTP request sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var defaultMetricPath = "/metrics"

// Prometheus contains the HTTP metrics gathered by the instance and its path
type Prometheus struct {
	reqCnt       *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec

	listenAddress string
	MetricsPath   string
	logger        *zap.SugaredLogger
}

type NewPrometheusOptions struct {
	Subsystem     string
	MetricsPath   string
	ListenAddress string
	Registerer    prometheus.Registerer
	Logger        *zap.SugaredLogger
}

// NewPrometheus generates HTTP metrics with a certain subsystem name
func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		MetricsPath:   options.MetricsPath,
		listenAddress: options.ListenAddress,
		logger:        options.Logger,
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.logger == nil {
		p.logger = zap.NewNop().Sugar()
	}
	reg := options.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p.reqCnt = p.register(reg, reqCnt, options.Subsystem).(*prometheus.CounterVec)
	p.reqDur = p.register(reg, reqDur, options.Subsystem).(*prometheus.HistogramVec)
	p.reqSz = p.register(reg, reqSz, options.Subsystem).(*prometheus.SummaryVec)
	p.resSz = p.register(reg, resSz, options.Subsystem).(*prometheus.SummaryVec)
	return p
}

func (p *Prometheus) register(reg prometheus.Registerer, def *Metric, subsystem string) prometheus.Collector {
	metric := NewMetric(def, subsystem)
	if err := reg.Register(metric); err != nil {
		// keep the already registered collector so a second engine in the same process still records
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		p.logger.Errorf("%s could not be registered in Prometheus, err=%v", def.Name, err)
	}
	return metric
}

// Use adds the middleware to a gin engine. With a listen address the metrics endpoint is
// served by its own listener, which keeps GET /metrics out of the access log.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	if p.listenAddress == "" {
		e.GET(p.MetricsPath, gin.WrapH(promhttp.Handler()))
		return
	}
	mux := http.NewServeMux()
	mux.Handle(p.MetricsPath, promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(p.listenAddress, mux); err != nil && err != http.ErrServerClosed {
			p.logger.Errorw("metrics_server_failed", "addr", p.listenAddress, "err", err)
		}
	}()
}

// HandlerFunc defines handler function for middleware
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		requestSize := computeApproximateRequestSize(c.Request)

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := c.FullPath()
		if url == "" {
			url = "unmatched"
		}
		ref := c.Request.Header.Get(RefererKey)

		p.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
		p.reqSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(requestSize))
		p.resSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(c.Writer.Size()))
	}
}

func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}
	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)
	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}

package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CascadeBandit/internal/calculator"
	"CascadeBandit/internal/model"
)

// Frame results used as the frames_total label.
const (
	FrameConverted = "converted"
	FrameFailed    = "failed"
	FrameSkipped   = "skipped"
	FrameError     = "error"
)

// BanditCollector bundles Prometheus metrics for the bandit loop.
type BanditCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal   *prometheus.CounterVec
	FrameDuration prometheus.Histogram
	BankFailures  *prometheus.CounterVec

	ArmConstraint   *prometheus.GaugeVec
	ArmPrimaryMean  *prometheus.GaugeVec
	ArmRepeatedMean *prometheus.GaugeVec
	Conversion      *prometheus.GaugeVec

	ActiveConfigs     prometheus.Gauge
	HistoricalConfigs prometheus.Gauge
}

// NewBanditCollector registers bandit metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewBanditCollector(reg prometheus.Registerer) (*BanditCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bandit_frames_total",
		Help: "Bandit frames played, labeled by result.",
	}, []string{"result"}), "bandit_frames_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bandit_frame_duration_seconds",
		Help:    "Time spent choosing and playing one cascade.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "bandit_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bandit_bank_failures_total",
		Help: "Simulated bank failure transitions, labeled by type.",
	}, []string{"type"}), "bandit_bank_failures_total")
	if err != nil {
		return nil, err
	}

	constraint, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bandit_arm_constraint",
		Help: "Remaining capacity per arm.",
	}, []string{"arm"}), "bandit_arm_constraint")
	if err != nil {
		return nil, err
	}
	primaryMean, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bandit_arm_primary_mean",
		Help: "Posterior mean of the primary success rate per arm.",
	}, []string{"arm"}), "bandit_arm_primary_mean")
	if err != nil {
		return nil, err
	}
	repeatedMean, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bandit_arm_repeated_mean",
		Help: "Posterior mean of the repeated success rate per arm.",
	}, []string{"arm"}), "bandit_arm_repeated_mean")
	if err != nil {
		return nil, err
	}
	conversion, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bandit_conversion_percent",
		Help: "Conversion percentage, labeled by level.",
	}, []string{"level"}), "bandit_conversion_percent")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bandit_active_configurations",
		Help: "Configurations still eligible to be chosen.",
	}), "bandit_active_configurations")
	if err != nil {
		return nil, err
	}
	historical, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bandit_historical_configurations",
		Help: "Configurations ever registered.",
	}), "bandit_historical_configurations")
	if err != nil {
		return nil, err
	}

	return &BanditCollector{
		gatherer:          gatherer,
		FramesTotal:       frames,
		FrameDuration:     duration,
		BankFailures:      failures,
		ArmConstraint:     constraint,
		ArmPrimaryMean:    primaryMean,
		ArmRepeatedMean:   repeatedMean,
		Conversion:        conversion,
		ActiveConfigs:     active,
		HistoricalConfigs: historical,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BanditCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *BanditCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFrame records one frame's result and latency.
func (c *BanditCollector) ObserveFrame(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.FramesTotal.WithLabelValues(result).Inc()
	c.FrameDuration.Observe(d.Seconds())
}

// IncFailure counts a bank failure transition.
func (c *BanditCollector) IncFailure(evt model.FailureEvent) {
	if c == nil {
		return
	}
	c.BankFailures.WithLabelValues(string(evt.Type)).Inc()
}

// ObserveSnapshot drives every gauge from a snapshot.
func (c *BanditCollector) ObserveSnapshot(snap *model.Snapshot) {
	if c == nil || snap == nil {
		return
	}
	for _, a := range snap.Arms {
		arm := strconv.Itoa(a.Index)
		c.ArmConstraint.WithLabelValues(arm).Set(float64(a.Constraint))
		c.ArmPrimaryMean.WithLabelValues(arm).Set(a.Primary.Mean())
		c.ArmRepeatedMean.WithLabelValues(arm).Set(a.Repeated.Mean())
	}
	cnt := snap.Counters
	c.Conversion.WithLabelValues("primary").Set(calculator.Conversion(cnt.PrimarySuccess, cnt.PrimaryPayments))
	c.Conversion.WithLabelValues("repeated").Set(calculator.Conversion(cnt.RepeatedSuccess, cnt.RepeatedPayments))
	c.Conversion.WithLabelValues("overall").Set(calculator.Conversion(cnt.Success, cnt.Payments))
	c.Conversion.WithLabelValues("cascade").Set(calculator.Conversion(cnt.CascadeSuccess, cnt.CascadePayments))
	c.ActiveConfigs.Set(float64(len(snap.Active)))
	c.HistoricalConfigs.Set(float64(len(snap.Historical)))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

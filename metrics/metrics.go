package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tripwise"

// Collector is a prometheus.Collector for attendance, badge and
// notification dispatch activity. A nil *Collector is valid and records nothing.
type Collector struct {
	checkIns         *prometheus.CounterVec
	checkInRejects   *prometheus.CounterVec
	badgesUnlocked   *prometheus.CounterVec
	tripsCompleted   prometheus.Counter
	messagesEnqueued *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		checkIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "checkins_total",
				Help:      "Confirmed attendance check-ins by method.",
			}, []string{"method"},
		),
		checkInRejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "checkin_rejections_total",
				Help:      "Rejected attendance proofs by method and reason.",
			}, []string{"method", "reason"},
		),
		badgesUnlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "badges_unlocked_total",
				Help:      "Newly unlocked participant badges by condition type.",
			}, []string{"condition"},
		),
		tripsCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "trips_completed_total",
				Help:      "Trips transitioned to completed.",
			},
		),
		messagesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_enqueued_total",
				Help:      "Outbound messages appended to the queue by template type.",
			}, []string{"template"},
		),
		messagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_dispatched_total",
				Help:      "Outbound messages reaching a terminal state.",
			}, []string{"status"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_pass_seconds",
				Help:      "Duration of one dispatch pass.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.checkIns.Describe(ch)
	c.checkInRejects.Describe(ch)
	c.badgesUnlocked.Describe(ch)
	c.tripsCompleted.Describe(ch)
	c.messagesEnqueued.Describe(ch)
	c.messagesSent.Describe(ch)
	c.dispatchDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.checkIns.Collect(ch)
	c.checkInRejects.Collect(ch)
	c.badgesUnlocked.Collect(ch)
	c.tripsCompleted.Collect(ch)
	c.messagesEnqueued.Collect(ch)
	c.messagesSent.Collect(ch)
	c.dispatchDuration.Collect(ch)
}

func (c *Collector) CheckIn(method string) {
	if c == nil {
		return
	}
	c.checkIns.WithLabelValues(method).Inc()
}

func (c *Collector) CheckInRejected(method, reason string) {
	if c == nil {
		return
	}
	c.checkInRejects.WithLabelValues(method, reason).Inc()
}

func (c *Collector) BadgeUnlocked(condition string) {
	if c == nil {
		return
	}
	c.badgesUnlocked.WithLabelValues(condition).Inc()
}

func (c *Collector) TripCompleted() {
	if c == nil {
		return
	}
	c.tripsCompleted.Inc()
}

func (c *Collector) MessagesEnqueued(template string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.messagesEnqueued.WithLabelValues(template).Add(float64(n))
}

func (c *Collector) MessageDispatched(status string) {
	if c == nil {
		return
	}
	c.messagesSent.WithLabelValues(status).Inc()
}

// ObserveDispatch records the duration of one pass in seconds.
func (c *Collector) ObserveDispatch(seconds float64) {
	if c == nil {
		return
	}
	c.dispatchDuration.Observe(seconds)
}

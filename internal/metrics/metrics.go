// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	VerificationTransitions *prometheus.CounterVec
	MessagesSent            prometheus.Counter
	NotificationsCreated    *prometheus.CounterVec
	PushDispatches          *prometheus.CounterVec
	ImageUploads            *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VerificationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plated",
			Name:      "verification_transitions_total",
			Help:      "Verification status changes by target status.",
		}, []string{"status"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plated",
			Name:      "messages_sent_total",
			Help:      "Messages stored in conversations.",
		}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plated",
			Name:      "notifications_created_total",
			Help:      "Notification rows created by type.",
		}, []string{"type"}),
		PushDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plated",
			Name:      "push_dispatches_total",
			Help:      "Push deliveries handed to SNS by result.",
		}, []string{"result"}),
		ImageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plated",
			Name:      "image_uploads_total",
			Help:      "Processed image uploads by destination.",
		}, []string{"destination"}),
	}
	reg.MustRegister(
		m.VerificationTransitions,
		m.MessagesSent,
		m.NotificationsCreated,
		m.PushDispatches,
		m.ImageUploads,
	)
	return m
}

func (m *Metrics) Transition(status string) {
	if m != nil {
		m.VerificationTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) NotificationCreated(kind string) {
	if m != nil {
		m.NotificationsCreated.WithLabelValues(kind).Inc()
	}
}

// Push records a push dispatch; ok=false counts a failed delivery.
func (m *Metrics) Push(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.PushDispatches.WithLabelValues(result).Inc()
}

// ImageUpload records where a processed image ended up: "bucket" or "inline".
func (m *Metrics) ImageUpload(destination string) {
	if m != nil {
		m.ImageUploads.WithLabelValues(destination).Inc()
	}
}

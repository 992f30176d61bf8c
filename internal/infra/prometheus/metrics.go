package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Application counters exposed on /metrics.
var (
	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapurl_links_created_total",
		Help: "Short links successfully registered.",
	})

	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapurl_redirects_total",
		Help: "Redirect lookups by outcome.",
	}, []string{"outcome"})

	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapurl_clicks_recorded_total",
		Help: "Click events appended to link history.",
	})

	ExpiredLinksPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapurl_expired_links_purged_total",
		Help: "Expired links removed by the background sweeper.",
	})

	ClickEventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapurl_click_events_consumed_total",
		Help: "Click events drained from the JetStream pipeline.",
	})
)

// Redirect outcome labels.
const (
	OutcomeRedirect = "redirect"
	OutcomeNotFound = "not_found"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

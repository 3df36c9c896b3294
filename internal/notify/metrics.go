package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mess_notify_ticks_total",
		Help: "Scheduler base ticks observed.",
	})
	dispatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mess_notify_dispatches_total",
		Help: "Notifications handed to the transport.",
	})
	skipTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mess_notify_skips_total",
		Help: "Ticks that ended without a dispatch, by reason.",
	}, []string{"reason"})
	tickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mess_notify_tick_errors_total",
		Help: "Errors swallowed inside scheduler ticks.",
	})
)

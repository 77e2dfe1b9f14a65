package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	listingsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_submitted_total",
		Help: "Total number of listings stored in the pending state",
	})

	validationEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validation_enqueue_failures_total",
		Help: "Total number of validation e-mails that could not be handed to delivery",
	})

	validationRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_redemptions_total",
			Help: "Total number of validation token redemptions by result",
		},
		[]string{"result"},
	)
)

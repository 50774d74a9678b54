package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberships_redemptions_total",
		Help: "Redemption attempts by outcome.",
	}, []string{"result"})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberships_validation_failures_total",
		Help: "Failed validations by structured reason.",
	}, []string{"reason"})

	RenewalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberships_renewals_total",
		Help: "Completed subscription renewals.",
	})

	SubscriptionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberships_subscriptions_created_total",
		Help: "Subscriptions issued.",
	})
)

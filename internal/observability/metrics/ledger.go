package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Registration dialogue outcomes",
		},
		[]string{"outcome"},
	)

	RegistrationSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registration_sessions_active",
			Help: "Number of registration dialogues in progress",
		},
	)

	RewardClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_claims_total",
			Help: "Daily reward claim outcomes",
		},
		[]string{"outcome"},
	)

	RewardAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reward_amount_crypt",
			Help:    "Granted daily reward amounts",
			Buckets: prometheus.LinearBuckets(20, 10, 11),
		},
	)

	ChallengesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reward_challenges_issued_total",
			Help: "Total number of reward challenges issued",
		},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Transfer command outcomes",
		},
		[]string{"outcome"},
	)

	TransferAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transfer_amount_crypt",
			Help:    "Transferred crypt amounts",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	TransferNotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transfer_notification_failures_total",
			Help: "Recipient notifications that could not be delivered",
		},
	)

	WebSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "web_sessions_active",
			Help: "Number of live web sessions",
		},
	)
)

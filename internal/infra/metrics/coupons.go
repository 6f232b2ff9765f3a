package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		templatesCreatedTotal,
		couponsIssuedTotal,
		redemptionsTotal,
		passcodeCollisionsTotal,
	)
}

var (
	templatesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_templates_created_total",
			Help: "Template creation attempts by result.",
		},
		[]string{"result"},
	)

	couponsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupons_issued_total",
			Help: "Issuance attempts by flow (issue|purchase) and result.",
		},
		[]string{"flow", "result"},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_redemptions_total",
			Help: "Check and redeem calls by phase and result.",
		},
		[]string{"phase", "result"}, // phase: check|redeem
	)

	passcodeCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_passcode_collisions_total",
			Help: "Generated pass codes rejected by the uniqueness constraint.",
		},
	)
)

func IncTemplateCreated(result string) {
	templatesCreatedTotal.WithLabelValues(norm(result)).Inc()
}

func IncCouponIssued(flow, result string) {
	couponsIssuedTotal.WithLabelValues(norm(flow), norm(result)).Inc()
}

func IncRedemption(phase, result string) {
	redemptionsTotal.WithLabelValues(norm(phase), norm(result)).Inc()
}

func IncPasscodeCollision() { passcodeCollisionsTotal.Inc() }

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerPostingsTotal,
		ledgerPointsTotal,
		ledgerRejectionsTotal,
	)
}

var (
	ledgerPostingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Committed ledger transactions by type and direction.",
		},
		[]string{"type", "direction"}, // direction: debit|credit
	)

	ledgerPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_points_total",
			Help: "Absolute points moved by committed ledger transactions.",
		},
		[]string{"type", "direction"},
	)

	ledgerRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_rejections_total",
			Help: "Postings refused before commit, by reason.",
		},
		[]string{"reason"}, // insufficient_balance, not_found, ...
	)
)

func ObservePosting(txType string, amount int64) {
	dir := "credit"
	if amount < 0 {
		dir = "debit"
		amount = -amount
	}
	ledgerPostingsTotal.WithLabelValues(norm(txType), dir).Inc()
	ledgerPointsTotal.WithLabelValues(norm(txType), dir).Add(float64(amount))
}

func IncLedgerRejection(reason string) {
	ledgerRejectionsTotal.WithLabelValues(norm(reason)).Inc()
}

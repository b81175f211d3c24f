// Package metrics holds the Prometheus collectors shared by the ledger,
// settlement and queue packages. All collectors register with the default
// registry, which the API serves at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "labelhub"

var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Ledger entries written, by direction and reason.",
}, []string{"direction", "reason"})

var InsufficientFunds = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "insufficient_funds_total",
	Help:      "Debits rejected because the balance would go negative.",
})

var OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "orders",
	Name:      "transitions_total",
	Help:      "Committed order transitions, by operation.",
}, []string{"operation"})

var BulkPayOrders = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "orders",
	Name:      "bulk_pay_orders_total",
	Help:      "Orders reported by bulk payment, by outcome (paid, unpaid).",
}, []string{"outcome"})

var JobsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "queue",
	Name:      "jobs_published_total",
	Help:      "Scan jobs handed to the publisher, by result (ok, error).",
}, []string{"result"})

var ScanResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "queue",
	Name:      "scan_results_total",
	Help:      "Scan result messages consumed, by outcome (success, failure, rejected, requeued).",
}, []string{"outcome"})

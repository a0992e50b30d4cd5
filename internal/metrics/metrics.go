package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	policiesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policygraph_policies_created_total",
		Help: "Total number of policies successfully created",
	})
	policiesRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policygraph_policies_rejected_total",
		Help: "Total number of policy writes rejected by validation",
	})
	matchesEvaluatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policygraph_matches_evaluated_total",
		Help: "Total number of threat evaluations submitted to the matcher",
	})
	matchesHitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policygraph_matches_hit_total",
		Help: "Total number of evaluations that selected a winning policy",
	})
	policiesSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policygraph_policies_swept_total",
		Help: "Total number of expired policies removed by the sweeper",
	})
	importRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policygraph_import_records_total",
		Help: "Imported policy records by outcome",
	}, []string{"outcome"})
	threatsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policygraph_threats_recorded_total",
		Help: "Total number of threat events recorded in history",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		policiesCreatedTotal,
		policiesRejectedTotal,
		matchesEvaluatedTotal,
		matchesHitTotal,
		policiesSweptTotal,
		importRecordsTotal,
		threatsRecordedTotal,
	)
}

// IncPolicyCreated increments the created-policies counter.
func IncPolicyCreated() { policiesCreatedTotal.Inc() }

// IncPolicyRejected increments the validation-rejects counter.
func IncPolicyRejected() { policiesRejectedTotal.Inc() }

// IncMatchEvaluated increments the evaluated-threats counter.
func IncMatchEvaluated() { matchesEvaluatedTotal.Inc() }

// IncMatchHit increments the winning-match counter.
func IncMatchHit() { matchesHitTotal.Inc() }

// AddPoliciesSwept adds to the swept-policies counter.
func AddPoliciesSwept(n int) { policiesSweptTotal.Add(float64(n)) }

// IncImportAccepted counts one accepted import record.
func IncImportAccepted() { importRecordsTotal.WithLabelValues("accepted").Inc() }

// IncImportRejected counts one rejected import record.
func IncImportRejected() { importRecordsTotal.WithLabelValues("rejected").Inc() }

// IncThreatRecorded increments the recorded-threats counter.
func IncThreatRecorded() { threatsRecordedTotal.Inc() }

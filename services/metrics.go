package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition labels of stageTransitionsTotal
const (
	transitionCreate        = "create"
	transitionSubmit        = "submit"
	transitionApprove       = "approve"
	transitionReject        = "reject"
	transitionUploadApprove = "upload_approve"
	transitionDeleteFile    = "delete_file"
)

// Outcome labels of reminderSweepRecordsTotal
const (
	SweepOutcomeSuppressed = "suppressed"
	SweepOutcomeSent       = "sent"
	SweepOutcomeSkipped    = "skipped"
	SweepOutcomeFailed     = "failed"
)

var (
	stageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_transitions_total",
			Help: "Committed stage transitions by kind and transition",
		},
		[]string{"kind", "transition"},
	)

	stageCreateConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_create_conflicts_total",
			Help: "Stage creations rejected because the case already has a record of the kind",
		},
		[]string{"kind"},
	)

	reminderSweepRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweep_records_total",
			Help: "Expiry records processed by the reminder sweep by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveSweepOutcome counts one record processed by the reminder sweep
func ObserveSweepOutcome(outcome string) {
	reminderSweepRecordsTotal.WithLabelValues(outcome).Inc()
}

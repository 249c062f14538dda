package config

import "time"

const (
	DefaultTimeZone = "Africa/Cairo"

	// Import pipeline defaults (overridable from services.yaml)
	ImportBatchSize  = 50
	ImportBatchDelay = 500 * time.Millisecond
	MaxRetries       = 3
	RetryDelay       = 1 * time.Second
	SampleRows       = 5

	// Nightly financial status reconciliation
	DefaultReconcileSchedule = "0 2 * * *"
	ReconcileBatchSize       = 200

	// Postgres NOTIFY channel carrying row change events
	ChangeChannel = "schoolsuite_changes"
)

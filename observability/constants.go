package observability

// Metric name prefixes
const (
	MetricPrefix = "spinnergy"
)

// Metric names
const (
	LedgerOperationsTotal   = MetricPrefix + ".ledger.operations_total"
	LedgerOperationDuration = MetricPrefix + ".ledger.operation_duration"

	LeaderboardSyncFailuresTotal = MetricPrefix + ".leaderboard.sync_failures_total"

	RetentionPrunedTotal = MetricPrefix + ".retention.pruned_total"

	EventsPublishedTotal = MetricPrefix + ".events.published_total"
)

// Label keys
const (
	LabelOperation  = "operation"
	LabelResult     = "result"
	LabelReason     = "reason"
	LabelCollection = "collection"
	LabelSink       = "sink"
	LabelEventType  = "event_type"
)

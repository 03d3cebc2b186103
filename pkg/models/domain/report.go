package domain

// Event is one flat record delivered to the telemetry backend. Keys use the
// dotted naming the New Relic Event API expects (e.g. "cost.unblended").
type Event map[string]any

const (
	EventTypeCostReport         = "AwsCostReport"
	EventTypeOptimizationReport = "AwsOptimizationReport"

	RecordTypeDetail  = "detail"
	RecordTypeSummary = "summary"
)

// Period is a closed-open reporting window rendered as ISO-8601 dates.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

package domain

// Recommendation is one Cost Optimization Hub suggestion with its numeric
// fields already validated.
type Recommendation struct {
	ID                         string
	ResourceID                 string
	ResourceArn                string
	ResourceType               string
	Region                     string
	ActionType                 string
	ImplementationEffort       string
	Source                     string
	CurrentSummary             string
	RecommendedSummary         string
	EstimatedMonthlySavings    float64
	EstimatedSavingsPercentage float64
}

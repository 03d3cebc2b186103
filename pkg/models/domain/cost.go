package domain

// CostGroup is one grouping-key combination returned by the cost data source,
// e.g. service x region, with its amount for the reporting period.
type CostGroup struct {
	Keys     []string
	Amount   float64
	Currency string
}

// CostDriver is one of the top contributors handed to the narrative analysis.
type CostDriver struct {
	Group   []string `json:"group"`
	CostUSD float64  `json:"cost_usd"`
	CostJPY int64    `json:"cost_jpy"`
}

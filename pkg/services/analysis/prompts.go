package analysis

import (
	"encoding/json"
	"fmt"
)

const costSystemPrompt = `You are an experienced FinOps specialist. Analyze the provided monthly AWS cost data and produce a report for IT administrators, in JSON format.
Your tasks:
1. Compare the provided monthly_budget (JPY) against the actual cost and, when monthly_forecast_jpy is greater than 0, the forecast cost, and assess the risk of exceeding the budget.
2. Analyze top_cost_drivers and identify the services and regions driving the cost.
3. Based on the above, write a concise situation summary, the potential risks, and recommended actions.
4. Whenever you mention an amount, state both the USD and JPY figures.`

const costRetrospectiveFormat = `{
  "summary": "(e.g. Actual cost for the previous month was $1500.00 (about 225000 JPY).)",
  "risk_assessment": "(e.g. The monthly budget (10000 JPY) was significantly exceeded. Amazon EC2 (ap-northeast-1) accounted for most of it at $800.20 (about 120030 JPY).)",
  "recommended_actions": "(e.g. Review EC2 usage in ap-northeast-1 and consider stopping unused resources.)"
}`

const costProgressFormat = `{
  "summary": "(e.g. Cost so far this month is $7.59 (about 1139 JPY), tracking well against the 10,000 JPY monthly budget.)",
  "risk_assessment": "(e.g. The main drivers are Amazon Elastic Compute Cloud - Compute (ap-northeast-1) at $1.22 (about 183 JPY) and Amazon ElastiCache (ap-northeast-1) at $1.05 (about 158 JPY). The risk of exceeding the monthly budget is currently low.)",
  "recommended_actions": "(e.g. Review whether the top cost drivers are being used beyond what is needed, and consider CloudWatch alarms to catch budget overruns early.)"
}`

const optimizationSystemPrompt = `You are an experienced cloud cost optimization consultant. Analyze the provided list of AWS cost-saving recommendations and produce an actionable plan for IT administrators, in JSON format.
Your tasks:
1. Review every recommendation and establish the total savings potential (USD and JPY).
2. Prioritize by weighing each recommendation's estimated savings against its implementationEffort; treat high-savings, low-effort items as top priority.
3. Present the plan in three parts: an overall assessment, immediate actions, and a strategic recommendation.
4. Whenever you mention an amount, state both the USD and JPY figures as provided in the data.`

const optimizationFormat = `{
  "overall_assessment": "(e.g. There are 7 recommendations with a combined savings potential of about $8.008 (about 1201 JPY) per month, mostly unattached EBS volume deletions that are both impactful and easy to implement.)",
  "immediate_actions": [
    {
      "priority": "high",
      "action": "(e.g. Delete the unattached EBS volumes identified by the recommendations.)",
      "estimated_savings_usd": 150.75,
      "estimated_savings_jpy": 22612,
      "reason_for_priority": "Large savings with minimal implementation effort."
    }
  ],
  "strategic_recommendation": "(e.g. Introduce a periodic volume inventory process and evaluate Savings Plans for sustained optimization.)"
}`

func costPrompt(report CostReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode cost report for prompt: %w", err)
	}

	format := costProgressFormat
	if report.FirstOfMonth {
		format = costRetrospectiveFormat
	}

	return fmt.Sprintf(`%s

Analyze the following cost data and produce the report in the JSON format specified below.

[Data]
%s

[Output format]
%s`, costSystemPrompt, data, format), nil
}

func optimizationPrompt(report OptimizationReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode optimization report for prompt: %w", err)
	}

	return fmt.Sprintf(`%s

Analyze the following cost-saving recommendation data and produce the action plan in the JSON format specified below.

[Data]
%s

[Output format]
%s`, optimizationSystemPrompt, data, optimizationFormat), nil
}

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/de-tools/cost-beacon/pkg/models/domain"
	"github.com/rs/zerolog"
)

const anthropicVersion = "bedrock-2023-05-31"

// Output budgets per workflow. The optimization plan enumerates every
// recommendation and needs the larger window.
const (
	costMaxTokens         = 1024
	optimizationMaxTokens = 4096
)

// CostReport is the numeric input handed to the cost narrative.
type CostReport struct {
	AccountID      string              `json:"aws_account_id"`
	Period         domain.Period       `json:"period"`
	Cost           CostTotals          `json:"cost"`
	TopCostDrivers []domain.CostDriver `json:"top_cost_drivers"`
	MonthlyBudget  Budget              `json:"monthly_budget"`

	// FirstOfMonth selects the prior-month retrospective prompt over the
	// month-to-date progress prompt. Not part of the model input data.
	FirstOfMonth bool `json:"-"`
}

type CostTotals struct {
	TotalUnblendedUSD  float64 `json:"total_unblended_usd"`
	MonthlyForecastUSD float64 `json:"monthly_forecast_usd"`
	TotalUnblendedJPY  int64   `json:"total_unblended_jpy"`
	MonthlyForecastJPY int64   `json:"monthly_forecast_jpy"`
}

type Budget struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

// OptimizationReport is the numeric input handed to the optimization
// narrative.
type OptimizationReport struct {
	TotalRecommendations     int                   `json:"totalRecommendations"`
	TotalEstimatedSavingsUSD float64               `json:"totalEstimatedSavingsUsd"`
	TotalEstimatedSavingsJPY int64                 `json:"totalEstimatedSavingsJpy"`
	Recommendations          []RecommendationBrief `json:"allRecommendationsSummary"`
}

type RecommendationBrief struct {
	ResourceType         string  `json:"resourceType"`
	Action               string  `json:"action"`
	EstimatedSavingsUSD  float64 `json:"estimatedSavingsUsd"`
	EstimatedSavingsJPY  int64   `json:"estimatedSavingsJpy"`
	ImplementationEffort string  `json:"implementationEffort"`
}

// Enricher attaches a best-effort narrative analysis to a summary event. It
// mutates the event in place and never fails the calling workflow: on any
// error only "analysis.error" is set.
type Enricher interface {
	EnrichCostSummary(ctx context.Context, report CostReport, summary domain.Event)
	EnrichOptimizationSummary(ctx context.Context, report OptimizationReport, summary domain.Event)
}

// RuntimeAPI is the slice of the Bedrock runtime client the enricher uses.
type RuntimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type BedrockEnricher struct {
	client  RuntimeAPI
	modelID string
}

func NewBedrockEnricher(client RuntimeAPI, modelID string) *BedrockEnricher {
	return &BedrockEnricher{
		client:  client,
		modelID: modelID,
	}
}

func (e *BedrockEnricher) EnrichCostSummary(ctx context.Context, report CostReport, summary domain.Event) {
	logger := zerolog.Ctx(ctx)

	prompt, err := costPrompt(report)
	if err == nil {
		logger.Info().Str("model", e.modelID).Msg("invoking model for monthly cost analysis")
		var result map[string]any
		result, err = e.invoke(ctx, prompt, costMaxTokens)
		if err == nil {
			mergeAnalysis(summary, result)
			logger.Info().Msg("added narrative analysis to cost summary")
			return
		}
	}

	logger.Error().Err(err).Msg("cost narrative analysis failed")
	summary["analysis.error"] = err.Error()
}

func (e *BedrockEnricher) EnrichOptimizationSummary(ctx context.Context, report OptimizationReport, summary domain.Event) {
	logger := zerolog.Ctx(ctx)

	prompt, err := optimizationPrompt(report)
	if err == nil {
		logger.Info().Str("model", e.modelID).Msg("invoking model for recommendation analysis")
		var result map[string]any
		result, err = e.invoke(ctx, prompt, optimizationMaxTokens)
		if err == nil {
			mergeAnalysis(summary, result)
			logger.Info().Msg("added narrative analysis to optimization summary")
			return
		}
	}

	logger.Error().Err(err).Msg("optimization narrative analysis failed")
	summary["analysis.error"] = err.Error()
}

type messageRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

func (e *BedrockEnricher) invoke(ctx context.Context, prompt string, maxTokens int) (map[string]any, error) {
	body, err := json.Marshal(messageRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []message{
			{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: prompt}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode model request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: aws.String(e.modelID),
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke model: %w", err)
	}

	var resp messageResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("model returned no content")
	}

	return ExtractJSONObject(resp.Content[0].Text)
}

func mergeAnalysis(summary domain.Event, result map[string]any) {
	for k, v := range result {
		summary["analysis."+k] = v
	}
}

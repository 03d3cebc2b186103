package optimization

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub/types"
	"github.com/de-tools/cost-beacon/pkg/models/domain"
	"github.com/de-tools/cost-beacon/pkg/services/analysis"
	"github.com/rs/zerolog"
)

const pageSize = 100

// HubAPI is the slice of the Cost Optimization Hub client the controller uses.
type HubAPI interface {
	ListRecommendations(ctx context.Context, params *costoptimizationhub.ListRecommendationsInput, optFns ...func(*costoptimizationhub.Options)) (*costoptimizationhub.ListRecommendationsOutput, error)
}

type Settings struct {
	Region  string
	JPYRate int
}

type Controller struct {
	client   HubAPI
	enricher analysis.Enricher
	settings Settings
}

func NewController(client HubAPI, enricher analysis.Enricher, settings Settings) *Controller {
	return &Controller{
		client:   client,
		enricher: enricher,
		settings: settings,
	}
}

// Report pages through every optimization recommendation for the account and
// shapes them into one detail event per valid recommendation plus a single
// narrative-enriched summary event. Records with malformed numeric data are
// skipped; they still count toward the total but contribute no savings.
func (c *Controller) Report(ctx context.Context, accountID string) ([]domain.Event, error) {
	logger := zerolog.Ctx(ctx)

	items, err := c.fetchRecommendations(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		logger.Info().Msg("no recommendations found")
		return nil, nil
	}

	var totalSavings float64
	var typeOrder []string
	typeCounts := make(map[string]int)
	briefs := make([]analysis.RecommendationBrief, 0, len(items))
	events := make([]domain.Event, 0, len(items)+1)

	for _, item := range items {
		rec, err := mapRecommendation(item)
		if err != nil {
			logger.Error().
				Err(err).
				Str("recommendation_id", aws.ToString(item.RecommendationId)).
				Msg("skipping recommendation due to data format error")
			continue
		}

		totalSavings += rec.EstimatedMonthlySavings
		if _, seen := typeCounts[rec.ResourceType]; !seen {
			typeOrder = append(typeOrder, rec.ResourceType)
		}
		typeCounts[rec.ResourceType]++

		events = append(events, c.detailEvent(accountID, rec))
		briefs = append(briefs, analysis.RecommendationBrief{
			ResourceType:         rec.ResourceType,
			Action:               rec.ActionType,
			EstimatedSavingsUSD:  rec.EstimatedMonthlySavings,
			EstimatedSavingsJPY:  domain.JPY(rec.EstimatedMonthlySavings, c.settings.JPYRate),
			ImplementationEffort: rec.ImplementationEffort,
		})
	}

	summary := domain.Event{
		"eventType":                     domain.EventTypeOptimizationReport,
		"recordType":                    domain.RecordTypeSummary,
		"aws.accountId":                 accountID,
		"aws.lambdaRegion":              c.settings.Region,
		"recommendation.totalCount":     len(items),
		"cost.totalEstimatedSavings":    totalSavings,
		"cost.totalEstimatedSavingsJpy": domain.JPY(totalSavings, c.settings.JPYRate),
		"recommendation.countByType":    countsByTypeJSON(typeOrder, typeCounts),
	}

	c.enricher.EnrichOptimizationSummary(ctx, analysis.OptimizationReport{
		TotalRecommendations:     len(items),
		TotalEstimatedSavingsUSD: totalSavings,
		TotalEstimatedSavingsJPY: domain.JPY(totalSavings, c.settings.JPYRate),
		Recommendations:          briefs,
	}, summary)

	events = append(events, summary)
	logger.Info().Int("events", len(events)).Msg("finished cost recommendation workflow")
	return events, nil
}

func (c *Controller) fetchRecommendations(ctx context.Context, accountID string) ([]types.Recommendation, error) {
	var items []types.Recommendation
	var nextToken *string
	for {
		out, err := c.client.ListRecommendations(ctx, &costoptimizationhub.ListRecommendationsInput{
			Filter:     &types.Filter{AccountIds: []string{accountID}},
			MaxResults: aws.Int32(pageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list recommendations: %w", err)
		}

		items = append(items, out.Items...)
		nextToken = out.NextToken
		if nextToken == nil {
			return items, nil
		}
	}
}

func mapRecommendation(item types.Recommendation) (domain.Recommendation, error) {
	savings, err := coerceAmount(item.EstimatedMonthlySavings)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("estimated monthly savings: %w", err)
	}
	percentage, err := coerceAmount(item.EstimatedSavingsPercentage)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("estimated savings percentage: %w", err)
	}

	resourceType := aws.ToString(item.CurrentResourceType)
	if resourceType == "" {
		resourceType = "Unknown"
	}

	return domain.Recommendation{
		ID:                         aws.ToString(item.RecommendationId),
		ResourceID:                 aws.ToString(item.ResourceId),
		ResourceArn:                aws.ToString(item.ResourceArn),
		ResourceType:               resourceType,
		Region:                     aws.ToString(item.Region),
		ActionType:                 aws.ToString(item.ActionType),
		ImplementationEffort:       aws.ToString(item.ImplementationEffort),
		Source:                     string(item.Source),
		CurrentSummary:             aws.ToString(item.CurrentResourceSummary),
		RecommendedSummary:         aws.ToString(item.RecommendedResourceSummary),
		EstimatedMonthlySavings:    savings,
		EstimatedSavingsPercentage: percentage,
	}, nil
}

func coerceAmount(v *float64) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("not a finite number: %v", *v)
	}
	return *v, nil
}

func (c *Controller) detailEvent(accountID string, rec domain.Recommendation) domain.Event {
	return domain.Event{
		"eventType":                       domain.EventTypeOptimizationReport,
		"recordType":                      domain.RecordTypeDetail,
		"aws.accountId":                   accountID,
		"aws.region":                      rec.Region,
		"aws.recommendationId":            rec.ID,
		"aws.currentResourceType":         rec.ResourceType,
		"aws.currentResourceId":           rec.ResourceID,
		"aws.currentResourceArn":          rec.ResourceArn,
		"aws.currentResourceSummary":      rec.CurrentSummary,
		"aws.recommendedResourceSummary":  rec.RecommendedSummary,
		"aws.implementationActionType":    rec.ActionType,
		"aws.implementationEffort":        rec.ImplementationEffort,
		"aws.analysisSource":              rec.Source,
		"cost.estimatedMonthlySavings":    rec.EstimatedMonthlySavings,
		"cost.estimatedSavingsPercentage": rec.EstimatedSavingsPercentage,
	}
}

// countsByTypeJSON renders the per-type counts as a JSON object string,
// keeping first-occurrence order. encoding/json sorts map keys, so the object
// is assembled by hand.
func countsByTypeJSON(order []string, counts map[string]int) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, resourceType := range order {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %d", resourceType, counts[resourceType])
	}
	b.WriteByte('}')
	return b.String()
}

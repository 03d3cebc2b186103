package optimization

import (
	"context"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub/types"
	"github.com/de-tools/cost-beacon/pkg/models/domain"
	"github.com/de-tools/cost-beacon/pkg/services/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockHubAPI is a mock implementation of HubAPI for testing
type MockHubAPI struct {
	mock.Mock
}

func (m *MockHubAPI) ListRecommendations(ctx context.Context, params *costoptimizationhub.ListRecommendationsInput, _ ...func(*costoptimizationhub.Options)) (*costoptimizationhub.ListRecommendationsOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*costoptimizationhub.ListRecommendationsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEnricher is a mock implementation of analysis.Enricher for testing
type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) EnrichCostSummary(ctx context.Context, report analysis.CostReport, summary domain.Event) {
	m.Called(ctx, report, summary)
}

func (m *MockEnricher) EnrichOptimizationSummary(ctx context.Context, report analysis.OptimizationReport, summary domain.Event) {
	m.Called(ctx, report, summary)
}

func recommendation(id, resourceType string, savings float64) types.Recommendation {
	return types.Recommendation{
		RecommendationId:           aws.String(id),
		CurrentResourceType:        aws.String(resourceType),
		ResourceId:                 aws.String(id + "-resource"),
		ResourceArn:                aws.String("arn:aws:ec2:us-east-1:123456789012:volume/" + id),
		Region:                     aws.String("us-east-1"),
		ActionType:                 aws.String("Delete"),
		ImplementationEffort:       aws.String("VeryLow"),
		EstimatedMonthlySavings:    aws.Float64(savings),
		EstimatedSavingsPercentage: aws.Float64(100),
	}
}

func TestReport_NoRecommendations(t *testing.T) {
	ctx := context.Background()
	mockHub := new(MockHubAPI)
	mockEnricher := new(MockEnricher)

	mockHub.On("ListRecommendations", ctx, mock.MatchedBy(func(in *costoptimizationhub.ListRecommendationsInput) bool {
		return in.Filter != nil &&
			len(in.Filter.AccountIds) == 1 &&
			in.Filter.AccountIds[0] == "123456789012" &&
			aws.ToInt32(in.MaxResults) == 100
	})).Return(&costoptimizationhub.ListRecommendationsOutput{}, nil).Once()

	ctrl := NewController(mockHub, mockEnricher, Settings{Region: "us-east-1", JPYRate: 150})

	events, err := ctrl.Report(ctx, "123456789012")

	assert.NoError(t, err)
	assert.Empty(t, events)
	mockEnricher.AssertNotCalled(t, "EnrichOptimizationSummary", mock.Anything, mock.Anything, mock.Anything)
	mockHub.AssertExpectations(t)
}

func TestReport_AggregatesAcrossPages(t *testing.T) {
	ctx := context.Background()
	mockHub := new(MockHubAPI)
	mockEnricher := new(MockEnricher)

	mockHub.On("ListRecommendations", ctx, mock.MatchedBy(func(in *costoptimizationhub.ListRecommendationsInput) bool {
		return in.NextToken == nil
	})).Return(&costoptimizationhub.ListRecommendationsOutput{
		Items: []types.Recommendation{
			recommendation("rec-1", "EbsVolume", 5.25),
			recommendation("rec-2", "Ec2Instance", 10.00),
		},
		NextToken: aws.String("page-2"),
	}, nil).Once()
	mockHub.On("ListRecommendations", ctx, mock.MatchedBy(func(in *costoptimizationhub.ListRecommendationsInput) bool {
		return aws.ToString(in.NextToken) == "page-2"
	})).Return(&costoptimizationhub.ListRecommendationsOutput{
		Items: []types.Recommendation{
			recommendation("rec-3", "EbsVolume", 2.75),
		},
	}, nil).Once()

	var enrichedReport analysis.OptimizationReport
	mockEnricher.On("EnrichOptimizationSummary", ctx, mock.AnythingOfType("analysis.OptimizationReport"), mock.Anything).
		Run(func(args mock.Arguments) {
			enrichedReport = args.Get(1).(analysis.OptimizationReport)
		}).Once()

	ctrl := NewController(mockHub, mockEnricher, Settings{Region: "us-east-1", JPYRate: 150})

	events, err := ctrl.Report(ctx, "123456789012")

	assert.NoError(t, err)
	assert.Len(t, events, 4) // 3 details + 1 summary

	detail := events[0]
	assert.Equal(t, "AwsOptimizationReport", detail["eventType"])
	assert.Equal(t, "detail", detail["recordType"])
	assert.Equal(t, "rec-1", detail["aws.recommendationId"])
	assert.Equal(t, "EbsVolume", detail["aws.currentResourceType"])
	assert.Equal(t, "Delete", detail["aws.implementationActionType"])
	assert.Equal(t, "VeryLow", detail["aws.implementationEffort"])
	assert.Equal(t, 5.25, detail["cost.estimatedMonthlySavings"])

	summary := events[3]
	assert.Equal(t, "summary", summary["recordType"])
	assert.Equal(t, 3, summary["recommendation.totalCount"])
	assert.Equal(t, 18.0, summary["cost.totalEstimatedSavings"])
	assert.Equal(t, int64(2700), summary["cost.totalEstimatedSavingsJpy"])
	assert.Equal(t, `{"EbsVolume": 2, "Ec2Instance": 1}`, summary["recommendation.countByType"])

	assert.Equal(t, 3, enrichedReport.TotalRecommendations)
	assert.Equal(t, 18.0, enrichedReport.TotalEstimatedSavingsUSD)
	assert.Len(t, enrichedReport.Recommendations, 3)

	mockHub.AssertExpectations(t)
	mockEnricher.AssertExpectations(t)
}

func TestReport_SkipsMalformedNumericRecords(t *testing.T) {
	ctx := context.Background()
	mockHub := new(MockHubAPI)
	mockEnricher := new(MockEnricher)

	bad := recommendation("rec-bad", "EbsVolume", 1.0)
	bad.EstimatedMonthlySavings = aws.Float64(math.NaN())

	mockHub.On("ListRecommendations", ctx, mock.Anything).
		Return(&costoptimizationhub.ListRecommendationsOutput{
			Items: []types.Recommendation{
				recommendation("rec-ok", "Ec2Instance", 4.0),
				bad,
			},
		}, nil).Once()
	mockEnricher.On("EnrichOptimizationSummary", ctx, mock.Anything, mock.Anything).Once()

	ctrl := NewController(mockHub, mockEnricher, Settings{Region: "us-east-1", JPYRate: 150})

	events, err := ctrl.Report(ctx, "123456789012")

	assert.NoError(t, err)
	assert.Len(t, events, 2) // one valid detail + summary

	summary := events[1]
	// The skipped record still counts toward the total but adds no savings.
	assert.Equal(t, 2, summary["recommendation.totalCount"])
	assert.Equal(t, 4.0, summary["cost.totalEstimatedSavings"])
	assert.Equal(t, `{"Ec2Instance": 1}`, summary["recommendation.countByType"])
}

func TestReport_SourceFailurePropagates(t *testing.T) {
	ctx := context.Background()
	mockHub := new(MockHubAPI)
	mockEnricher := new(MockEnricher)

	mockHub.On("ListRecommendations", ctx, mock.Anything).
		Return(nil, assert.AnError).Once()

	ctrl := NewController(mockHub, mockEnricher, Settings{Region: "us-east-1", JPYRate: 150})

	events, err := ctrl.Report(ctx, "123456789012")

	assert.Error(t, err)
	assert.Nil(t, events)
	mockEnricher.AssertNotCalled(t, "EnrichOptimizationSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestMapRecommendation(t *testing.T) {
	t.Run("missing resource type defaults to Unknown", func(t *testing.T) {
		item := recommendation("rec-1", "", 1.0)
		item.CurrentResourceType = nil

		rec, err := mapRecommendation(item)

		assert.NoError(t, err)
		assert.Equal(t, "Unknown", rec.ResourceType)
	})

	t.Run("nil savings treated as zero", func(t *testing.T) {
		item := recommendation("rec-1", "EbsVolume", 0)
		item.EstimatedMonthlySavings = nil

		rec, err := mapRecommendation(item)

		assert.NoError(t, err)
		assert.Equal(t, 0.0, rec.EstimatedMonthlySavings)
	})

	t.Run("infinite percentage rejected", func(t *testing.T) {
		item := recommendation("rec-1", "EbsVolume", 1.0)
		item.EstimatedSavingsPercentage = aws.Float64(math.Inf(1))

		_, err := mapRecommendation(item)

		assert.Error(t, err)
	})
}

func TestCountsByTypeJSON(t *testing.T) {
	order := []string{"EbsVolume", "Ec2Instance", "RdsDbInstance"}
	counts := map[string]int{"EbsVolume": 3, "Ec2Instance": 1, "RdsDbInstance": 2}

	assert.Equal(t, `{"EbsVolume": 3, "Ec2Instance": 1, "RdsDbInstance": 2}`, countsByTypeJSON(order, counts))
	assert.Equal(t, `{}`, countsByTypeJSON(nil, nil))
}

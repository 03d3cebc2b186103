package cost

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/de-tools/cost-beacon/pkg/models/domain"
	"github.com/de-tools/cost-beacon/pkg/services/analysis"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	dateLayout = "2006-01-02"
	topDrivers = 5
)

// The budget the narrative analysis compares actuals against.
var monthlyBudget = analysis.Budget{Amount: 10000, Currency: "JPY"}

// ExplorerAPI is the slice of the Cost Explorer client the controller uses.
type ExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetCostForecast(ctx context.Context, params *costexplorer.GetCostForecastInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostForecastOutput, error)
}

type Settings struct {
	Region       string
	DimensionKey string // primary grouping dimension, empty disables that level
	TagKey       string // optional third grouping level
	JPYRate      int
}

type Controller struct {
	client   ExplorerAPI
	enricher analysis.Enricher
	settings Settings
	now      func() time.Time
}

func NewController(client ExplorerAPI, enricher analysis.Enricher, settings Settings) *Controller {
	return &Controller{
		client:   client,
		enricher: enricher,
		settings: settings,
		now:      time.Now,
	}
}

// Report fetches the grouped cost actuals (and, mid-month, the month-end
// forecast) for the current reporting window and shapes them into one detail
// event per group plus a single narrative-enriched summary event.
func (c *Controller) Report(ctx context.Context, accountID string) ([]domain.Event, error) {
	logger := zerolog.Ctx(ctx)

	w := reportingWindow(c.now().UTC())
	logger.Info().
		Str("start", w.Start.Format(dateLayout)).
		Str("end", w.End.Format(dateLayout)).
		Msg("fetching monthly cost data")

	groups, err := c.fetchGroups(ctx, w)
	if err != nil {
		return nil, err
	}

	forecast, haveForecast, err := c.fetchForecast(ctx, w)
	if err != nil {
		return nil, err
	}

	if len(groups) == 0 && !haveForecast {
		logger.Warn().Msg("no actual cost data or forecast data found")
		return nil, nil
	}

	period := domain.Period{
		Start: w.Start.Format(dateLayout),
		End:   w.End.Format(dateLayout),
	}
	total := lo.SumBy(groups, func(g domain.CostGroup) float64 { return g.Amount })

	events := make([]domain.Event, 0, len(groups)+1)
	for _, g := range groups {
		events = append(events, c.detailEvent(accountID, period, g))
	}

	summary := domain.Event{
		"eventType":           domain.EventTypeCostReport,
		"recordType":          domain.RecordTypeSummary,
		"aws.accountId":       accountID,
		"aws.lambdaRegion":    c.settings.Region,
		"period.start":        period.Start,
		"period.end":          period.End,
		"cost.totalUnblended": total,
	}
	if !w.FirstOfMonth {
		summary["cost.monthlyForecast"] = forecast
	}

	c.enricher.EnrichCostSummary(ctx, analysis.CostReport{
		AccountID: accountID,
		Period:    period,
		Cost: analysis.CostTotals{
			TotalUnblendedUSD:  total,
			MonthlyForecastUSD: forecast,
			TotalUnblendedJPY:  domain.JPY(total, c.settings.JPYRate),
			MonthlyForecastJPY: domain.JPY(forecast, c.settings.JPYRate),
		},
		TopCostDrivers: c.topCostDrivers(groups),
		MonthlyBudget:  monthlyBudget,
		FirstOfMonth:   w.FirstOfMonth,
	}, summary)

	events = append(events, summary)
	logger.Info().Int("events", len(events)).Msg("finished cost explorer workflow")
	return events, nil
}

// Window is a closed-open reporting interval; End is the exclusive API end
// date, so a mid-month window covers through yesterday.
type Window struct {
	Start        time.Time
	End          time.Time
	FirstOfMonth bool
}

// reportingWindow returns the previous full month on the first of the month,
// otherwise the current month so far.
func reportingWindow(today time.Time) Window {
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	if today.Day() == 1 {
		return Window{
			Start:        monthStart.AddDate(0, -1, 0),
			End:          monthStart,
			FirstOfMonth: true,
		}
	}
	return Window{
		Start: monthStart,
		End:   time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
	}
}

func (c *Controller) groupDefinitions() []types.GroupDefinition {
	groupBy := make([]types.GroupDefinition, 0, 3)
	if c.settings.DimensionKey != "" {
		groupBy = append(groupBy, types.GroupDefinition{
			Type: types.GroupDefinitionTypeDimension,
			Key:  aws.String(c.settings.DimensionKey),
		})
	}
	groupBy = append(groupBy, types.GroupDefinition{
		Type: types.GroupDefinitionTypeDimension,
		Key:  aws.String("REGION"),
	})
	if c.settings.TagKey != "" {
		groupBy = append(groupBy, types.GroupDefinition{
			Type: types.GroupDefinitionTypeTag,
			Key:  aws.String(c.settings.TagKey),
		})
	}
	return groupBy
}

func (c *Controller) fetchGroups(ctx context.Context, w Window) ([]domain.CostGroup, error) {
	groupBy := c.groupDefinitions()

	var groups []domain.CostGroup
	var nextToken *string
	for {
		out, err := c.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod: &types.DateInterval{
				Start: aws.String(w.Start.Format(dateLayout)),
				End:   aws.String(w.End.Format(dateLayout)),
			},
			Granularity:   types.GranularityMonthly,
			Metrics:       []string{"UnblendedCost"},
			GroupBy:       groupBy,
			NextPageToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get cost and usage: %w", err)
		}

		if len(out.ResultsByTime) > 0 {
			for _, g := range out.ResultsByTime[0].Groups {
				groups = append(groups, transformGroup(g))
			}
		}

		nextToken = out.NextPageToken
		if nextToken == nil {
			return groups, nil
		}
	}
}

func transformGroup(g types.Group) domain.CostGroup {
	group := domain.CostGroup{Keys: g.Keys, Currency: "USD"}
	if m, ok := g.Metrics["UnblendedCost"]; ok {
		group.Amount, _ = strconv.ParseFloat(aws.ToString(m.Amount), 64)
		if unit := aws.ToString(m.Unit); unit != "" {
			group.Currency = unit
		}
	}
	return group
}

// fetchForecast retrieves the month-end forecast for the remainder of the
// current month. On the first of the month there is nothing left to forecast.
// A DataUnavailableException is not fatal; any other failure aborts the
// workflow.
func (c *Controller) fetchForecast(ctx context.Context, w Window) (float64, bool, error) {
	if w.FirstOfMonth {
		return 0, false, nil
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("fetching monthly cost forecast for current month")

	out, err := c.client.GetCostForecast(ctx, &costexplorer.GetCostForecastInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(w.End.Format(dateLayout)),
			End:   aws.String(w.Start.AddDate(0, 1, 0).Format(dateLayout)),
		},
		Metric:      types.MetricUnblendedCost,
		Granularity: types.GranularityMonthly,
	})
	if err != nil {
		var unavailable *types.DataUnavailableException
		if errors.As(err, &unavailable) {
			logger.Warn().Err(err).Msg("could not retrieve cost forecast")
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get cost forecast: %w", err)
	}

	if len(out.ForecastResultsByTime) == 0 {
		return 0, false, nil
	}
	amount, _ := strconv.ParseFloat(aws.ToString(out.ForecastResultsByTime[0].MeanValue), 64)
	return amount, true, nil
}

// detailEvent maps the ordered grouping keys back to named fields
// positionally: primary dimension, then region, then tag, each consumed only
// when that level was configured.
func (c *Controller) detailEvent(accountID string, period domain.Period, g domain.CostGroup) domain.Event {
	event := domain.Event{
		"eventType":        domain.EventTypeCostReport,
		"recordType":       domain.RecordTypeDetail,
		"aws.accountId":    accountID,
		"aws.lambdaRegion": c.settings.Region,
		"period.start":     period.Start,
		"period.end":       period.End,
		"cost.unblended":   g.Amount,
		"cost.currency":    g.Currency,
	}

	idx := 0
	if c.settings.DimensionKey != "" && len(g.Keys) > idx {
		event["aws."+toCamelCase(c.settings.DimensionKey)] = g.Keys[idx]
		idx++
	}
	if len(g.Keys) > idx {
		event["aws.region"] = g.Keys[idx]
		idx++
	}
	if c.settings.TagKey != "" && len(g.Keys) > idx {
		event["aws.tag."+sanitizeTagKey(c.settings.TagKey)] = g.Keys[idx]
	}
	return event
}

// topCostDrivers returns the five largest groups by amount. The sort is
// stable so equal amounts keep their source order.
func (c *Controller) topCostDrivers(groups []domain.CostGroup) []domain.CostDriver {
	sorted := make([]domain.CostGroup, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	if len(sorted) > topDrivers {
		sorted = sorted[:topDrivers]
	}

	return lo.Map(sorted, func(g domain.CostGroup, _ int) domain.CostDriver {
		return domain.CostDriver{
			Group:   g.Keys,
			CostUSD: g.Amount,
			CostJPY: domain.JPY(g.Amount, c.settings.JPYRate),
		}
	})
}

// toCamelCase turns a cost dimension key like LINKED_ACCOUNT into
// linkedAccount for use in event field names.
func toCamelCase(key string) string {
	parts := strings.Split(strings.ToLower(key), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

func sanitizeTagKey(key string) string {
	return strings.NewReplacer("$", "_", ":", "_").Replace(key)
}

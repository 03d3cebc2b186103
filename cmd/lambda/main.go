package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	"github.com/de-tools/cost-beacon/pkg/handlers/report"
	"github.com/de-tools/cost-beacon/pkg/services/analysis"
	"github.com/de-tools/cost-beacon/pkg/services/config"
	"github.com/de-tools/cost-beacon/pkg/services/cost"
	"github.com/de-tools/cost-beacon/pkg/services/optimization"
	"github.com/de-tools/cost-beacon/pkg/store/newrelic"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	handler, err := buildHandler(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize handler")
	}

	lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx))
}

func buildHandler(ctx context.Context, cfg *config.Config) (*report.Handler, error) {
	awsCfg, err := config.LoadAWS(ctx, cfg.TargetRegion)
	if err != nil {
		return nil, err
	}

	// The narrative model may live in a different region than the cost APIs.
	bedrockCfg := awsCfg.Copy()
	bedrockCfg.Region = cfg.BedrockRegion

	enricher := analysis.NewBedrockEnricher(bedrockruntime.NewFromConfig(bedrockCfg), cfg.BedrockModelID)

	costCtrl := cost.NewController(costexplorer.NewFromConfig(*awsCfg), enricher, cost.Settings{
		Region:       cfg.TargetRegion,
		DimensionKey: cfg.GroupByDimensionKey,
		TagKey:       cfg.GroupByTagKey,
		JPYRate:      cfg.JPYExchangeRate,
	})
	optCtrl := optimization.NewController(costoptimizationhub.NewFromConfig(*awsCfg), enricher, optimization.Settings{
		Region:  cfg.TargetRegion,
		JPYRate: cfg.JPYExchangeRate,
	})
	emitter := newrelic.NewEmitter(newrelic.Settings{
		LicenseKey: cfg.NewRelicLicenseKey,
		AccountID:  cfg.NewRelicAccountID,
	})

	return report.NewHandler(cfg, costCtrl, optCtrl, emitter, report.Settings{}), nil
}

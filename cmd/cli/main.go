package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	"github.com/de-tools/cost-beacon/pkg/handlers/report"
	"github.com/de-tools/cost-beacon/pkg/services/analysis"
	"github.com/de-tools/cost-beacon/pkg/services/config"
	"github.com/de-tools/cost-beacon/pkg/services/cost"
	"github.com/de-tools/cost-beacon/pkg/services/optimization"
	"github.com/de-tools/cost-beacon/pkg/store/newrelic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var accountID string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cost-beacon",
		Short: "Run the AWS cost reporting pipeline once and exit",
		RunE:  run,
	}

	rootCmd.Flags().StringVarP(&accountID, "account", "a", "",
		"AWS account id to report on (outside Lambda the function ARN is unavailable)")
	_ = rootCmd.MarkFlagRequired("account")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	awsCfg, err := config.LoadAWS(ctx, cfg.TargetRegion)
	if err != nil {
		return err
	}
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

	handler := report.NewHandler(cfg, costCtrl, optCtrl, emitter, report.Settings{AccountID: accountID})

	resp, err := handler.Handle(ctx, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("run failed with status %d: %s", resp.StatusCode, resp.Body)
	}

	logger.Info().Str("body", resp.Body).Msg("run complete")
	return nil
}

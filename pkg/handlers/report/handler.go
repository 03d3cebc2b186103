package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/de-tools/cost-beacon/pkg/models/domain"
	"github.com/de-tools/cost-beacon/pkg/services/config"
	"github.com/rs/zerolog"
)

// Reporter is one aggregation workflow producing a batch of events.
type Reporter interface {
	Report(ctx context.Context, accountID string) ([]domain.Event, error)
}

// Emitter delivers the combined event batch downstream.
type Emitter interface {
	Send(ctx context.Context, events []domain.Event) error
}

// Response mirrors the API-Gateway-style result the scheduler records.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Settings struct {
	// AccountID overrides ARN-based account discovery; used by the local
	// runner where no Lambda context exists.
	AccountID string
}

// Handler sequences the two aggregation workflows and the final delivery.
// Each workflow's failure is isolated; only a delivery failure after all
// retries fails the invocation.
type Handler struct {
	cfg          *config.Config
	cost         Reporter
	optimization Reporter
	emitter      Emitter
	settings     Settings
}

func NewHandler(cfg *config.Config, cost, optimization Reporter, emitter Emitter, settings Settings) *Handler {
	return &Handler{
		cfg:          cfg,
		cost:         cost,
		optimization: optimization,
		emitter:      emitter,
		settings:     settings,
	}
}

func (h *Handler) Handle(ctx context.Context, _ json.RawMessage) (Response, error) {
	logger := zerolog.Ctx(ctx)

	if !h.cfg.HasDeliveryCredentials() {
		logger.Error().Msg("missing New Relic credentials in environment variables")
		return Response{StatusCode: 500, Body: "Missing New Relic configuration."}, nil
	}

	accountID, err := h.accountID(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("unable to determine AWS account id")
		return Response{StatusCode: 500, Body: "Unable to determine AWS account id."}, nil
	}

	logger.Info().Str("account_id", accountID).Msg("report execution started")

	var events []domain.Event
	if costEvents, err := h.cost.Report(ctx, accountID); err != nil {
		logger.Error().Err(err).Msg("cost explorer workflow encountered an unhandled error")
	} else {
		events = append(events, costEvents...)
	}
	if recEvents, err := h.optimization.Report(ctx, accountID); err != nil {
		logger.Error().Err(err).Msg("cost recommendation workflow encountered an unhandled error")
	} else {
		events = append(events, recEvents...)
	}

	if len(events) > 0 {
		if err := h.emitter.Send(ctx, events); err != nil {
			logger.Error().Err(err).Msg("final event delivery failed")
			return Response{}, err
		}
	} else {
		logger.Warn().Msg("no events were generated from any workflow")
	}

	logger.Info().Int("events", len(events)).Msg("report execution finished")

	body, err := json.Marshal(map[string]string{
		"message": fmt.Sprintf("Processing complete. Total events generated: %d", len(events)),
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode response body: %w", err)
	}
	return Response{StatusCode: 200, Body: string(body)}, nil
}

// accountID extracts the AWS account id from the invoked function ARN
// (arn:aws:lambda:region:ACCOUNT:function:name) unless the settings override
// it.
func (h *Handler) accountID(ctx context.Context) (string, error) {
	if h.settings.AccountID != "" {
		return h.settings.AccountID, nil
	}

	lc, ok := lambdacontext.FromContext(ctx)
	if !ok || lc.InvokedFunctionArn == "" {
		return "", errors.New("no lambda context with an invoked function ARN")
	}

	parts := strings.Split(lc.InvokedFunctionArn, ":")
	if len(parts) < 5 || parts[4] == "" {
		return "", fmt.Errorf("malformed function ARN: %s", lc.InvokedFunctionArn)
	}
	return parts[4], nil
}

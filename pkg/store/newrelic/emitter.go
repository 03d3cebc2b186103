package newrelic

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/de-tools/cost-beacon/pkg/models/domain"
	"github.com/rs/zerolog"
)

const (
	defaultEndpoint = "insights-collector.newrelic.com"
	euEndpoint      = "insights-collector.eu01.nr-data.net"

	maxAttempts    = 3
	requestTimeout = 15 * time.Second
)

type Settings struct {
	LicenseKey string
	AccountID  string
}

// Emitter delivers flat event records to the New Relic Event API as a
// gzip-compressed JSON array, retrying with exponential backoff and jitter.
type Emitter struct {
	client   *http.Client
	settings Settings
	baseURL  string

	// Seams for the retry tests.
	sleep  func(time.Duration)
	jitter func() float64
}

func NewEmitter(settings Settings) *Emitter {
	endpoint := defaultEndpoint
	if strings.HasPrefix(settings.LicenseKey, "eu") {
		endpoint = euEndpoint
	}

	return &Emitter{
		client:   &http.Client{Timeout: requestTimeout},
		settings: settings,
		baseURL:  "https://" + endpoint,
		sleep:    time.Sleep,
		jitter:   rand.Float64,
	}
}

// Send posts all events in one request. An empty list is a no-op. After
// maxAttempts failures it returns a delivery error; this is the one failure
// the pipeline cannot absorb.
func (e *Emitter) Send(ctx context.Context, events []domain.Event) error {
	logger := zerolog.Ctx(ctx)

	if len(events) == 0 {
		logger.Info().Msg("no events to send")
		return nil
	}

	body, err := compressEvents(events)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/accounts/%s/events", e.baseURL, e.settings.AccountID)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := e.post(ctx, url, body)
		if err == nil && status >= 200 && status < 300 {
			logger.Info().Int("events", len(events)).Msg("successfully sent events to New Relic")
			return nil
		}

		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("New Relic send attempt failed")
		} else {
			logger.Warn().Int("attempt", attempt+1).Int("status", status).Msg("New Relic send attempt failed")
		}

		e.sleep(e.backoff(attempt))
	}

	return fmt.Errorf("failed to send events to New Relic after %d attempts", maxAttempts)
}

func (e *Emitter) post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Api-Key", e.settings.LicenseKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// backoff returns 2^attempt seconds plus a random fraction of a second.
func (e *Emitter) backoff(attempt int) time.Duration {
	seconds := float64(int64(1)<<attempt) + e.jitter()
	return time.Duration(seconds * float64(time.Second))
}

func compressEvents(events []domain.Event) ([]byte, error) {
	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode events: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to compress events: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress events: %w", err)
	}
	return buf.Bytes(), nil
}

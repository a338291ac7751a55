package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// Selector decides which model-size variant handles a subtask. Selection
// is pluggable at construction time: a remote classifier service or a
// static default. Implementations never fail the caller; on any selector
// error they default to the small variant and log the fallback.
type Selector interface {
	Select(ctx context.Context, domain models.Domain, taskText string) models.Variant
}

// SelectorError reports a failed remote classification. It is absorbed by
// the selector itself (fail open toward the cheaper variant), surfacing
// only in logs.
type SelectorError struct {
	Domain models.Domain
	Err    error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("variant selection for domain %s failed: %v", e.Domain, e.Err)
}

func (e *SelectorError) Unwrap() error {
	return e.Err
}

// StaticDefaultSelector always returns a fixed variant.
type StaticDefaultSelector struct {
	Variant models.Variant
}

// Select returns the configured variant, or small if none was set.
func (s StaticDefaultSelector) Select(context.Context, models.Domain, string) models.Variant {
	if s.Variant.Valid() {
		return s.Variant
	}
	return models.VariantSmall
}

// RemoteClassifierSelector asks a router classification service which
// variant a task deserves. The service exposes POST /route/{domain} and
// answers with a prediction of "1b" (small) or "8b" (large).
type RemoteClassifierSelector struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewRemoteClassifierSelector creates a selector backed by the router
// service at baseURL.
func NewRemoteClassifierSelector(baseURL string, timeout time.Duration, logger *slog.Logger) *RemoteClassifierSelector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteClassifierSelector{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// routeResponse is the classifier service reply.
type routeResponse struct {
	Prediction  string  `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Select classifies the task remotely. Any failure (unreachable service,
// bad status, unparseable body, unknown prediction) defaults to the small
// variant.
func (s *RemoteClassifierSelector) Select(ctx context.Context, domain models.Domain, taskText string) models.Variant {
	variant, err := s.classify(ctx, domain, taskText)
	if err != nil {
		selErr := &SelectorError{Domain: domain, Err: err}
		s.logger.Warn("variant selector failed, defaulting to small",
			"domain", domain, "error", selErr)
		return models.VariantSmall
	}
	return variant
}

func (s *RemoteClassifierSelector) classify(ctx context.Context, domain models.Domain, taskText string) (models.Variant, error) {
	payload, err := json.Marshal(map[string]string{"task": taskText})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/route/%s", s.baseURL, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}

	switch parsed.Prediction {
	case "1b":
		return models.VariantSmall, nil
	case "8b":
		return models.VariantLarge, nil
	default:
		return "", fmt.Errorf("unknown prediction %q", parsed.Prediction)
	}
}

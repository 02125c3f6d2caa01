package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

const (
	defaultScorerTimeout        = 1500 * time.Millisecond
	scorePath                   = "/score"
	responseBodyReadLimit int64 = 4096
)

var errScorerURLRequired = errors.New("fraud scorer url is required")

// Scorer returns a risk score in [0,1]. ok is false when no usable score could
// be obtained; callers proceed with rules alone.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (score float64, ok bool)
}

// ScoreRequest is the feature vector sent to the model service.
type ScoreRequest struct {
	Amount    decimal.Decimal
	Type      enums.EventType
	AccountID uuid.UUID
	Timestamp time.Time
}

type scoreRequestBody struct {
	Amount    json.Number `json:"amount"`
	Type      string      `json:"type"`
	AccountID string      `json:"account_id"`
	Timestamp string      `json:"timestamp"`
}

type scoreResponseBody struct {
	Score *float64 `json:"score"`
}

// ScorerClient calls the external scoring service over HTTP.
type ScorerClient struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logg       *logger.Logger
	observe    func(result string)
}

// ScorerOption configures optional client behavior.
type ScorerOption func(*ScorerClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ScorerOption {
	return func(c *ScorerClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds each scoring call.
func WithTimeout(timeout time.Duration) ScorerOption {
	return func(c *ScorerClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger reports unavailable scores at warn level.
func WithLogger(logg *logger.Logger) ScorerOption {
	return func(c *ScorerClient) {
		c.logg = logg
	}
}

// WithResultObserver receives "ok", "unavailable" or "invalid" for every call.
func WithResultObserver(fn func(result string)) ScorerOption {
	return func(c *ScorerClient) {
		c.observe = fn
	}
}

// NewScorerClient builds a client for the scoring service at baseURL.
func NewScorerClient(baseURL string, opts ...ScorerOption) (*ScorerClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errScorerURLRequired
	}
	client := &ScorerClient{
		baseURL:    trimmed,
		timeout:    defaultScorerTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Score never returns an error: timeouts, transport failures, non-200
// responses, malformed bodies and out-of-range scores all yield ok=false.
func (c *ScorerClient) Score(ctx context.Context, req ScoreRequest) (float64, bool) {
	score, err := c.fetch(ctx, req)
	if err != nil {
		result := "unavailable"
		if errors.Is(err, errInvalidScore) {
			result = "invalid"
		}
		c.record(result)
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"account_id": req.AccountID.String(),
				"error":      err.Error(),
			})
			c.logg.Warn(logCtx, "fraud scorer unavailable, continuing with rules only")
		}
		return 0, false
	}
	c.record("ok")
	return score, true
}

var errInvalidScore = errors.New("invalid score")

func (c *ScorerClient) fetch(ctx context.Context, req ScoreRequest) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(scoreRequestBody{
		Amount:    json.Number(req.Amount.String()),
		Type:      string(req.Type),
		AccountID: req.AccountID.String(),
		Timestamp: req.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+scorePath, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("call scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return 0, fmt.Errorf("scorer status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body scoreResponseBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", errInvalidScore, err)
	}
	if body.Score == nil {
		return 0, fmt.Errorf("%w: missing score", errInvalidScore)
	}
	score := *body.Score
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: %v out of range", errInvalidScore, score)
	}
	return score, nil
}

func (c *ScorerClient) record(result string) {
	if c.observe != nil {
		c.observe(result)
	}
}

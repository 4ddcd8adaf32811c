package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"wisefido-records/internal/store"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ResourcePrefix is where a records server exposes its resource paths.
const ResourcePrefix = "/records/api/v1/resources"

const resultSuccess = 2000

// Config describes the upstream records server.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client reads resource rows from an upstream records server.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &Client{httpClient: client, logger: logger}
}

// Fetch returns the rows of path. params become column filters upstream.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values) ([]store.Values, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(ResourcePrefix + path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		c.logger.Error("Feed returned a malformed response",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to decode %s response (status %d): %w", path, resp.StatusCode(), err)
	}
	if resp.IsError() || env.Code != resultSuccess {
		return nil, fmt.Errorf("feed error on %s: %s (status: %d, code: %d)", path, env.Message, resp.StatusCode(), env.Code)
	}
	return decodeRows(env.Result)
}

func decodeRows(raw json.RawMessage) ([]store.Values, error) {
	rows, many, err := store.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && !many {
		return nil, fmt.Errorf("expected a list of rows: %w", store.ErrInvalidJSONRows)
	}
	return rows, nil
}

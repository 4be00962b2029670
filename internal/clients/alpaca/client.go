// Package alpaca provides a REST client for the Alpaca trading and market data APIs.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/domain"
)

// Client talks to the trading API (account, positions, orders, clock) and the
// market data API (snapshots, bars, news). Requests share one rate limiter.
type Client struct {
	trading *resty.Client
	data    *resty.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a new Alpaca client
func NewClient(cfg config.AlpacaConfig, log zerolog.Logger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 180
	}

	newResty := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15*time.Second).
			SetHeader("APCA-API-KEY-ID", cfg.APIKey).
			SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey).
			SetHeader("Accept", "application/json")
	}

	return &Client{
		trading: newResty(cfg.TradingURL),
		data:    newResty(cfg.DataURL),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 5),
		log:     log.With().Str("client", "alpaca").Logger(),
	}
}

// apiError is the error body Alpaca returns
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, rc *resty.Client, path string, query map[string]string, out interface{}) error {
	return c.do(ctx, rc.R().SetQueryParams(query).SetResult(out), http.MethodGet, path)
}

func (c *Client) do(ctx context.Context, req *resty.Request, method, path string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var apiErr apiError
	resp, err := req.SetContext(ctx).SetError(&apiErr).Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("alpaca %s %s: %v: %w", method, path, err, domain.ErrTransient)
	}

	if !resp.IsError() {
		return nil
	}

	msg := apiErr.Message
	if msg == "" {
		msg = resp.String()
	}
	c.log.Debug().Int("status", resp.StatusCode()).Str("path", path).Str("message", msg).Msg("Alpaca request failed")

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("alpaca %s: %s: %w", path, msg, domain.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("alpaca %s: status %d: %w", path, status, domain.ErrTransient)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("alpaca %s: %s: %w", path, msg, domain.ErrNotConfigured)
	default:
		return &StatusError{Status: status, Message: msg}
	}
}

// StatusError is a non-retryable HTTP error from Alpaca.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("alpaca: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from Alpaca.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// parseFloat parses Alpaca's string-encoded numbers; empty means zero.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

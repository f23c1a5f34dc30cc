// Package client is a small HTTP client for the churn prediction JSON API.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"churn-predictor/internal/ml"
)

const (
	PredictPath = "/api/v1/predict"
	ModelPath   = "/api/v1/model"
	HealthPath  = "/health"

	defaultTimeout = 5 * time.Second
)

// PredictResponse mirrors the body returned by the predict endpoint.
type PredictResponse struct {
	Prediction int       `json:"prediction"`
	Votes      []float64 `json:"votes"`
	Classes    []int     `json:"classes"`
}

// APIError is returned for any non-2xx response. Field and Kind are set when
// the server rejected the request body.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Field      string `json:"field,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api error: status %d: %s (field %s, %s)", e.StatusCode, e.Message, e.Field, e.Kind)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// IsValidation reports whether the server rejected the input itself.
func (e *APIError) IsValidation() bool {
	return e.StatusCode == 400 && e.Kind != ""
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(defaultTimeout)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict posts the raw field values and returns the predicted class.
func (c *Client) Predict(ctx context.Context, fields map[string]string) (*PredictResponse, error) {
	result := &PredictResponse{}
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(fields).
		SetResult(result).
		SetError(apiErr).
		Post(c.base + PredictPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, finishError(apiErr, resp)
	}
	return result, nil
}

// ModelInfo fetches the description of the model the server has loaded.
func (c *Client) ModelInfo(ctx context.Context) (*ml.ModelInfo, error) {
	result := &ml.ModelInfo{}
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(c.base + ModelPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, finishError(apiErr, resp)
	}
	return result, nil
}

// Health returns nil when the server answers its liveness probe.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		Get(c.base + HealthPath)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return nil
}

func finishError(apiErr *APIError, resp *resty.Response) error {
	apiErr.StatusCode = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	return apiErr
}

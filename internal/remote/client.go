// Package remote talks to the applications REST API, the system of record
// the tracker reconciles with.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"application-tracker/internal/common/config"
	apperrors "application-tracker/internal/common/errors"
	apphttp "application-tracker/internal/common/http"
	"application-tracker/internal/common/logger"
	"application-tracker/internal/common/validation"
	"application-tracker/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	applicationsPath = "/applications"
	maxResponseBytes = 4 << 20
	maxErrorBody     = 512
)

// Client implements the tracker's Remote over HTTP. Cookies set by the API
// are replayed on later calls.
type Client struct {
	baseURL string
	http    *apphttp.Client
	tracer  trace.Tracer
	logger  logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *apphttp.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func NewClient(cfg config.APIConfig, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tracer:  otel.GetTracerProvider().Tracer("application-tracker/remote"),
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = apphttp.NewClient(
			config.GetDuration(cfg.Timeout),
			apphttp.WithSessionCookie(c.baseURL, cfg.CookieName, cfg.SessionCookie),
		)
	}
	return c
}

type listResponse struct {
	Applications []models.JobApplication `json:"applications"`
}

// List fetches the full collection.
func (c *Client) List(ctx context.Context) ([]models.JobApplication, error) {
	body, err := c.do(ctx, http.MethodGet, applicationsPath, nil)
	if err != nil {
		return nil, err
	}

	result, err := validation.ValidateEnvelope(body)
	if err != nil {
		return nil, apperrors.NewRemotePayloadError(err)
	}
	if !result.Valid {
		return nil, apperrors.NewRemotePayloadError(errors.New(strings.Join(result.GetErrorMessages(), "; ")))
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewRemotePayloadError(err)
	}
	if resp.Applications == nil {
		resp.Applications = []models.JobApplication{}
	}
	return resp.Applications, nil
}

// Create posts the full record.
func (c *Client) Create(ctx context.Context, app models.JobApplication) error {
	_, err := c.do(ctx, http.MethodPost, applicationsPath, app)
	return err
}

// Update puts only the changed fields plus lastUpdated.
func (c *Client) Update(ctx context.Context, id string, upd models.ApplicationUpdate) error {
	_, err := c.do(ctx, http.MethodPut, applicationPath(id), upd)
	return err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, applicationPath(id), nil)
	return err
}

func applicationPath(id string) string {
	return applicationsPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (_ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "remote "+method+" "+applicationsPath,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, apperrors.NewRemoteStatusError(method, path, resp.StatusCode, string(snippet))
	}

	c.logger.Debug("Remote call completed", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	})
	return body, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewRemoteTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewRemoteTimeoutError(err)
	}
	return apperrors.NewRemoteUnavailableError(err)
}

package easyappointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	tracerName      = "github.com/s0up4200/eactl/easyappointments"
	requestIDHeader = "X-Request-ID"
	maxBodySize     = 10 << 20
)

// sensitiveKeys are masked in request logs.
var sensitiveKeys = map[string]bool{
	"password": true,
	"apikey":   true,
	"api_key":  true,
	"key":      true,
	"secret":   true,
	"token":    true,
}

// transport owns the HTTP connection pool shared by every resource service.
type transport struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    zerolog.Logger
	closeOnce sync.Once
}

// response is a raw API response.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func newTransport(baseURL, apiKey string, opts clientOptions, logger zerolog.Logger) *transport {
	client := opts.httpClient
	if client == nil {
		client = &http.Client{
			Timeout:   opts.timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	} else if client.Timeout == 0 {
		clone := *client
		clone.Timeout = opts.timeout
		client = &clone
	}

	tp := opts.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &transport{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: opts.userAgent,
		client:    client,
		limiter:   opts.limiter,
		tracer:    tp.Tracer(tracerName),
		logger:    logger,
	}
}

// send performs a single HTTP exchange. Only failures that prevented a
// response from arriving are returned as errors; HTTP status handling is
// left to the caller.
func (t *transport) send(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	endpoint := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("failed to encode request body: %v", err), Err: err}
		}
	}

	ctx, span := t.tracer.Start(ctx, "easyappointments "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter wait")
			return nil, contextError(ctx, err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindUsage, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	span.SetAttributes(attribute.String("http.request.id", requestID))

	if ev := t.logger.Debug(); ev.Enabled() {
		ev = ev.Str("method", method).Str("url", endpoint).Str("request_id", requestID)
		if payload != nil {
			ev = ev.RawJSON("body", maskPayload(payload))
		}
		ev.Msg("Sending Easy!Appointments API request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		if ctx.Err() != nil {
			return nil, contextError(ctx, err)
		}
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, networkError(fmt.Errorf("failed to read response body: %w", err))
	}

	if id := resp.Header.Get(requestIDHeader); id != "" {
		requestID = id
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	t.logger.Debug().
		Str("method", method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Msg("Received Easy!Appointments API response")

	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		RequestID:  requestID,
	}, nil
}

// close releases pooled connections. It is safe to call more than once.
func (t *transport) close() {
	t.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error().Interface("panic", r).Msg("Failed to close HTTP transport")
			}
		}()
		t.client.CloseIdleConnections()
		t.logger.Debug().Msg("Closed Easy!Appointments HTTP transport")
	})
}

func contextError(ctx context.Context, err error) *Error {
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	return &Error{Kind: KindGeneric, Message: cause.Error(), Err: cause}
}

// maskPayload returns payload with sensitive values replaced. Invalid JSON
// is returned as a JSON string placeholder.
func maskPayload(payload []byte) []byte {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return []byte(`"<unparseable>"`)
	}
	masked, err := json.Marshal(maskValue(v))
	if err != nil {
		return []byte(`"<unparseable>"`)
	}
	return masked
}

func maskValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if sensitiveKeys[strings.ToLower(k)] && item != nil && item != "" {
				out[k] = "*****"
				continue
			}
			out[k] = maskValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = maskValue(item)
		}
		return out
	default:
		return v
	}
}

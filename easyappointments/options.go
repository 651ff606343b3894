package easyappointments

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the API root of a local Easy!Appointments install.
const DefaultBaseURL = "http://localhost/index.php/api/v1"

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultJitter     = 0.1
	defaultUserAgent  = "eactl-go/1"
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
	jitter         float64
	userAgent      string
	httpClient     *http.Client
	limiter        *rate.Limiter
	logging        bool
	tracerProvider trace.TracerProvider
	idempotentOnly bool
	onRetry        func(attempt int, err error, delay time.Duration)
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		jitter:     defaultJitter,
		userAgent:  defaultUserAgent,
		logging:    true,
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(retries int) Option {
	return func(o *clientOptions) {
		if retries >= 0 {
			o.maxRetries = retries
		}
	}
}

// WithRetryDelay sets the base delay of the exponential backoff.
func WithRetryDelay(delay time.Duration) Option {
	return func(o *clientOptions) {
		if delay > 0 {
			o.retryDelay = delay
		}
	}
}

// WithRetryJitter sets the randomization factor applied to each backoff
// delay. Zero gives exact delays of retryDelay * 2^n.
func WithRetryJitter(factor float64) Option {
	return func(o *clientOptions) {
		if factor >= 0 && factor < 1 {
			o.jitter = factor
		}
	}
}

// WithHTTPClient sets a custom HTTP client. Its Timeout is overridden by
// WithTimeout only when the custom client has none.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// WithRateLimit throttles outgoing requests to rps per second with the
// given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *clientOptions) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogging toggles request logging.
func WithLogging(enabled bool) Option {
	return func(o *clientOptions) {
		o.logging = enabled
	}
}

// WithTracerProvider sets the provider used for request spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// WithIdempotentRetriesOnly limits retries to GET and DELETE. POST and PUT
// are then sent exactly once, which avoids duplicate resources when a write
// succeeded server-side but the response was lost.
func WithIdempotentRetriesOnly() Option {
	return func(o *clientOptions) {
		o.idempotentOnly = true
	}
}

// WithRetryNotify registers fn to be called before each retry sleep with
// the attempt that failed, its error and the delay about to be waited.
func WithRetryNotify(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(o *clientOptions) {
		o.onRetry = fn
	}
}

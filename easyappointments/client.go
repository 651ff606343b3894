package easyappointments

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Client is an Easy!Appointments API client. It is safe for concurrent use;
// all services share one connection pool.
type Client struct {
	baseURL   string
	opts      clientOptions
	transport *transport
	retry     RetryPolicy
	logger    zerolog.Logger
	closed    atomic.Bool

	Admins         *AdminsService
	Providers      *ProvidersService
	Customers      *CustomersService
	Appointments   *AppointmentsService
	Services       *ServicesService
	Categories     *CategoriesService
	Availabilities *AvailabilitiesService
}

// NewClient creates a new Easy!Appointments client. An empty baseURL uses
// DefaultBaseURL. No request is made until the first call.
func NewClient(baseURL, apiKey string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, configError("API key is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, configError("invalid base URL %q: %v", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, configError("base URL must use http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, configError("base URL %q has no host", baseURL)
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if !options.logging {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "easyappointments").Logger()

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    options,
		logger:  logger,
		retry: RetryPolicy{
			MaxRetries: options.maxRetries,
			Delay:      options.retryDelay,
			Jitter:     options.jitter,
			OnRetry:    options.onRetry,
			logger:     logger,
		},
	}
	c.transport = newTransport(c.baseURL, apiKey, options, logger)

	c.Admins = &AdminsService{newResourceService[Admin, *Admin](c, "/admins", "admin")}
	c.Providers = &ProvidersService{newResourceService[Provider, *Provider](c, "/providers", "provider")}
	c.Customers = &CustomersService{newResourceService[Customer, *Customer](c, "/customers", "customer")}
	c.Appointments = &AppointmentsService{newResourceService[Appointment, *Appointment](c, "/appointments", "appointment")}
	c.Services = &ServicesService{newResourceService[Service, *Service](c, "/services", "service")}
	c.Categories = &CategoriesService{newResourceService[Category, *Category](c, "/categories", "category")}
	c.Availabilities = &AvailabilitiesService{client: c}

	logger.Debug().
		Str("base_url", c.baseURL).
		Int("max_retries", options.maxRetries).
		Dur("retry_delay", options.retryDelay).
		Dur("timeout", options.timeout).
		Msg("Created Easy!Appointments client")

	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TestConnection checks the URL and API key by listing a single admin.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.Admins.List(ctx, &ListOptions{Length: 1}); err != nil {
		return err
	}
	c.logger.Debug().Msg("Successfully connected to Easy!Appointments")
	return nil
}

// Close releases the client's connections. Requests made afterwards fail
// with ErrClientClosed. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.transport.close()
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// do sends one logical request under the retry policy and maps non-2xx
// responses to *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	if c.closed.Load() {
		return nil, closedError()
	}

	var resp *response
	policy := c.retry.forMethod(method, c.opts.idempotentOnly)
	err := policy.Do(ctx, func(ctx context.Context) error {
		if c.closed.Load() {
			return closedError()
		}
		r, err := c.transport.send(ctx, method, path, query, body)
		if err != nil {
			return err
		}
		if !r.ok() {
			apiErr := mapError(r.StatusCode, r.Body, r.RequestID)
			c.logger.Debug().
				Str("method", method).
				Str("path", path).
				Int("status", r.StatusCode).
				Str("kind", apiErr.Kind.String()).
				Msg("Easy!Appointments API request failed")
			return apiErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

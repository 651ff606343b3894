package easyappointments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// newTestClient points a client at handler with fast, deterministic retries.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithRetryDelay(time.Millisecond),
		WithRetryJitter(0),
	}, opts...)

	client, err := NewClient(server.URL+"/index.php/api/v1", testAPIKey, zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		baseURL string
		apiKey  string
		wantURL string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			baseURL: "https://booking.example.com/index.php/api/v1/",
			apiKey:  testAPIKey,
			wantURL: "https://booking.example.com/index.php/api/v1",
		},
		{
			name:    "default URL",
			baseURL: "",
			apiKey:  testAPIKey,
			wantURL: DefaultBaseURL,
		},
		{
			name:    "missing API key",
			baseURL: "http://localhost",
			apiKey:  "  ",
			wantErr: true,
			errMsg:  "API key is required",
		},
		{
			name:    "unsupported scheme",
			baseURL: "ftp://booking.example.com",
			apiKey:  testAPIKey,
			wantErr: true,
			errMsg:  "must use http or https",
		},
		{
			name:    "missing host",
			baseURL: "http://",
			apiKey:  testAPIKey,
			wantErr: true,
			errMsg:  "has no host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.baseURL, tt.apiKey, logger)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Equal(t, KindUsage, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, client.BaseURL())
			assert.NotNil(t, client.Admins)
			assert.NotNil(t, client.Providers)
			assert.NotNil(t, client.Customers)
			assert.NotNil(t, client.Appointments)
			assert.NotNil(t, client.Services)
			assert.NotNil(t, client.Categories)
			assert.NotNil(t, client.Availabilities)
		})
	}
}

func TestClientOptions(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("defaults", func(t *testing.T) {
		client, err := NewClient("", testAPIKey, logger)
		require.NoError(t, err)
		assert.Equal(t, 3, client.retry.MaxRetries)
		assert.Equal(t, time.Second, client.retry.Delay)
		assert.Equal(t, 30*time.Second, client.transport.client.Timeout)
		assert.Nil(t, client.transport.limiter)
	})

	t.Run("with timeout and retries", func(t *testing.T) {
		client, err := NewClient("", testAPIKey, logger,
			WithTimeout(5*time.Second),
			WithMaxRetries(0),
			WithRetryDelay(250*time.Millisecond),
		)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, client.transport.client.Timeout)
		assert.Equal(t, 0, client.retry.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, client.retry.Delay)
	})

	t.Run("invalid values are ignored", func(t *testing.T) {
		client, err := NewClient("", testAPIKey, logger,
			WithTimeout(-1),
			WithMaxRetries(-2),
			WithRetryJitter(3),
		)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, client.transport.client.Timeout)
		assert.Equal(t, 3, client.retry.MaxRetries)
		assert.Equal(t, 0.1, client.retry.Jitter)
	})

	t.Run("with custom http client", func(t *testing.T) {
		custom := &http.Client{Timeout: 10 * time.Second}
		client, err := NewClient("", testAPIKey, logger, WithHTTPClient(custom))
		require.NoError(t, err)
		assert.Same(t, custom, client.transport.client)
	})

	t.Run("custom http client without timeout", func(t *testing.T) {
		custom := &http.Client{}
		client, err := NewClient("", testAPIKey, logger, WithHTTPClient(custom), WithTimeout(7*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 7*time.Second, client.transport.client.Timeout)
		assert.Zero(t, custom.Timeout)
	})

	t.Run("with rate limit", func(t *testing.T) {
		client, err := NewClient("", testAPIKey, logger, WithRateLimit(5, 0))
		require.NoError(t, err)
		require.NotNil(t, client.transport.limiter)
		assert.Equal(t, 1, client.transport.limiter.Burst())
	})
}

func TestTransientFailureThenSuccess(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 4, "name": "Health"})
	})

	category, err := client.Categories.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, &Category{ID: 4, Name: "Health"}, category)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	}, WithMaxRetries(2))

	_, err := client.Services.Get(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(3), calls.Load())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "The requested record was not found!"})
	})

	provider, err := client.Providers.Get(context.Background(), 999)
	assert.Nil(t, provider)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, err.(*Error).IsNotFound())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimitRetriesWithIncreasingDelay(t *testing.T) {
	var calls atomic.Int32
	var delays []time.Duration
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
	},
		WithMaxRetries(3),
		WithRetryDelay(5*time.Millisecond),
		WithRetryNotify(func(_ int, _ error, delay time.Duration) {
			delays = append(delays, delay)
		}),
	)

	_, err := client.Customers.List(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}, delays)
}

func TestCreateProvider(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/index.php/api/v1/providers", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "id")
		assert.Equal(t, "John", body["firstName"])
		assert.Equal(t, "Doe", body["lastName"])
		assert.Equal(t, []any{float64(1)}, body["services"])

		body["id"] = 42
		writeJSON(w, http.StatusCreated, body)
	})

	created, err := client.Providers.Create(context.Background(), &Provider{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
		Services:  []int64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, "john.doe@example.com", created.Email)
	assert.Equal(t, []int64{1}, created.Services)
}

func TestCreateDoesNotModifyInput(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": 11, "name": "Beauty"})
	})

	in := &Category{ID: 99, Name: "Beauty"}
	created, err := client.Categories.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(11), created.ID)
	assert.Equal(t, int64(99), in.ID)
}

func TestCreateValidatesLocally(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.Customers.Create(context.Background(), &Customer{FirstName: "Jane"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.(*Error).Fields, "email")
	assert.Contains(t, err.(*Error).Fields, "lastName")

	_, err = client.Customers.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, calls.Load())
}

func TestServerValidationError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"email": []string{"The email is already in use."},
		})
	})

	_, err := client.Customers.Create(context.Background(), &Customer{FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, map[string][]string{"email": {"The email is already in use."}}, apiErr.Fields)
}

func TestUpdateAndDelete(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			assert.Equal(t, "/index.php/api/v1/categories/4", r.URL.Path)
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotContains(t, body, "id")
			body["id"] = 4
			writeJSON(w, http.StatusOK, body)
		case http.MethodDelete:
			assert.Equal(t, "/index.php/api/v1/categories/4", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	updated, err := client.Categories.Update(context.Background(), 4, &Category{ID: 4, Name: "Wellness"})
	require.NoError(t, err)
	assert.Equal(t, &Category{ID: 4, Name: "Wellness"}, updated)

	require.NoError(t, client.Categories.Delete(context.Background(), 4))
}

func TestInvalidID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Admins.Get(context.Background(), 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, client.Admins.Delete(context.Background(), -3), ErrValidation)
}

func TestEmptyResponseBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Categories.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnexpected)
}

func TestIdempotentRetriesOnly(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithIdempotentRetriesOnly(), WithMaxRetries(2))

	_, err := client.Categories.Create(context.Background(), &Category{Name: "Beauty"})
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	_, err = client.Categories.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var retries atomic.Int32
	client, err := NewClient(url, testAPIKey, zerolog.Nop(),
		WithMaxRetries(1),
		WithRetryDelay(time.Millisecond),
		WithRetryNotify(func(int, error, time.Duration) { retries.Add(1) }),
	)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Admins.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(1), retries.Load())
}

func TestTimeoutIsNetworkError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, WithTimeout(20*time.Millisecond), WithMaxRetries(0))

	_, err := client.Admins.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "x"})
	})

	_, err := client.Categories.Get(canceledContext(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindGeneric, KindOf(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	assert.False(t, client.Closed())
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.True(t, client.Closed())

	_, err := client.Appointments.Get(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, KindUsage, KindOf(err))
	assert.Zero(t, calls.Load())
}

func TestTestConnection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index.php/api/v1/admins", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("length"))
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	})
	require.NoError(t, client.TestConnection(context.Background()))

	bad, err := NewClient(client.BaseURL(), "wrong", zerolog.Nop(), WithMaxRetries(0))
	require.NoError(t, err)
	err = bad.TestConnection(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.True(t, err.(*Error).IsUnauthorized())
}

func TestConcurrentRequestsShareClient(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Health"})
	})

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			_, err := client.Categories.Get(context.Background(), 1)
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, <-done)
	}
	assert.Equal(t, int32(20), calls.Load())
}

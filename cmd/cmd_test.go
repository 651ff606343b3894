package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/eactl/config"
	"github.com/s0up4200/eactl/easyappointments"
	"github.com/s0up4200/eactl/filter"
)

// setupTestApp points the package globals at a mock server
func setupTestApp(t *testing.T, handler http.HandlerFunc, format string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := easyappointments.NewClient(server.URL+"/index.php/api/v1", "test-key", zerolog.Nop(),
		easyappointments.WithRetryDelay(time.Millisecond),
		easyappointments.WithRetryJitter(0),
		easyappointments.WithMaxRetries(0),
	)
	require.NoError(t, err)

	prevClient, prevCfg, prevFilters, prevLogger := client, cfg, filters, logger
	client = c
	cfg = &config.Config{Output: config.OutputConfig{Format: format}}
	filters = filter.NewManager()
	logger = zerolog.Nop()

	t.Cleanup(func() {
		_ = c.Close()
		client, cfg, filters, logger = prevClient, prevCfg, prevFilters, prevLogger
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func customersSpec() resourceSpec[easyappointments.Customer] {
	return resourceSpec[easyappointments.Customer]{
		name:     "customers",
		singular: "customer",
		service:  func() easyappointments.Resource[easyappointments.Customer] { return client.Customers },
		columns:  personColumns("phone"),
	}
}

// runCommand executes cmd with the root command's error settings and
// returns what it wrote to stdout and stderr.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SilenceErrors = rootCmd.SilenceErrors
	cmd.SilenceUsage = rootCmd.SilenceUsage
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "-"},
		{"empty string", "", "-"},
		{"string", "Booked", "Booked"},
		{"whole number", float64(42), "42"},
		{"decimal", 12.5, "12.5"},
		{"bool", true, "true"},
		{"list", []any{float64(1), float64(2)}, "1,2"},
		{"object", map[string]any{"a": "b"}, `{"a":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCell(tt.in))
		})
	}
}

func TestPrintRecords(t *testing.T) {
	records := []filter.Record{
		{"id": float64(1), "name": "Haircut"},
		{"id": float64(22), "name": "Massage"},
	}
	columns := []column{{"ID", "id"}, {"NAME", "name"}}

	var table bytes.Buffer
	require.NoError(t, printRecords(&table, "table", records, columns))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID  NAME", strings.TrimSpace(lines[0]))
	assert.Equal(t, "22  Massage", strings.TrimSpace(lines[2]))

	var js bytes.Buffer
	require.NoError(t, printRecords(&js, "json", records, columns))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Len(t, decoded, 2)

	var empty bytes.Buffer
	require.NoError(t, printRecords(&empty, "table", nil, columns))
	assert.Equal(t, "No results.\n", empty.String())
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "42"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 42}, ids)

	for _, bad := range []string{"abc", "0", "-3"} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseWhere(t *testing.T) {
	got, err := parseWhere([]string{"provider_id=3", " status = Booked "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"provider_id": "3", "status": "Booked"}, got)

	got, err = parseWhere(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseWhere([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseWhere([]string{"=x"})
	assert.Error(t, err)
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
		wantErr         bool
	}{
		{"v1.2.0", "1.1.9", true, false},
		{"1.2.0", "v1.2.0", false, false},
		{"v1.0.0", "v1.1.0", false, false},
		{"v1.0.0", "dev", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.latest+"_"+tt.current, func(t *testing.T) {
			got, err := isNewer(tt.latest, tt.current)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "ok? "))
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "ok? "))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "ok? "))
	assert.False(t, confirm(strings.NewReader(""), &out, "ok? "))
	assert.Contains(t, out.String(), "ok? ")
}

func TestPickSlot(t *testing.T) {
	avail := &easyappointments.Availability{
		Date: "2026-11-02",
		Available: []easyappointments.TimeSlot{
			{Start: "09:00", End: "09:30"},
			{Start: "09:30", End: "10:00"},
		},
	}

	first, err := pickSlot(avail, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-11-02 09:00", first.Format("2006-01-02 15:04"))

	chosen, err := pickSlot(avail, "09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", chosen.Format("15:04"))

	_, err = pickSlot(avail, "11:00")
	assert.Error(t, err)

	_, err = pickSlot(&easyappointments.Availability{Date: "2026-11-02"}, "")
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	c := &config.Config{
		API: config.APIConfig{
			Timeout:        time.Second,
			MaxRetries:     2,
			RetryDelay:     time.Second,
			RateLimit:      5,
			RateBurst:      2,
			IdempotentOnly: true,
			UserAgent:      "custom/1",
		},
	}
	// base options, user agent, rate limit, idempotent, retry notify
	assert.Len(t, clientOptions(c), 8)

	c.Logging.Requests = true
	c.API.RateLimit = 0
	c.API.UserAgent = ""
	c.API.IdempotentOnly = false
	assert.Len(t, clientOptions(c), 4)
}

func TestListCommandWithFilter(t *testing.T) {
	setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index.php/api/v1/customers", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("length"))
		assert.Equal(t, "3", r.URL.Query().Get("providerId"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "firstName": "Jane", "lastName": "Doe", "email": "jane@example.com", "phone": "555-0100"},
			{"id": 2, "firstName": "John", "lastName": "Roe", "email": "john@example.org"},
		})
	}, "table")

	out, _, err := runCommand(t, customersSpec().listCmd(), "--where", "provider_id=3", "--filter", `hasSuffixFold(email, ".com")`)
	require.NoError(t, err)
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "555-0100")
	assert.NotContains(t, out, "john@example.org")
}

func TestListCommandUnknownPreset(t *testing.T) {
	setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}, "table")

	_, _, err := runCommand(t, customersSpec().listCmd(), "--preset", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preset 'missing' not found")
}

func TestGetCommandMany(t *testing.T) {
	setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.php/api/v1/customers/1":
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "firstName": "Jane", "lastName": "Doe", "email": "jane@example.com"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Record not found"})
		}
	}, "json")

	out, stderr, err := runCommand(t, customersSpec().getCmd(), "1", "2")
	require.Error(t, err)
	assert.ErrorIs(t, err, easyappointments.ErrNotFound)
	assert.Empty(t, stderr)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "jane@example.com", decoded[0]["email"])
}

func TestDeleteCommand(t *testing.T) {
	var deleted []string
	setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = append(deleted, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}, "table")

	cmd := customersSpec().deleteCmd()
	cmd.SetIn(strings.NewReader("n\n"))
	out, _, err := runCommand(t, cmd, "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Delete 1 customers?")
	assert.Empty(t, deleted)

	out, _, err = runCommand(t, customersSpec().deleteCmd(), "--yes", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted customer 5")
	assert.Equal(t, []string{"/index.php/api/v1/customers/5"}, deleted)
}

func TestBookCommand(t *testing.T) {
	var created easyappointments.Appointment
	setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/index.php/api/v1/customers":
			writeJSON(w, http.StatusOK, []any{})
		case r.Method == http.MethodPost && r.URL.Path == "/index.php/api/v1/customers":
			writeJSON(w, http.StatusCreated, map[string]any{"id": 9, "firstName": "Jane", "lastName": "Doe", "email": "jane@example.com"})
		case r.URL.Path == "/index.php/api/v1/availabilities":
			assert.Equal(t, "2026-11-02", r.URL.Query().Get("date"))
			writeJSON(w, http.StatusOK, []string{"09:00", "09:30", "10:00"})
		case r.URL.Path == "/index.php/api/v1/services/1":
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Consultation", "duration": 30, "price": 0})
		case r.Method == http.MethodPost && r.URL.Path == "/index.php/api/v1/appointments":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			created.ID = 77
			writeJSON(w, http.StatusCreated, created)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}, "table")

	prev := bookOpts
	t.Cleanup(func() { bookOpts = prev })
	bookOpts.firstName = "Jane"
	bookOpts.lastName = "Doe"
	bookOpts.email = "jane@example.com"
	bookOpts.providerID = 2
	bookOpts.serviceID = 1
	bookOpts.date = "2026-11-02"
	bookOpts.at = "09:30"

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetContext(context.Background())

	require.NoError(t, runBook(c, nil))
	assert.Contains(t, out.String(), "Created customer Jane Doe (ID: 9)")
	assert.Contains(t, out.String(), "Booked appointment 77")
	assert.Equal(t, "2026-11-02 09:30:00", created.Start)
	assert.Equal(t, "2026-11-02 10:00:00", created.End)
	assert.Equal(t, int64(9), created.CustomerID)
}

func TestRootLeavesErrorPrintingToExecute(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"customers", "get", "1", "--config", "/nonexistent/eactl.yaml"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.NotContains(t, stderr.String(), "Error:")
	assert.Empty(t, stdout.String())
}

func TestSkipsClient(t *testing.T) {
	assert.True(t, skipsClient(versionCmd))
	assert.True(t, skipsClient(updateCmd))
	assert.False(t, skipsClient(testCmd))
}

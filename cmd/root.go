package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/eactl/config"
	"github.com/s0up4200/eactl/easyappointments"
	"github.com/s0up4200/eactl/filter"
)

// skipClientAnnotation marks commands that run without config or client.
const skipClientAnnotation = "eactl/skip-client"

var (
	cfgFile      string
	outputFormat string
	cfg          *config.Config
	logger       = zerolog.New(os.Stderr).With().Timestamp().Logger()
	client       *easyappointments.Client
	filters      *filter.Manager

	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "eactl",
	Short: "Manage an Easy!Appointments installation from the command line",
	Long: `eactl talks to the Easy!Appointments REST API. It lists, creates,
updates and deletes admins, providers, customers, services, categories and
appointments, checks availability and walks through a full booking.

List results can be narrowed with filter expressions, for example:
  eactl appointments list --all --filter 'status == "Booked" and parseDate(start) > now()'
  eactl customers list --all --filter 'hasSuffixFold(email, "@example.com")'

The contains, startsWith and endsWith operators are case-sensitive
(notes contains "VIP"); containsFold, hasPrefixFold and hasSuffixFold
ignore case.`,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: shutdownApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
	CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
}

// SetVersion sets build information reported by the version command
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, ~/.eactl/config.yaml or /etc/eactl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table or json (overrides output.format)")

	rootCmd.AddCommand(testCmd, availabilityCmd, bookCmd, versionCmd, updateCmd)
	for _, c := range resourceCommands() {
		rootCmd.AddCommand(c)
	}
}

// initializeApp loads configuration and creates the API client
func initializeApp(cmd *cobra.Command, args []string) error {
	if skipsClient(cmd) {
		logger = setupLogger(config.LoggingConfig{Level: "info", Format: "console", Color: true})
		return nil
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("output") {
		switch outputFormat {
		case "table", "json":
			cfg.Output.Format = outputFormat
		default:
			return fmt.Errorf("invalid output format: %s (must be 'table' or 'json')", outputFormat)
		}
	}

	logger = setupLogger(cfg.Logging)

	filters = filter.NewManager()
	if err := filters.RegisterFilters(cfg.Filter); err != nil {
		return fmt.Errorf("invalid filter preset: %w", err)
	}

	client, err = easyappointments.NewClient(cfg.API.URL, cfg.API.APIKey, logger, clientOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create Easy!Appointments client: %w", err)
	}

	return nil
}

func shutdownApp(cmd *cobra.Command, args []string) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

func skipsClient(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipClientAnnotation] == "true" {
			return true
		}
	}
	return false
}

// clientOptions translates the api section into client options
func clientOptions(cfg *config.Config) []easyappointments.Option {
	api := cfg.API
	opts := []easyappointments.Option{
		easyappointments.WithTimeout(api.Timeout),
		easyappointments.WithMaxRetries(api.MaxRetries),
		easyappointments.WithRetryDelay(api.RetryDelay),
		easyappointments.WithLogging(cfg.Logging.Requests),
	}

	if api.UserAgent != "" {
		opts = append(opts, easyappointments.WithUserAgent(api.UserAgent))
	}
	if api.RateLimit > 0 {
		opts = append(opts, easyappointments.WithRateLimit(api.RateLimit, api.RateBurst))
	}
	if api.IdempotentOnly {
		opts = append(opts, easyappointments.WithIdempotentRetriesOnly())
	}
	if !cfg.Logging.Requests {
		// the client's own retry logs are off, keep the user informed
		opts = append(opts, easyappointments.WithRetryNotify(func(attempt int, err error, delay time.Duration) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Request failed, retrying")
		}))
	}

	return opts
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !tty,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

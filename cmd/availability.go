package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/eactl/easyappointments"
	"github.com/s0up4200/eactl/filter"
)

var (
	availProvider int64
	availService  int64
	availDate     string
)

// availabilityCmd represents the availability command
var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show free time slots of a provider",
	Long:  `Show the free time slots a provider has for a service on one day.`,
	Args:  cobra.NoArgs,
	RunE:  runAvailability,
}

func init() {
	availabilityCmd.Flags().Int64Var(&availProvider, "provider", 0, "provider id")
	availabilityCmd.Flags().Int64Var(&availService, "service", 0, "service id")
	availabilityCmd.Flags().StringVar(&availDate, "date", "", "day to check as YYYY-MM-DD (default today)")
	_ = availabilityCmd.MarkFlagRequired("provider")
	_ = availabilityCmd.MarkFlagRequired("service")
}

func runAvailability(cmd *cobra.Command, args []string) error {
	date, err := parseDay(availDate)
	if err != nil {
		return err
	}

	avail, err := client.Availabilities.Get(cmd.Context(), easyappointments.AvailabilityQuery{
		ProviderID: availProvider,
		ServiceID:  availService,
		Date:       date,
	})
	if err != nil {
		return err
	}

	if cfg.Output.Format == "json" {
		return printJSON(cmd.OutOrStdout(), avail)
	}

	if !avail.HasSlots() {
		fmt.Fprintf(cmd.OutOrStdout(), "No free slots on %s.\n", avail.Date)
		return nil
	}

	records, err := filter.ToRecords(avail.Available)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Free slots on %s:\n\n", avail.Date)
	return printRecords(cmd.OutOrStdout(), "table", records, []column{
		{"START", "start"},
		{"END", "end"},
	})
}

// parseDay parses a YYYY-MM-DD day in local time. Empty means zero.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(easyappointments.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

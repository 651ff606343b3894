package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/s0up4200/eactl/easyappointments"
)

var bookOpts struct {
	firstName    string
	lastName     string
	email        string
	phone        string
	providerID   int64
	serviceID    int64
	date         string
	at           string
	rescheduleTo string
	cancel       bool
}

// bookCmd represents the book command
var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Book an appointment for a customer",
	Long: `Book an appointment in one go:

1. Find the customer by email, creating them if needed
2. Check the provider's availability for the service
3. Book the first free slot, or the one given with --at
4. Optionally reschedule (--reschedule-to) and cancel (--cancel) it`,
	Args: cobra.NoArgs,
	RunE: runBook,
}

func init() {
	f := bookCmd.Flags()
	f.StringVar(&bookOpts.firstName, "first-name", "", "customer first name, used when creating the customer")
	f.StringVar(&bookOpts.lastName, "last-name", "", "customer last name, used when creating the customer")
	f.StringVar(&bookOpts.email, "email", "", "customer email")
	f.StringVar(&bookOpts.phone, "phone", "", "customer phone")
	f.Int64Var(&bookOpts.providerID, "provider", 0, "provider id")
	f.Int64Var(&bookOpts.serviceID, "service", 0, "service id")
	f.StringVar(&bookOpts.date, "date", "", "day to book as YYYY-MM-DD (default today)")
	f.StringVar(&bookOpts.at, "at", "", "slot start time as HH:MM (default first free slot)")
	f.StringVar(&bookOpts.rescheduleTo, "reschedule-to", "", "move the booking to this date and time")
	f.BoolVar(&bookOpts.cancel, "cancel", false, "cancel the booking afterwards")

	_ = bookCmd.MarkFlagRequired("email")
	_ = bookCmd.MarkFlagRequired("provider")
	_ = bookCmd.MarkFlagRequired("service")
}

func runBook(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	customer, err := client.Customers.FindByEmail(ctx, bookOpts.email)
	switch {
	case err == nil:
		fmt.Fprintf(out, "✓ Found customer %s (ID: %d)\n", customer.FullName(), customer.ID)
	case errors.Is(err, easyappointments.ErrNotFound):
		customer, err = client.Customers.Create(ctx, &easyappointments.Customer{
			FirstName: bookOpts.firstName,
			LastName:  bookOpts.lastName,
			Email:     bookOpts.email,
			Phone:     bookOpts.phone,
		})
		if err != nil {
			return fmt.Errorf("failed to create customer: %w", err)
		}
		fmt.Fprintf(out, "✓ Created customer %s (ID: %d)\n", customer.FullName(), customer.ID)
	default:
		return fmt.Errorf("failed to look up customer: %w", err)
	}

	day, err := parseDay(bookOpts.date)
	if err != nil {
		return err
	}
	avail, err := client.Availabilities.Get(ctx, easyappointments.AvailabilityQuery{
		ProviderID: bookOpts.providerID,
		ServiceID:  bookOpts.serviceID,
		Date:       day,
	})
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}

	start, err := pickSlot(avail, bookOpts.at)
	if err != nil {
		return err
	}

	appt, err := client.Appointments.Book(ctx, customer.ID, bookOpts.providerID, bookOpts.serviceID, start)
	if err != nil {
		return fmt.Errorf("failed to book appointment: %w", err)
	}
	id := appt.ID
	fmt.Fprintf(out, "✓ Booked appointment %d from %s to %s\n", id, appt.Start, appt.End)

	if bookOpts.rescheduleTo != "" {
		newStart, err := dateparse.ParseLocal(bookOpts.rescheduleTo)
		if err != nil {
			return fmt.Errorf("invalid --reschedule-to %q: %w", bookOpts.rescheduleTo, err)
		}
		appt, err = client.Appointments.Reschedule(ctx, id, newStart)
		if err != nil {
			return fmt.Errorf("failed to reschedule appointment %d: %w", id, err)
		}
		fmt.Fprintf(out, "✓ Rescheduled appointment %d to %s\n", id, appt.Start)
	}

	if bookOpts.cancel {
		appt, err = client.Appointments.Cancel(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to cancel appointment %d: %w", id, err)
		}
		fmt.Fprintf(out, "✓ Cancelled appointment %d\n", id)
	}

	if cfg.Output.Format == "json" {
		return printJSON(out, appt)
	}
	return nil
}

// pickSlot returns the start of the requested slot, or of the first free
// one when at is empty.
func pickSlot(avail *easyappointments.Availability, at string) (time.Time, error) {
	starts := avail.StartTimes(time.Local)
	if len(starts) == 0 {
		return time.Time{}, fmt.Errorf("no free slots on %s", avail.Date)
	}
	if at == "" {
		return starts[0], nil
	}
	for _, s := range starts {
		if s.Format("15:04") == at {
			return s, nil
		}
	}
	return time.Time{}, fmt.Errorf("slot %s is not available on %s", at, avail.Date)
}

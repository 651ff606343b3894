package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/eactl/easyappointments"
	"github.com/s0up4200/eactl/filter"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connection to Easy!Appointments",
	Long:  `Test the connection to your Easy!Appointments instance and count the records of each resource.`,
	Args:  cobra.NoArgs,
	RunE:  runTest,
}

// counter returns the number of records of one resource
type counter func(ctx context.Context) (int, error)

func countOf[T any](svc easyappointments.Resource[T]) counter {
	return func(ctx context.Context) (int, error) {
		page, err := svc.List(ctx, &easyappointments.ListOptions{Length: 1})
		if err != nil {
			return 0, err
		}
		return page.Total, nil
	}
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Testing connection to Easy!Appointments at %s...\n", client.BaseURL())
	if err := client.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	fmt.Fprintln(out, "✓ Connection successful!")

	counters := []struct {
		name  string
		count counter
	}{
		{"admins", countOf(client.Admins)},
		{"providers", countOf(client.Providers)},
		{"customers", countOf(client.Customers)},
		{"services", countOf(client.Services)},
		{"categories", countOf(client.Categories)},
		{"appointments", countOf(client.Appointments)},
	}

	records := make([]filter.Record, len(counters))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range counters {
		g.Go(func() error {
			total, err := c.count(gctx)
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", c.name, err)
			}
			records[i] = filter.Record{"resource": c.name, "total": float64(total)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	return printRecords(out, cfg.Output.Format, records, []column{
		{"RESOURCE", "resource"},
		{"TOTAL", "total"},
	})
}

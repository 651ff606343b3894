package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/eactl/easyappointments"
	"github.com/s0up4200/eactl/filter"
)

// resourceSpec describes one API resource for the generic CRUD commands
type resourceSpec[T any] struct {
	name     string
	singular string
	service  func() easyappointments.Resource[T]
	columns  []column
}

func resourceCommands() []*cobra.Command {
	return []*cobra.Command{
		newResourceCmd(resourceSpec[easyappointments.Admin]{
			name:     "admins",
			singular: "admin",
			service:  func() easyappointments.Resource[easyappointments.Admin] { return client.Admins },
			columns:  personColumns("timezone"),
		}),
		newResourceCmd(resourceSpec[easyappointments.Provider]{
			name:     "providers",
			singular: "provider",
			service:  func() easyappointments.Resource[easyappointments.Provider] { return client.Providers },
			columns:  personColumns("services"),
		}),
		newResourceCmd(resourceSpec[easyappointments.Customer]{
			name:     "customers",
			singular: "customer",
			service:  func() easyappointments.Resource[easyappointments.Customer] { return client.Customers },
			columns:  personColumns("phone"),
		}),
		newResourceCmd(resourceSpec[easyappointments.Appointment]{
			name:     "appointments",
			singular: "appointment",
			service:  func() easyappointments.Resource[easyappointments.Appointment] { return client.Appointments },
			columns: []column{
				{"ID", "id"},
				{"START", "start"},
				{"END", "end"},
				{"STATUS", "status"},
				{"CUSTOMER", "customerId"},
				{"PROVIDER", "providerId"},
				{"SERVICE", "serviceId"},
			},
		}),
		newResourceCmd(resourceSpec[easyappointments.Service]{
			name:     "services",
			singular: "service",
			service:  func() easyappointments.Resource[easyappointments.Service] { return client.Services },
			columns: []column{
				{"ID", "id"},
				{"NAME", "name"},
				{"DURATION", "duration"},
				{"PRICE", "price"},
				{"CURRENCY", "currency"},
				{"CATEGORY", "categoryId"},
			},
		}),
		newResourceCmd(resourceSpec[easyappointments.Category]{
			name:     "categories",
			singular: "category",
			service:  func() easyappointments.Resource[easyappointments.Category] { return client.Categories },
			columns: []column{
				{"ID", "id"},
				{"NAME", "name"},
				{"DESCRIPTION", "description"},
			},
		}),
	}
}

func personColumns(extra string) []column {
	return []column{
		{"ID", "id"},
		{"FIRST NAME", "firstName"},
		{"LAST NAME", "lastName"},
		{"EMAIL", "email"},
		{strings.ToUpper(extra), extra},
	}
}

func newResourceCmd[T any](r resourceSpec[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   r.name,
		Short: fmt.Sprintf("Manage %s", r.name),
	}
	cmd.AddCommand(r.listCmd(), r.getCmd(), r.createCmd(), r.updateCmd(), r.deleteCmd())
	return cmd
}

func (r resourceSpec[T]) listCmd() *cobra.Command {
	var (
		opts       easyappointments.ListOptions
		all        bool
		filterExpr string
		preset     string
		where      []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", r.name),
		Long: fmt.Sprintf(`List %s page by page, or every page with --all.

--where sends exact-match filters to the server, --filter and --preset
narrow the fetched results locally with an expression.`, r.name),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := filters.Resolve(filterExpr, strings.ToLower(preset))
			if err != nil {
				return fmt.Errorf("invalid filter expression: %w", err)
			}

			opts.Filters, err = parseWhere(where)
			if err != nil {
				return err
			}

			var items []T
			if all {
				items, err = r.service().ListAll(ctx, &opts)
				if err != nil {
					return err
				}
			} else {
				page, err := r.service().List(ctx, &opts)
				if err != nil {
					return err
				}
				items = page.Results
				if page.HasNext() {
					logger.Info().
						Int("page", page.Page).
						Int("total", page.Total).
						Msgf("More %s available, use --page %d or --all", r.name, page.Page+1)
				}
			}

			records, err := filter.ToRecords(items)
			if err != nil {
				return err
			}
			if f != nil {
				before := len(records)
				records = f.Apply(records, func(err error) {
					logger.Debug().Err(err).Msg("Record skipped by filter")
				})
				logger.Debug().
					Str("filter", f.String()).
					Int("matched", len(records)).
					Int("total", before).
					Msg("Applied filter")
			}

			return printRecords(cmd.OutOrStdout(), cfg.Output.Format, records, r.columns)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Length, "length", 20, "items per page (max 100)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort field, prefix with - for descending (default -id)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "free-text search")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "only return these fields")
	cmd.Flags().StringSliceVar(&opts.With, "with", nil, "expand related resources")
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "server-side filter as field=value (repeatable)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "fetch every page")
	cmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")

	return cmd
}

func (r resourceSpec[T]) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>...",
		Short: fmt.Sprintf("Show one or more %s", r.name),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			if len(ids) == 1 {
				item, err := r.service().Get(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				return printItem(cmd.OutOrStdout(), cfg.Output.Format, item, r.columns)
			}

			items, getErr := r.service().GetMany(cmd.Context(), ids)
			found := make([]*T, 0, len(items))
			for _, item := range items {
				if item != nil {
					found = append(found, item)
				}
			}
			records, err := filter.ToRecords(found)
			if err != nil {
				return err
			}
			if err := printRecords(cmd.OutOrStdout(), cfg.Output.Format, records, r.columns); err != nil {
				return err
			}
			return getErr
		},
	}
}

func (r resourceSpec[T]) createCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s from a JSON file", r.singular),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			var item T
			if err := json.Unmarshal(data, &item); err != nil {
				return fmt.Errorf("invalid %s payload: %w", r.singular, err)
			}

			created, err := r.service().Create(cmd.Context(), &item)
			if err != nil {
				return err
			}
			return printItem(cmd.OutOrStdout(), cfg.Output.Format, created, r.columns)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "F", "", "JSON payload file, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (r resourceSpec[T]) updateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Update a %s from a JSON file", r.singular),
		Long: fmt.Sprintf(`Update a %s. The payload is merged over the current %s, so it
only needs the fields that change.`, r.singular, r.singular),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			data, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			current, err := r.service().Get(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, current); err != nil {
				return fmt.Errorf("invalid %s payload: %w", r.singular, err)
			}

			updated, err := r.service().Update(cmd.Context(), ids[0], current)
			if err != nil {
				return err
			}
			return printItem(cmd.OutOrStdout(), cfg.Output.Format, updated, r.columns)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "F", "", "JSON payload file, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (r resourceSpec[T]) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: fmt.Sprintf("Delete one or more %s", r.name),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			if !yes {
				prompt := fmt.Sprintf("Delete %d %s? [y/N]: ", len(ids), r.name)
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
					logger.Info().Msg("Deletion cancelled")
					return nil
				}
			}

			if len(ids) == 1 {
				if err := r.service().Delete(cmd.Context(), ids[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s %d\n", r.singular, ids[0])
				return nil
			}

			deleted, err := r.service().DeleteMany(cmd.Context(), ids)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d of %d %s\n", len(deleted), len(ids), r.name)
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

// parseIDs converts positional arguments to resource ids
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q: must be a positive integer", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseWhere turns field=value pairs into list filters
func parseWhere(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --where %q: expected field=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("payload file is empty")
	}
	return data, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/fanyu-assistant/internal/booking"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage book requests",
	}
	cmd.AddCommand(newRequestAddCmd())
	cmd.AddCommand(newRequestListCmd())
	cmd.AddCommand(newRequestEnableCmd(true))
	cmd.AddCommand(newRequestEnableCmd(false))
	cmd.AddCommand(newRequestRemoveCmd())
	return cmd
}

func newRequestAddCmd() *cobra.Command {
	var (
		storeID  string
		days     string
		from, to string
		disabled bool
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring book request",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := booking.BookRequest{
				ID:      uuid.NewString(),
				StoreID: storeID,
				Enable:  !disabled,
			}
			for _, part := range strings.Split(days, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				d, err := strconv.Atoi(part)
				if err != nil {
					return fmt.Errorf("invalid --days entry %q", part)
				}
				req.Days = append(req.Days, d)
			}
			var err error
			if req.TimeRange[0], err = booking.ParseTimeOfDay(from); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if req.TimeRange[1], err = booking.ParseTimeOfDay(to); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			if err := req.Validate(); err != nil {
				return err
			}

			_, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if err := state.Init(ctx); err != nil {
				return err
			}
			requests, err := state.Requests(ctx)
			if err != nil {
				return err
			}
			if err := state.SaveRequests(ctx, append(requests, req)); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created request id=%s store=%s days=%s window=%s..%s\n",
				req.ID, req.StoreID, days, req.TimeRange[0], req.TimeRange[1])
			return nil
		},
	}

	c.Flags().StringVar(&storeID, "store", "", "store id (see 'fanyuassist stores')")
	c.Flags().StringVar(&days, "days", "", "ISO weekdays, comma separated (Monday=1)")
	c.Flags().StringVar(&from, "from", "", "window start, HH:MM")
	c.Flags().StringVar(&to, "to", "", "window end, HH:MM")
	c.Flags().BoolVar(&disabled, "disabled", false, "create the request disabled")
	_ = c.MarkFlagRequired("store")
	_ = c.MarkFlagRequired("days")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func newRequestListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List book requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			requests, err := state.Requests(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range requests {
				fmt.Fprintf(os.Stdout, "id=%s store=%s days=%v window=%s..%s enabled=%t\n",
					r.ID, r.StoreID, r.Days, r.TimeRange[0], r.TimeRange[1], r.Enable)
			}
			return nil
		},
	}
}

func newRequestEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a book request"
	if !enable {
		use, short = "disable <id>", "Disable a book request"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateRequests(cmd, func(requests []booking.BookRequest) ([]booking.BookRequest, error) {
				for i := range requests {
					if requests[i].ID == args[0] {
						requests[i].Enable = enable
						return requests, nil
					}
				}
				return nil, fmt.Errorf("no request with id %q", args[0])
			})
		},
	}
}

func newRequestRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a book request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateRequests(cmd, func(requests []booking.BookRequest) ([]booking.BookRequest, error) {
				out := requests[:0]
				for _, r := range requests {
					if r.ID != args[0] {
						out = append(out, r)
					}
				}
				if len(out) == len(requests) {
					return nil, fmt.Errorf("no request with id %q", args[0])
				}
				return out, nil
			})
		},
	}
}

func updateRequests(cmd *cobra.Command, mutate func([]booking.BookRequest) ([]booking.BookRequest, error)) error {
	_, store, state, err := openState()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	requests, err := state.Requests(ctx)
	if err != nil {
		return err
	}
	updated, err := mutate(requests)
	if err != nil {
		return err
	}
	return state.SaveRequests(ctx, updated)
}

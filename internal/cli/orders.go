package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kiosksync/internal/app"
	"github.com/roach88/kiosksync/internal/engine"
	"github.com/roach88/kiosksync/internal/order"
)

// OrdersListOptions holds flags for orders list.
type OrdersListOptions struct {
	*RootOptions
	Statuses []string
	Search   string
	From     string
	To       string
}

// OrdersCreateOptions holds flags for orders create.
type OrdersCreateOptions struct {
	*RootOptions
	Customer    string
	Phone       string
	Email       string
	Address     string
	Fulfillment string
	Items       []string
	Notes       string
	DeliveryFee int64
}

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Read and change orders",
		Long: `Read and change orders through the sync layer.

Reads merge the local overlay onto backend records. Writes go to the
backend first; when it fails, creations are kept in the session and
status changes are kept in the overlay.

In simulated mode every invocation starts a fresh simulated backend, so
only overlay entries carry over between invocations.`,
	}

	cmd.AddCommand(newOrdersListCommand(rootOpts))
	cmd.AddCommand(newOrdersGetCommand(rootOpts))
	cmd.AddCommand(newOrdersCreateCommand(rootOpts))
	cmd.AddCommand(newOrdersTransitionCommand(rootOpts))
	cmd.AddCommand(newOrdersCancelCommand(rootOpts))
	return cmd
}

func newOrdersListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Example: `  kiosksync orders list
  kiosksync orders list --status preparing,ready
  kiosksync orders list --search chen --from 2026-03-14T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				orders, err := a.Reconciler.ReadMany(commandContext(cmd), filter)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list orders", err)
				}
				return f.Success(OrderList(orders))
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "only these statuses (repeatable or comma separated)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match order number, customer name or phone")
	cmd.Flags().StringVar(&opts.From, "from", "", "created at or after (RFC 3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "created before (RFC 3339)")
	return cmd
}

func (o *OrdersListOptions) filter() (order.Filter, error) {
	f := order.Filter{SearchText: o.Search}
	for _, s := range o.Statuses {
		st, err := order.ParseStatus(strings.TrimSpace(s))
		if err != nil {
			return order.Filter{}, WrapExitError(ExitCommandError, "invalid --status", err)
		}
		f.Statuses = append(f.Statuses, st)
	}
	var err error
	if f.From, err = parseTimeFlag("--from", o.From); err != nil {
		return order.Filter{}, err
	}
	if f.To, err = parseTimeFlag("--to", o.To); err != nil {
		return order.Filter{}, err
	}
	return f, nil
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "invalid "+name, err)
	}
	return t, nil
}

func newOrdersGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id-or-number>",
		Short:         "Show one order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				o, err := a.Reconciler.ReadOne(commandContext(cmd), args[0])
				if err != nil {
					_ = f.Error(CodeUnavailable, "backend unavailable", err.Error())
					return WrapExitError(ExitFailure, "failed to read order", err)
				}
				if o == nil {
					_ = f.Error(CodeNotFound, fmt.Sprintf("order %s not found", args[0]), nil)
					return NewExitError(ExitFailure, fmt.Sprintf("order %s not found", args[0]))
				}
				return f.Success(OrderDetail{Order: *o})
			})
		},
	}
}

func newOrdersCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		Long: `Create an order. Items are product_id:name:quantity:unit_price with the
price in minor currency units.`,
		Example: `  kiosksync orders create --customer "Maya Chen" --item classic-burger:"Classic Burger":2:1150
  kiosksync orders create --customer Priya --fulfillment delivery --address "12 Elm St" \
    --item family-combo:"Family Combo":1:3499 --delivery-fee 399`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := opts.payload()
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				out, err := a.Pipeline.CreateOrder(commandContext(cmd), payload)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to create order", err)
				}
				return f.Success(newWriteResult(out))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer name (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "customer phone")
	cmd.Flags().StringVar(&opts.Email, "email", "", "customer email")
	cmd.Flags().StringVar(&opts.Address, "address", "", "delivery address")
	cmd.Flags().StringVar(&opts.Fulfillment, "fulfillment", string(order.FulfillmentPickup), "pickup|delivery")
	cmd.Flags().StringArrayVar(&opts.Items, "item", nil, "order line product_id:name:quantity:unit_price (repeatable)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "kitchen notes")
	cmd.Flags().Int64Var(&opts.DeliveryFee, "delivery-fee", 0, "delivery fee in minor units")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func (o *OrdersCreateOptions) payload() (order.Create, error) {
	fulfillment := order.Fulfillment(o.Fulfillment)
	if fulfillment != order.FulfillmentPickup && fulfillment != order.FulfillmentDelivery {
		return order.Create{}, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid --fulfillment %q: must be pickup or delivery", o.Fulfillment))
	}
	c := order.Create{
		Fulfillment: fulfillment,
		Customer: order.Customer{
			Name:    o.Customer,
			Phone:   o.Phone,
			Email:   o.Email,
			Address: o.Address,
		},
		Notes:       o.Notes,
		DeliveryFee: o.DeliveryFee,
	}
	for _, raw := range o.Items {
		it, err := parseItem(raw)
		if err != nil {
			return order.Create{}, WrapExitError(ExitCommandError, "invalid --item", err)
		}
		c.Items = append(c.Items, it)
	}
	return c, nil
}

// parseItem reads product_id:name:quantity:unit_price. The name may
// contain colons; the last two fields are numeric.
func parseItem(s string) (order.Item, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return order.Item{}, fmt.Errorf("%q: want product_id:name:quantity:unit_price", s)
	}
	n := len(parts)
	qty, err := strconv.Atoi(parts[n-2])
	if err != nil || qty <= 0 {
		return order.Item{}, fmt.Errorf("%q: quantity must be a positive integer", s)
	}
	price, err := strconv.ParseInt(parts[n-1], 10, 64)
	if err != nil || price < 0 {
		return order.Item{}, fmt.Errorf("%q: unit_price must be a non-negative integer", s)
	}
	return order.Item{
		ProductID: parts[0],
		Name:      strings.Join(parts[1:n-2], ":"),
		Quantity:  qty,
		UnitPrice: price,
	}, nil
}

func newOrdersTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <id-or-number> <status>",
		Short: "Move an order to a new status",
		Long: `Move an order to a new status.

Statuses: new, preparing, ready, out_for_delivery, delivered, arrived,
cancelled.
Statuses only move forward; cancelled is reachable from any open status.

Exit codes:
  0 - Applied (by the backend or kept in the overlay)
  1 - Refused (terminal order, backward move, unknown order)
  2 - Command error`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				out, err := a.Pipeline.TransitionStatus(commandContext(cmd), args[0], order.Status(args[1]))
				return reportWrite(f, out, err)
			})
		},
	}
}

func newOrdersCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cancel <id-or-number>",
		Short:         "Cancel an order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				out, err := a.Pipeline.CancelOrder(commandContext(cmd), args[0])
				return reportWrite(f, out, err)
			})
		},
	}
}

func reportWrite(f *OutputFormatter, out engine.Outcome, err error) error {
	if err == nil {
		return f.Success(newWriteResult(out))
	}
	if !engine.IsCallerError(err) {
		return WrapExitError(ExitFailure, "write failed", err)
	}

	code := CodeRefused
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		code = CodeNotFound
	case errors.Is(err, engine.ErrInvalidStatus):
		code = CodeInvalid
	case errors.Is(err, engine.ErrUnresolvedOrder):
		code = CodeUnavailable
	}
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, "transition refused", err)
}

// withApp opens a kiosk context for the duration of fn.
func withApp(cmd *cobra.Command, rootOpts *RootOptions, fn func(*app.App, *OutputFormatter) error) error {
	a, err := rootOpts.openApp(commandContext(cmd), nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.Logger.Error("error closing kiosk context", "error", cerr)
		}
	}()
	return fn(a, rootOpts.formatter(cmd))
}

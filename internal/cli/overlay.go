package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kiosksync/internal/app"
	"github.com/roach88/kiosksync/internal/order"
)

// NewOverlayCommand creates the overlay command group.
func NewOverlayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Inspect the local status overlay",
	}
	cmd.AddCommand(newOverlayShowCommand(rootOpts))
	cmd.AddCommand(newOverlayClearCommand(rootOpts))
	return cmd
}

// OverlayEntry is one pending status change.
type OverlayEntry struct {
	OrderID string      `json:"order_id"`
	Patch   order.Patch `json:"patch"`
}

// OverlayView lists entries sorted by order id.
type OverlayView []OverlayEntry

func newOverlayView(set order.PatchSet) OverlayView {
	view := make(OverlayView, 0, len(set))
	for id, p := range set {
		view = append(view, OverlayEntry{OrderID: id, Patch: p})
	}
	sort.Slice(view, func(i, j int) bool { return view[i].OrderID < view[j].OrderID })
	return view
}

func (v OverlayView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "Overlay is empty.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tUPDATED")
	for _, e := range v {
		updated := ""
		if e.Patch.UpdatedAt != nil {
			updated = e.Patch.UpdatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.OrderID, e.Patch.StatusValue(), updated)
	}
	return tw.Flush()
}

func newOverlayShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "List status changes not yet accepted by the backend",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				return f.Success(newOverlayView(a.Overlay.Snapshot()))
			})
		},
	}
}

func newOverlayClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <order-id>",
		Short: "Drop the overlay entry for an order",
		Long: `Drop the overlay entry for an order. Reads show the backend's status
again; the discarded change is not sent anywhere.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app.App, f *OutputFormatter) error {
				removed, err := a.Overlay.Clear(commandContext(cmd), args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "failed to clear overlay entry", err)
				}
				if !removed {
					_ = f.Error(CodeNotFound, fmt.Sprintf("no overlay entry for %s", args[0]), nil)
					return NewExitError(ExitFailure, fmt.Sprintf("no overlay entry for %s", args[0]))
				}
				return f.Success(fmt.Sprintf("cleared overlay entry for %s", args[0]))
			})
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"okuma/internal/domain/receipt"
)

// NewPendingCommand groups the pending-queue operations.
func NewPendingCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Work with receipts parked in the pending queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			printPending(cmd.OutOrStdout(), app.Pending.List())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <fisno>",
		Short: "Show one pending receipt with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			session := app.Pending.Get(args[0])
			if session == nil {
				return fmt.Errorf("no pending receipt %s", args[0])
			}
			printSession(cmd.OutOrStdout(), session)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume <fisno>",
		Short: "Move a pending receipt back into the active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := app.Context(cmd.Context())
			if cur := app.Store.Current(); cur != nil && len(cur.ActiveLines()) > 0 {
				ok, err := app.Confirm.Confirm(ctx, "Resume receipt",
					fmt.Sprintf("Current receipt %s has %d lines and will be replaced. Continue?",
						cur.Fisno, len(cur.ActiveLines())))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := app.Pending.Resume(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Receipt %s is now the active session. Run okuma scan to continue.\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <fisno>",
		Short: "Drop a pending receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := app.Context(cmd.Context())
			ok, err := app.Confirm.Confirm(ctx, "Remove pending receipt",
				fmt.Sprintf("Drop pending receipt %s?", args[0]))
			if err != nil || !ok {
				return err
			}
			return app.Pending.Remove(ctx, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every pending receipt",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := app.Context(cmd.Context())
			ok, err := app.Confirm.Confirm(ctx, "Clear pending queue",
				fmt.Sprintf("Drop all %d pending receipts?", len(app.Pending.List())))
			if err != nil || !ok {
				return err
			}
			return app.Pending.ClearAll(ctx)
		},
	})

	return cmd
}

func printPending(out io.Writer, sessions []*receipt.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "Pending queue is empty.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FISNO\tTARIH\tCARI\tADET\tTUTAR")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.Fisno, s.Tarih, s.CariName, s.TotalQuantity, s.TotalAmount.StringFixed(2))
	}
	w.Flush()
}

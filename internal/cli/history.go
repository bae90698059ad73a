package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"okuma/internal/domain/receipt"
)

// NewHistoryCommand groups the sent-receipt history operations.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse receipts already sent to the backend",
	}

	var (
		page     int
		pageSize int
		filter   receipt.Filter
	)

	list := &cobra.Command{
		Use:   "list",
		Short: "List sent receipts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := app.Context(cmd.Context())
			rows, err := app.History.List(ctx, page, pageSize)
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), receipt.FilterSummaries(rows, filter))
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&pageSize, "page-size", 20, "rows per page")
	list.Flags().StringVar(&filter.Search, "search", "", "free-text filter over fisno and cari")
	list.Flags().StringVar(&filter.Fisno, "fisno", "", "filter by receipt number")
	list.Flags().StringVar(&filter.Tarih, "tarih", "", "filter by date or date prefix (YYYY-MM-DD)")
	list.Flags().StringVar(&filter.CariCode, "cari-kodu", "", "filter by counterparty code")
	list.Flags().StringVar(&filter.CariName, "cari-isim", "", "filter by counterparty name")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <okuma_id>",
		Short: "Show one sent receipt with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("okuma_id must be a number")
			}
			session, err := app.History.Detail(app.Context(cmd.Context()), id)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), session)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit <okuma_id>",
		Short: "Load a sent receipt as the active session for correction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("okuma_id must be a number")
			}
			ctx := app.Context(cmd.Context())
			if cur := app.Store.Current(); cur != nil && len(cur.ActiveLines()) > 0 {
				ok, err := app.Confirm.Confirm(ctx, "Load for edit",
					fmt.Sprintf("Current receipt %s will be replaced. Continue?", cur.Fisno))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := app.History.LoadForEdit(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Receipt loaded. Run okuma scan to adjust, then :send to resubmit.")
			return nil
		},
	})

	return cmd
}

func printSummaries(out io.Writer, rows []receipt.Summary) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No receipts.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OKUMA_ID\tFISNO\tTARIH\tCARI\tADET\tTUTAR\tAKTARILDI")
	for _, r := range rows {
		transferred := ""
		if r.Aktarildi == receipt.Transferred {
			transferred = fmt.Sprintf("mikro %d%s", r.MikroFisno, r.MikroFisseri)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%s\t%s\n",
			r.OkumaID, r.Fisno, r.Tarih, r.CariName,
			r.TotalQuantity, r.TotalAmount.StringFixed(2), transferred)
	}
	w.Flush()
}

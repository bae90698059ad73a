package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSearchCommand looks up counterparties and stock items on the backend.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search backend catalogs",
	}

	var cariField string
	cari := &cobra.Command{
		Use:   "cari <query>",
		Short: "Search counterparty accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			rows, err := app.API.SearchCari(app.Context(cmd.Context()), cariField, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KOD\tISIM")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\n", r.Code, r.Name)
			}
			return w.Flush()
		},
	}
	cari.Flags().StringVar(&cariField, "field", "cari_isim", "field to search (cari_kodu or cari_isim)")
	cmd.AddCommand(cari)

	var stokField string
	stok := &cobra.Command{
		Use:   "stok <query>",
		Short: "Search the stock catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			rows, err := app.API.SearchStok(app.Context(cmd.Context()), stokField, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STOK_KODU\tSTOK_ADI\tBARKOD")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Code, r.Name, r.Barcode)
			}
			return w.Flush()
		},
	}
	stok.Flags().StringVar(&stokField, "field", "stok_adi", "field to search (stok_kodu, stok_adi or barkodu)")
	cmd.AddCommand(stok)

	return cmd
}

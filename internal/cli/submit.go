package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"okuma/internal/domain/receipt"
)

// NewSubmitCommand sends the active session, or a named pending receipt,
// to the backend.
func NewSubmitCommand(opts *RootOptions) *cobra.Command {
	var fisno string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send a receipt to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := app.Context(cmd.Context())

			var session *receipt.Session
			if fisno != "" {
				session = app.Pending.Get(fisno)
				if session == nil {
					return fmt.Errorf("no pending receipt %s", fisno)
				}
			} else {
				session = app.Store.Current()
				if session == nil {
					return fmt.Errorf("no active session; scan something first or pass --fisno")
				}
			}

			record, err := app.Submitter.Submit(ctx, session)
			if err != nil {
				return err
			}
			if record == nil {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Receipt %s accepted, server id %d\n", record.Fisno, record.OkumaID)
			return nil
		},
	}

	cmd.Flags().StringVar(&fisno, "fisno", "", "submit this pending receipt instead of the active session")
	return cmd
}

// NewTransferCommand pushes an accepted receipt into the downstream ERP.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <okuma_id>",
		Short: "Transfer an accepted receipt into the downstream ERP (mikro)",
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

			session, err := app.History.Detail(ctx, id)
			if err != nil {
				return err
			}
			updated, err := app.Submitter.Transfer(ctx, session)
			if err != nil {
				return err
			}
			if updated == nil {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transferred. mikro fisno %d\n", updated.MikroFisno)
			return nil
		},
	}
}

// NewNextCommand previews the next free receipt number.
func NewNextCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next free receipt number and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			fisno, tarih := app.Submitter.NextReceiptNumber(app.Context(cmd.Context()))
			if fisno == "" {
				return fmt.Errorf("server suggestion unavailable")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fisno %s  tarih %s\n", fisno, tarih)
			return nil
		},
	}
}

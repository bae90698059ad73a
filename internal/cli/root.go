package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Yes        bool

	app *App
}

// App returns the wired application, constructed on first use.
func (o *RootOptions) App(cmd *cobra.Command) (*App, error) {
	if o.app != nil {
		return o.app, nil
	}
	app, err := newApp(cmd.Context(), o)
	if err != nil {
		return nil, err
	}
	o.app = app
	return app, nil
}

// NewRootCommand creates the root command for the okuma terminal.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "okuma",
		Short:         "Barcode receiving terminal",
		Long:          "okuma records merchandise-receiving receipts by barcode scan and reconciles them against the backend inventory API.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.app != nil {
				opts.app.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.okuma/okuma.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Yes, "yes", "y", false, "answer yes to all confirmations")

	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewNextCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))

	return cmd
}

// File: cmd/invoice.go
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkwon-dev/ezvoucher/internal/macro"
	"github.com/dkwon-dev/ezvoucher/internal/observability"
	"github.com/dkwon-dev/ezvoucher/internal/workflow"
)

// newInvoiceCmd creates and configures the `invoice` command.
func newInvoiceCmd() *cobra.Command {
	invoiceCmd := &cobra.Command{
		Use:   "invoice",
		Short: "Runs the purchase-invoice ingestion scenario",
		Long: `Downloads the month's receiving records, reshapes the export through
the Excel grouping macro, and registers a pending supplier invoice for each
purchase-order group. The browser is left open for operator review.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			user, _ := cmd.Flags().GetString("user")
			password, _ := cmd.Flags().GetString("password")

			cfg := appCfg
			creds := workflow.Credentials{Username: user, Password: password}
			bridge := macro.NewExcelBridge(cfg.Macro, logger)
			engine := workflow.NewEngine(cfg, creds, logNotifier(logger), bridge, logger)

			res := engine.RunInvoiceScenario(ctx)
			return printResult(res)
		},
	}

	invoiceCmd.Flags().String("user", "", "ERP login user")
	invoiceCmd.Flags().String("password", "", "ERP login password")

	return invoiceCmd
}

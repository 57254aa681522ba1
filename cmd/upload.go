// File: cmd/upload.go
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/batch"
	"github.com/dkwon-dev/ezvoucher/internal/observability"
	"github.com/dkwon-dev/ezvoucher/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newUploadCmd creates and configures the `upload` command.
func newUploadCmd() *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Uploads numbered voucher spreadsheets into the general journal",
		Long: `Uploads voucher spreadsheets from the working directory into the ERP
general journal. Files are matched by their numeric prefix ("3. ...xlsx") and
the journal label is read from the parenthesized part of the file name.

Use --file for a single spreadsheet or --start/--end for a range sharing one
browser session.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			file, _ := cmd.Flags().GetInt("file")
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")
			dir, _ := cmd.Flags().GetString("dir")
			user, _ := cmd.Flags().GetString("user")
			password, _ := cmd.Flags().GetString("password")

			single := cmd.Flags().Changed("file")
			ranged := cmd.Flags().Changed("start") || cmd.Flags().Changed("end")
			if single == ranged {
				return fmt.Errorf("specify either --file or --start/--end")
			}
			if ranged && (!cmd.Flags().Changed("start") || !cmd.Flags().Changed("end")) {
				return fmt.Errorf("--start and --end must be given together")
			}

			cfg := appCfg
			if dir != "" {
				cfg.App.WorkDir = dir
			}

			creds := workflow.Credentials{Username: user, Password: password}
			engine := workflow.NewEngine(cfg, creds, logNotifier(logger), nil, logger)

			var res workflow.Result
			if single {
				res = engine.RunUploadScenario(ctx, file)
			} else {
				runner := batch.NewRunner(engine, cfg, logger)
				res = runner.Run(ctx, start, end)
			}

			return printResult(res)
		},
	}

	uploadCmd.Flags().Int("file", 0, "number of the single spreadsheet to upload")
	uploadCmd.Flags().Int("start", 0, "first number of the range to upload")
	uploadCmd.Flags().Int("end", 0, "last number of the range to upload")
	uploadCmd.Flags().String("dir", "", "working directory holding the numbered spreadsheets")
	uploadCmd.Flags().String("user", "", "ERP login user")
	uploadCmd.Flags().String("password", "", "ERP login password")

	return uploadCmd
}

// printResult writes the scenario outcome to stdout as JSON and turns a
// failed run into a non-zero exit.
func printResult(res workflow.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		observability.GetLogger().Error("Failed to encode result", zap.Error(err))
	} else {
		fmt.Fprintln(os.Stdout, string(out))
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

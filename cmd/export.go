package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kaleidoscope-bio/kaleido-go/cmd/utils"
	"github.com/kaleidoscope-bio/kaleido-go/pkg/kaleido"
)

type exportCmd struct{}

func (c *exportCmd) Command() *cobra.Command {
	v := viper.New()
	var cfg utils.ClientConfig

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download record data as files",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = utils.LoadClientConfig(v)
			return err
		},
	}
	utils.BindClientFlags(cmd, v)

	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Export matching records as a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := kaleido.SearchRecordsQuery{
				EntitySliceID: v.GetString("entity-slice-id"),
				ProgramID:     v.GetString("program-id"),
				OperationID:   v.GetString("operation-id"),
			}
			return c.runPull(cmd, cfg, v.GetString("output"), query, v.GetBool("wait"))
		},
	}
	pullCmd.Flags().String("output", "export.csv", "Path to write the CSV file to")
	pullCmd.Flags().String("entity-slice-id", "", "Restrict the export to one entity type")
	pullCmd.Flags().String("program-id", "", "Restrict the export to one program")
	pullCmd.Flags().String("operation-id", "", "Restrict the export to one activity")
	pullCmd.Flags().Bool("wait", false, "Poll until the export is ready instead of failing while it is assembling")
	if err := v.BindPFlags(pullCmd.Flags()); err != nil {
		logrus.Fatalf("binding export pull flags: %s", err)
	}

	cmd.AddCommand(pullCmd)
	return cmd
}

func (c *exportCmd) runPull(cmd *cobra.Command, cfg utils.ClientConfig, output string, query kaleido.SearchRecordsQuery, wait bool) error {
	client, err := utils.NewClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	pull := client.Exports.PullData
	if wait {
		pull = client.Exports.PullDataWithRetry
	}

	savedPath, err := pull(cmd.Context(), output, query)
	if err != nil {
		return fmt.Errorf("exporting records: %w", err)
	}
	fmt.Println(savedPath)
	return nil
}

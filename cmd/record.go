package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kaleidoscope-bio/kaleido-go/cmd/utils"
	"github.com/kaleidoscope-bio/kaleido-go/pkg/kaleido"
)

type recordCmd struct{}

func (c *recordCmd) Command() *cobra.Command {
	v := viper.New()
	var cfg utils.ClientConfig

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Fetch and search records",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = utils.LoadClientConfig(v)
			return err
		},
	}
	utils.BindClientFlags(cmd, v)

	getCmd := &cobra.Command{
		Use:   "get <record-id>",
		Short: "Fetch one record and print its resolved current values as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGet(cmd, cfg, args[0], v.GetString("activity-id"))
		},
	}
	getCmd.Flags().String("activity-id", "", "Resolve values under this activity scope")
	if err := v.BindPFlags(getCmd.Flags()); err != nil {
		logrus.Fatalf("binding record get flags: %s", err)
	}

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search record IDs by entity type, program or activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := kaleido.SearchRecordsQuery{
				EntitySliceID: v.GetString("entity-slice-id"),
				ProgramID:     v.GetString("program-id"),
				OperationID:   v.GetString("operation-id"),
				SearchText:    v.GetString("search-text"),
				Limit:         v.GetInt("limit"),
			}
			return c.runSearch(cmd, cfg, query)
		},
	}
	searchCmd.Flags().String("entity-slice-id", "", "Restrict to one entity type")
	searchCmd.Flags().String("program-id", "", "Restrict to one program")
	searchCmd.Flags().String("operation-id", "", "Restrict to one activity")
	searchCmd.Flags().String("search-text", "", "Free-text search")
	searchCmd.Flags().Int("limit", 0, "Maximum number of IDs to return, 0 for no limit")
	if err := v.BindPFlags(searchCmd.Flags()); err != nil {
		logrus.Fatalf("binding record search flags: %s", err)
	}

	cmd.AddCommand(getCmd)
	cmd.AddCommand(searchCmd)
	return cmd
}

func (c *recordCmd) runGet(cmd *cobra.Command, cfg utils.ClientConfig, recordID, activityID string) error {
	client, err := utils.NewClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	record, err := client.Records.GetRecordByID(cmd.Context(), recordID)
	if err != nil {
		return fmt.Errorf("fetching record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("record %s not found", recordID)
	}

	rows, err := kaleido.ExportData(cmd.Context(), client, []kaleido.Record{*record}, activityID)
	if err != nil {
		return fmt.Errorf("resolving record values: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rows[0]); err != nil {
		return fmt.Errorf("encoding record values: %w", err)
	}
	return nil
}

func (c *recordCmd) runSearch(cmd *cobra.Command, cfg utils.ClientConfig, query kaleido.SearchRecordsQuery) error {
	client, err := utils.NewClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	ids, err := client.Records.SearchRecords(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("searching records: %w", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LENAX/proc-estimator/pkg/cli/output"
	"github.com/LENAX/proc-estimator/pkg/storage"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		limit       int
		fingerprint string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看估算历史",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := openFactory(opts)
			if err != nil {
				output.Error("打开存储失败: %v", err)
				return err
			}
			defer factory.Close()

			repo := factory.EstimateRepository()
			var records []*storage.EstimateRecord
			if fingerprint != "" {
				records, err = repo.ListByFingerprint(cmd.Context(), fingerprint, limit)
			} else {
				records, err = repo.List(cmd.Context(), limit)
			}
			if err != nil {
				output.Error("查询历史失败: %v", err)
				return err
			}

			out := cmd.OutOrStdout()
			if opts.outputJSON {
				if records == nil {
					records = []*storage.EstimateRecord{}
				}
				return output.PrintJSON(out, records)
			}
			if len(records) == 0 {
				output.Info("暂无估算记录")
				return nil
			}

			table := output.NewTable([]string{"ID", "WORKFLOW", "ALGORITHM", "PROCESSORS", "DEADLINE", "CRITICAL PATH", "CREATED"})
			for _, rec := range records {
				table.AddRow(
					rec.ID,
					rec.WorkflowName,
					rec.Algorithm,
					strconv.Itoa(rec.Processors),
					strconv.Itoa(rec.Deadline),
					strconv.Itoa(rec.CriticalPath),
					rec.CreateTime.Local().Format("2006-01-02 15:04:05"),
				)
			}
			table.Render(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "最多显示的记录数")
	cmd.Flags().StringVarP(&fingerprint, "fingerprint", "f", "", "只显示该工作流指纹的记录")
	cmd.AddCommand(newHistoryDeleteCmd(opts))
	return cmd
}

func newHistoryDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "删除估算记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := openFactory(opts)
			if err != nil {
				output.Error("打开存储失败: %v", err)
				return err
			}
			defer factory.Close()

			if err := factory.EstimateRepository().Delete(cmd.Context(), args[0]); err != nil {
				output.Error("删除估算记录失败: %v", err)
				return err
			}
			output.Success("已删除估算记录: %s", args[0])
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	internalstorage "github.com/LENAX/proc-estimator/internal/storage"
	"github.com/LENAX/proc-estimator/pkg/cli/output"
	"github.com/LENAX/proc-estimator/pkg/core/estimator"
	"github.com/LENAX/proc-estimator/pkg/core/schedule"
	"github.com/LENAX/proc-estimator/pkg/storage"
	"github.com/LENAX/proc-estimator/pkg/workflow"
)

type estimateOptions struct {
	bandwidth    int64
	latency      int64
	goal         int
	workers      int
	save         bool
	showSchedule bool
}

func newEstimateCmd(opts *globalOptions) *cobra.Command {
	eo := &estimateOptions{}

	cmd := &cobra.Command{
		Use:   "estimate <workflow-source> <BTS|DSC|IterHEFT> [deadline] [precision]",
		Short: "估算工作流所需的处理器数量",
		Long: `读取工作流描述（.yaml/.yml/.json/.dax/.xml），按指定算法估算处理器数量。

deadline 省略或为0时使用关键路径长度；precision 仅对BTS生效，用于粗化时间粒度。`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseEstimateArgs(args)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			est := opts.cfg.ProcEstimator.Estimation
			flags := cmd.Flags()
			if flags.Changed("bandwidth") {
				est.Bandwidth = eo.bandwidth
			}
			if flags.Changed("latency") {
				est.Latency = eo.latency
			}
			if flags.Changed("goal") {
				est.BalanceGoal = eo.goal
			}
			if flags.Changed("workers") {
				est.HEFTWorkers = eo.workers
			}
			opts.cfg.ProcEstimator.Estimation = est

			var repo storage.EstimateRepository
			if eo.save {
				factory, err := openFactory(opts)
				if err != nil {
					output.Error("打开存储失败: %v", err)
					return err
				}
				repo = factory.EstimateRepository()
			}
			estimatorInst := estimator.NewFromConfig(opts.cfg, repo)
			defer estimatorInst.Close()

			res, err := estimatorInst.Estimate(cmd.Context(), req)
			if err != nil {
				output.Error("估算失败: %v", err)
				return err
			}

			out := cmd.OutOrStdout()
			if opts.outputJSON {
				return output.PrintJSON(out, res)
			}
			fmt.Fprintln(out, res.Processors)
			if eo.showSchedule {
				renderSchedule(cmd, res)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&eo.bandwidth, "bandwidth", 1, "传输带宽（数据量/时间单位）")
	cmd.Flags().Int64Var(&eo.latency, "latency", 0, "每条依赖的固定传输延迟")
	cmd.Flags().IntVar(&eo.goal, "goal", schedule.DefaultBalanceGoal, "BTS再平衡目标高度")
	cmd.Flags().IntVar(&eo.workers, "workers", 4, "IterHEFT并行试算数")
	cmd.Flags().BoolVar(&eo.save, "save", false, "保存到估算历史")
	cmd.Flags().BoolVar(&eo.showSchedule, "schedule", false, "输出调度表")
	return cmd
}

// parseEstimateArgs 解析位置参数
func parseEstimateArgs(args []string) (estimator.Request, error) {
	var req estimator.Request

	wf, err := workflow.LoadFile(args[0])
	if err != nil {
		return req, err
	}
	alg, err := schedule.ParseAlgorithm(args[1])
	if err != nil {
		return req, err
	}
	req.Workflow = wf
	req.Algorithm = alg

	if len(args) > 2 {
		if req.Deadline, err = strconv.Atoi(args[2]); err != nil {
			return req, fmt.Errorf("%w: deadline %q is not an integer", estimator.ErrInvalidRequest, args[2])
		}
	}
	if len(args) > 3 {
		if req.Precision, err = strconv.Atoi(args[3]); err != nil {
			return req, fmt.Errorf("%w: precision %q is not an integer", estimator.ErrInvalidRequest, args[3])
		}
	}
	return req, nil
}

func renderSchedule(cmd *cobra.Command, res *estimator.Result) {
	out := cmd.OutOrStdout()
	if res.Algorithm == schedule.DSC {
		table := output.NewTable([]string{"TASK", "CLUSTER"})
		for _, p := range sortedClusters(res.Clusters) {
			table.AddRow(p.task, strconv.Itoa(p.cluster))
		}
		table.Render(out)
		return
	}

	table := output.NewTable([]string{"TASK", "START", "FINISH", "PROCESSOR"})
	for _, p := range res.Schedule {
		proc := "-"
		if p.Processor >= 0 {
			proc = strconv.Itoa(p.Processor)
		}
		table.AddRow(p.TaskID, strconv.Itoa(p.Start), strconv.Itoa(p.Finish), proc)
	}
	table.Render(out)
}

type clusterRow struct {
	task    string
	cluster int
}

// sortedClusters 按簇编号、任务ID排序
func sortedClusters(clusters map[string]int) []clusterRow {
	rows := make([]clusterRow, 0, len(clusters))
	for task, c := range clusters {
		rows = append(rows, clusterRow{task: task, cluster: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].cluster != rows[j].cluster {
			return rows[i].cluster < rows[j].cluster
		}
		return rows[i].task < rows[j].task
	})
	return rows
}

// openFactory 按配置打开估算历史存储
func openFactory(opts *globalOptions) (internalstorage.DatabaseFactory, error) {
	db := opts.cfg.ProcEstimator.Storage.Database
	return internalstorage.NewDatabaseFactory(db.Type, db.DSN, storage.PoolOptions{
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	})
}

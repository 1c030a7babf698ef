package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/LENAX/proc-estimator/pkg/config"
)

// globalOptions 全局参数
type globalOptions struct {
	configPath string
	outputJSON bool
	logLevel   string

	cfg *config.EstimatorConfig
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "proc-estimator",
		Short: "Proc Estimator - 工作流处理器数量估算工具",
		Long: `Proc Estimator 估算在给定截止时间内完成一个科学工作流（DAG）所需的最少同构处理器数量。

支持的算法：
  - BTS       有界时间槽装箱 + 再平衡
  - DSC       主导序列聚类（不使用截止时间）
  - IterHEFT  迭代HEFT列表调度

使用示例：
  # 按关键路径长度估算
  proc-estimator estimate ./montage.dax BTS

  # 指定截止时间与精度
  proc-estimator estimate ./workflow.yaml BTS 3600 10

  # 查看历史估算
  proc-estimator history --limit 10

  # 启动HTTP服务
  proc-estimator server start --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEstimatorConfig(opts.configPath)
			if err != nil {
				return err
			}
			level := cfg.ProcEstimator.General.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = opts.logLevel
			}
			if err := config.ConfigureLogging(level); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认使用内置配置）")
	rootCmd.PersistentFlags().BoolVarP(&opts.outputJSON, "json", "j", false, "使用JSON格式输出")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "日志级别（debug/info/warn/error）")

	rootCmd.AddCommand(newEstimateCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newServerCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))
	return rootCmd
}

// Execute 执行根命令
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LENAX/proc-estimator/pkg/api"
	"github.com/LENAX/proc-estimator/pkg/cli/output"
	"github.com/LENAX/proc-estimator/pkg/core/estimator"
)

func newServerCmd(opts *globalOptions) *cobra.Command {
	var (
		serverHost string
		serverPort int
	)

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "服务管理命令",
		Long:  `管理Proc Estimator HTTP API服务。`,
	}

	serverStartCmd := &cobra.Command{
		Use:   "start",
		Short: "启动HTTP API服务",
		Long: `启动Proc Estimator HTTP API服务。

示例：
  # 使用默认配置启动
  proc-estimator server start

  # 指定端口启动
  proc-estimator server start --port 8080

  # 指定配置文件启动
  proc-estimator server start --config ./configs/estimator.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg, err := api.ServerConfigFrom(opts.cfg)
			if err != nil {
				output.Error("配置错误: %v", err)
				return err
			}
			if cmd.Flags().Changed("host") {
				serverCfg.Host = serverHost
			}
			if cmd.Flags().Changed("port") {
				serverCfg.Port = serverPort
			}

			factory, err := openFactory(opts)
			if err != nil {
				output.Error("打开存储失败: %v", err)
				return err
			}
			est := estimator.NewFromConfig(opts.cfg, factory.EstimateRepository())
			defer est.Close()

			apiServer := api.NewAPIServer(est, serverCfg, Version)

			errCh := make(chan error, 1)
			go func() {
				errCh <- apiServer.Start()
			}()

			output.Success("Proc Estimator Server started on %s", apiServer.Addr())

			// 等待中断信号或启动失败
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				if err != nil {
					output.Error("API服务器错误: %v", err)
				}
				return err
			case <-quit:
			}

			output.Info("正在关闭服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.WriteTimeout)
			defer cancel()

			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				log.Errorf("关闭API服务器失败: %v", err)
			}
			output.Success("服务已停止")
			return nil
		},
	}

	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "监听端口")
	serverStartCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "监听地址")

	serverCmd.AddCommand(serverStartCmd)
	return serverCmd
}

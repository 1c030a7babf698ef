package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/LENAX/proc-estimator/pkg/config"
	"github.com/LENAX/proc-estimator/pkg/core/estimator"
	"github.com/LENAX/proc-estimator/pkg/core/schedule"
)

// ServerConfig API服务器配置
type ServerConfig struct {
	Host             string        // 监听地址
	Port             int           // 监听端口
	ReadTimeout      time.Duration // 读取超时
	WriteTimeout     time.Duration // 写入超时
	DefaultAlgorithm schedule.Algorithm
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:             "0.0.0.0",
		Port:             8080,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     60 * time.Second,
		DefaultAlgorithm: schedule.BTS,
	}
}

// ServerConfigFrom 从估算服务配置构造服务器配置
func ServerConfigFrom(cfg *config.EstimatorConfig) (ServerConfig, error) {
	s := cfg.ProcEstimator.Server
	alg, err := schedule.ParseAlgorithm(cfg.ProcEstimator.Estimation.DefaultAlgorithm)
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		Host:             s.Host,
		Port:             s.Port,
		ReadTimeout:      s.ReadTimeout,
		WriteTimeout:     s.WriteTimeout,
		DefaultAlgorithm: alg,
	}, nil
}

// APIServer HTTP API服务器
type APIServer struct {
	estimator  *estimator.Estimator
	httpServer *http.Server
	config     ServerConfig
	version    string
}

// NewAPIServer 创建API服务器
func NewAPIServer(est *estimator.Estimator, config ServerConfig, version string) *APIServer {
	s := &APIServer{
		estimator: est,
		config:    config,
		version:   version,
	}
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      SetupRouter(est, config.DefaultAlgorithm, version),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler 返回路由，便于测试
func (s *APIServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start 启动服务器，阻塞直到Shutdown
func (s *APIServer) Start() error {
	log.Infof("🚀 Proc Estimator API Server starting on %s", s.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server listen failed: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *APIServer) Shutdown(ctx context.Context) error {
	log.Info("🛑 Shutting down API Server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("✅ API Server stopped")
	return nil
}

// Addr 获取服务器地址
func (s *APIServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

package config

import (
	"time"
)

// EstimatorConfig 估算服务配置（对外导出）
type EstimatorConfig struct {
	ProcEstimator struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
		} `yaml:"general"`
		Estimation struct {
			DefaultAlgorithm     string `yaml:"default_algorithm"`
			DefaultPrecision     int    `yaml:"default_precision"`
			MaxDeadline          int    `yaml:"max_deadline"`
			Bandwidth            int64  `yaml:"bandwidth"`
			Latency              int64  `yaml:"latency"`
			BalanceGoal          int    `yaml:"balance_goal"`
			BalanceMaxIterations int    `yaml:"balance_max_iterations"`
			HEFTWorkers          int    `yaml:"heft_workers"`
		} `yaml:"estimation"`
		Storage struct {
			Database struct {
				Type            string        `yaml:"type"`
				DSN             string        `yaml:"dsn"`
				MaxOpenConns    int           `yaml:"max_open_conns"`
				MaxIdleConns    int           `yaml:"max_idle_conns"`
				ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
			} `yaml:"database"`
			Cache struct {
				Enabled       bool          `yaml:"enabled"`
				DefaultTTL    time.Duration `yaml:"default_ttl"`
				CleanInterval time.Duration `yaml:"clean_interval"`
			} `yaml:"cache"`
		} `yaml:"storage"`
		Server struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"server"`
	} `yaml:"proc-estimator"`
}

// Default 返回填充了默认值的配置
func Default() *EstimatorConfig {
	cfg := &EstimatorConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// GetDatabaseType 获取数据库类型
func (c *EstimatorConfig) GetDatabaseType() string {
	return c.ProcEstimator.Storage.Database.Type
}

// GetDatabaseDSN 获取数据库DSN
func (c *EstimatorConfig) GetDatabaseDSN() string {
	return c.ProcEstimator.Storage.Database.DSN
}

// GetHEFTWorkers 获取IterHEFT并行度
func (c *EstimatorConfig) GetHEFTWorkers() int {
	workers := c.ProcEstimator.Estimation.HEFTWorkers
	if workers <= 0 {
		return 4 // 默认值
	}
	return workers
}

// ApplyDefaults 应用默认值
func (c *EstimatorConfig) ApplyDefaults() {
	// General默认值
	if c.ProcEstimator.General.InstanceName == "" {
		c.ProcEstimator.General.InstanceName = "proc-estimator"
	}
	if c.ProcEstimator.General.LogLevel == "" {
		c.ProcEstimator.General.LogLevel = "info"
	}

	// Estimation默认值
	est := &c.ProcEstimator.Estimation
	if est.DefaultAlgorithm == "" {
		est.DefaultAlgorithm = "BTS"
	}
	if est.DefaultPrecision <= 0 {
		est.DefaultPrecision = 1
	}
	if est.MaxDeadline <= 0 {
		est.MaxDeadline = 10000000
	}
	if est.Bandwidth <= 0 {
		est.Bandwidth = 1
	}
	if est.BalanceGoal <= 0 {
		est.BalanceGoal = 1
	}
	if est.BalanceMaxIterations <= 0 {
		est.BalanceMaxIterations = 10000
	}
	if est.HEFTWorkers <= 0 {
		est.HEFTWorkers = 4
	}

	// Database默认值
	db := &c.ProcEstimator.Storage.Database
	if db.Type == "" {
		db.Type = "sqlite"
	}
	if db.DSN == "" && db.Type == "sqlite" {
		db.DSN = "./proc-estimator.db"
	}
	if db.MaxOpenConns <= 0 {
		db.MaxOpenConns = 10
	}
	if db.MaxIdleConns <= 0 {
		db.MaxIdleConns = 5
	}
	if db.ConnMaxLifetime <= 0 {
		db.ConnMaxLifetime = 2 * time.Hour
	}

	// Cache默认值
	cache := &c.ProcEstimator.Storage.Cache
	if cache.DefaultTTL <= 0 {
		cache.DefaultTTL = 1 * time.Hour
	}
	if cache.CleanInterval <= 0 {
		cache.CleanInterval = 30 * time.Minute
	}

	// Server默认值
	srv := &c.ProcEstimator.Server
	if srv.Host == "" {
		srv.Host = "0.0.0.0"
	}
	if srv.Port <= 0 {
		srv.Port = 8080
	}
	if srv.ReadTimeout <= 0 {
		srv.ReadTimeout = 30 * time.Second
	}
	if srv.WriteTimeout <= 0 {
		srv.WriteTimeout = 60 * time.Second
	}
}

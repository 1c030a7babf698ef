package config

import (
	"fmt"
	"strings"
)

// ValidateEstimatorConfig 校验配置合法性
func ValidateEstimatorConfig(cfg *EstimatorConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}
	pe := &cfg.ProcEstimator

	// 校验General
	if pe.General.InstanceName == "" {
		return fmt.Errorf("instance_name不能为空")
	}
	if pe.General.LogLevel != "" {
		validLevels := map[string]bool{
			"trace": true,
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[strings.ToLower(pe.General.LogLevel)] {
			return fmt.Errorf("log_level必须是trace/debug/info/warn/error之一")
		}
	}

	// 校验Estimation
	validAlgorithms := map[string]bool{
		"bts":      true,
		"dsc":      true,
		"iterheft": true,
	}
	if !validAlgorithms[strings.ToLower(pe.Estimation.DefaultAlgorithm)] {
		return fmt.Errorf("estimation.default_algorithm必须是BTS/DSC/IterHEFT之一")
	}
	if pe.Estimation.DefaultPrecision < 1 {
		return fmt.Errorf("estimation.default_precision必须大于0")
	}
	if pe.Estimation.MaxDeadline < 1 {
		return fmt.Errorf("estimation.max_deadline必须大于0")
	}
	if pe.Estimation.Bandwidth < 1 {
		return fmt.Errorf("estimation.bandwidth必须大于0")
	}
	if pe.Estimation.Latency < 0 {
		return fmt.Errorf("estimation.latency不能为负数")
	}
	if pe.Estimation.HEFTWorkers < 1 {
		return fmt.Errorf("estimation.heft_workers必须大于0")
	}

	// 校验Storage.Database
	if pe.Storage.Database.Type == "" {
		return fmt.Errorf("database.type不能为空")
	}
	validDBTypes := map[string]bool{
		"sqlite":     true,
		"sqlite3":    true,
		"postgres":   true,
		"postgresql": true,
		"mysql":      true,
	}
	if !validDBTypes[pe.Storage.Database.Type] {
		return fmt.Errorf("database.type必须是sqlite/postgres/mysql之一")
	}
	if pe.Storage.Database.DSN == "" {
		return fmt.Errorf("database.dsn不能为空")
	}
	if pe.Storage.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns必须大于0")
	}
	if pe.Storage.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns不能为负数")
	}

	// 校验Server
	if pe.Server.Port <= 0 || pe.Server.Port > 65535 {
		return fmt.Errorf("server.port必须在1-65535之间")
	}

	return nil
}

package config

import (
	"fmt"

	"arena/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchRisk 监听主配置文件，变更后重新加载并把新的风控参数交给 onChange。
// 新配置校验失败时保留旧值。
func WatchRisk(path string, onChange func(RiskConfig)) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	if onChange == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config failed (%s): %w", path, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("配置热加载失败，沿用旧风控参数: %v", err)
			return
		}
		logger.Infof("风控参数已热更新: max_leverage=%.1f max_risk=%.1f%%", cfg.Risk.MaxLeverage, cfg.Risk.MaxRiskPerTradePercent)
		onChange(cfg.Risk)
	})
	v.WatchConfig()
	return nil
}

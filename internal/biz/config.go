package biz

import (
	"time"

	"github.com/rabbitpom/rapidl-backend/internal/conf"
	"github.com/rabbitpom/rapidl-backend/internal/constants"
)

// GenerateConfig 生成服务配置
type GenerateConfig struct {
	MaxChoices     int           // 单次提交最多可选的选题数
	CreditValidity time.Duration // 发放额度的有效期
	WorkingTTL     time.Duration // Working 状态缓存有效期
	SuccessTTL     time.Duration // Success 状态缓存有效期
	FailedTTL      time.Duration // Failed 状态缓存有效期
}

// NewGenerateConfig 从配置创建 GenerateConfig
func NewGenerateConfig(c *conf.Bootstrap) *GenerateConfig {
	config := &GenerateConfig{
		MaxChoices:     4,
		CreditValidity: 30 * 24 * time.Hour,
		WorkingTTL:     1800 * time.Second,
		SuccessTTL:     240 * time.Second,
		FailedTTL:      120 * time.Second,
	}
	if c.Generate != nil {
		if c.Generate.MaxChoices > 0 {
			config.MaxChoices = int(c.Generate.MaxChoices)
		}
		if c.Generate.CreditValiditySeconds > 0 {
			config.CreditValidity = time.Duration(c.Generate.CreditValiditySeconds) * time.Second
		}
		if c.Generate.WorkingTTLSeconds > 0 {
			config.WorkingTTL = time.Duration(c.Generate.WorkingTTLSeconds) * time.Second
		}
		if c.Generate.SuccessTTLSeconds > 0 {
			config.SuccessTTL = time.Duration(c.Generate.SuccessTTLSeconds) * time.Second
		}
		if c.Generate.FailedTTLSeconds > 0 {
			config.FailedTTL = time.Duration(c.Generate.FailedTTLSeconds) * time.Second
		}
	}
	return config
}

// StatusTTL 返回状态对应的缓存有效期，未知状态不缓存
func (c *GenerateConfig) StatusTTL(status string) time.Duration {
	switch status {
	case constants.JobStatusWaiting, constants.JobStatusWorking:
		return c.WorkingTTL
	case constants.JobStatusSuccess:
		return c.SuccessTTL
	case constants.JobStatusFailed:
		return c.FailedTTL
	default:
		return 0
	}
}

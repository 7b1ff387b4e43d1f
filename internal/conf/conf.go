package conf

import "time"

// Bootstrap 应用启动配置（由 kratos config 从 configs/config.yaml 扫描）
type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Generate *Generate `json:"generate"`
}

// Server 服务配置
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP HTTP 服务配置
type HTTP struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	// Timeout 请求超时，形如 "5s"
	Timeout string `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
	Storage  *Storage  `json:"storage"`
}

// Database 数据库配置（Postgres DSN）
type Database struct {
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string `json:"addr"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// Rocketmq 消息队列配置
type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	// Topic 生成任务队列主题
	Topic string `json:"topic"`
	// NotifyTopic 通知主题（fire-and-forget）
	NotifyTopic string `json:"notify_topic"`
	RetryTimes  int    `json:"retry_times"`
}

// Storage 对象存储配置（GCS）
type Storage struct {
	Bucket string `json:"bucket"`
	// CredentialsFile 服务账号密钥文件路径，为空时走 ADC
	CredentialsFile string `json:"credentials_file"`
}

// Generate 生成业务配置
type Generate struct {
	// MaxChoices 单次生成允许的最大选题数
	MaxChoices int `json:"max_choices"`
	// CreditValiditySeconds 标准发放/退款额度的有效期（秒）
	CreditValiditySeconds int `json:"credit_validity_seconds"`
	// WorkingTTLSeconds 状态缓存 Working 的 TTL（覆盖最坏处理时长）
	WorkingTTLSeconds int `json:"working_ttl_seconds"`
	// SuccessTTLSeconds 状态缓存 Success 的 TTL
	SuccessTTLSeconds int `json:"success_ttl_seconds"`
	// FailedTTLSeconds 状态缓存 Failed 的 TTL
	FailedTTLSeconds int `json:"failed_ttl_seconds"`
}

// ParseDuration 解析形如 "5s" 的时长，解析失败时返回默认值
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

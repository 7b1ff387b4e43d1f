package constants

// Redis Key 格式常量
const (
	// RedisKeyCreditTotalFmt 余额缓存 key（总额）
	RedisKeyCreditTotalFmt = "user:%d:cred:t"
	// RedisKeyCreditExpireFmt 余额缓存 key（最近过期时间，unix 秒）
	RedisKeyCreditExpireFmt = "user:%d:cred:e"
	// RedisKeyJobStatusFmt 生成任务状态缓存 key
	RedisKeyJobStatusFmt = "gen:job:%s"
	// RedisKeySpendLockFmt 扣减额度分布式锁 key
	RedisKeySpendLockFmt = "cred:lock:%d"
)

// 生成任务状态常量
const (
	// JobStatusWaiting 等待被 worker 认领
	JobStatusWaiting = "Waiting"
	// JobStatusWorking 正在生成
	JobStatusWorking = "Working"
	// JobStatusSuccess 生成成功，产物可读取
	JobStatusSuccess = "Success"
	// JobStatusFailed 生成失败（终态，已退款）
	JobStatusFailed = "Failed"
	// JobStatusDeleting 用户已请求删除，等待 worker 确认
	JobStatusDeleting = "Deleting"
)

// 结果标签常量（用于指标）
const (
	// ResultSuccess 成功
	ResultSuccess = "success"
	// ResultFailed 失败
	ResultFailed = "failed"
	// ResultRejected 校验/余额拒绝
	ResultRejected = "rejected"
	// ResultRetry 暂时失败，等待队列重投
	ResultRetry = "retry"
)

// 对象存储常量
const (
	// ArtifactSuffix 生成产物对象名后缀
	ArtifactSuffix = ".rapidl.gz"
	// ArtifactContentEncoding 产物压缩编码
	ArtifactContentEncoding = "gzip"
	// ArtifactContentType 产物内容类型
	ArtifactContentType = "application/json"
)

// 批量查询上限
const (
	// MaxBatchStatusIDs 批量状态查询的最大 job 数
	MaxBatchStatusIDs = 10
)

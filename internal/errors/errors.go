package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// rapidl-backend 错误定义
// Reason 格式：模块_错误，全大写，对外稳定
//
// 模块划分：
//   CREDITS: 额度账本模块
//   JOB:     生成任务模块
//   GEN:     生成校验模块
//   QUEUE:   消息队列模块

// 额度账本模块
const (
	// ReasonInsufficientCredits 额度不足
	ReasonInsufficientCredits = "CREDITS_INSUFFICIENT"
	// ReasonLedgerUnavailable 账本存储（数据库/缓存）不可用，可重试
	ReasonLedgerUnavailable = "CREDITS_LEDGER_UNAVAILABLE"
	// ReasonBadLedgerData 锁内消费无法满足（并发不变量被破坏），操作已中止
	ReasonBadLedgerData = "CREDITS_BAD_LEDGER_DATA"
	// ReasonCacheWriteFailed 账本变更已落库但缓存失效失败
	ReasonCacheWriteFailed = "CREDITS_CACHE_WRITE_FAILED"
	// ReasonSpendLockFailed 获取扣减锁失败
	ReasonSpendLockFailed = "CREDITS_SPEND_LOCK_FAILED"
)

// 生成任务模块
const (
	// ReasonJobNotFound 任务不存在或不属于当前用户
	ReasonJobNotFound = "JOB_NOT_FOUND"
	// ReasonJobLocked 任务正在生成中，禁止取消
	ReasonJobLocked = "JOB_LOCKED"
	// ReasonJobNotRetryable 只有 Failed 状态的任务可以重试
	ReasonJobNotRetryable = "JOB_NOT_RETRYABLE"
	// ReasonJobStoreUnavailable 任务存储不可用，可重试
	ReasonJobStoreUnavailable = "JOB_STORE_UNAVAILABLE"
	// ReasonJobCorrupt 任务记录与产物不一致（Success 却缺 finished_on 或产物）
	ReasonJobCorrupt = "JOB_CORRUPT"
)

// 生成校验模块
const (
	// ReasonInvalidChoices 选题为空、超限、重复或与类别不兼容
	ReasonInvalidChoices = "GEN_INVALID_CHOICES"
	// ReasonUnknownCategory 未知的生成类别
	ReasonUnknownCategory = "GEN_UNKNOWN_CATEGORY"
	// ReasonUnsupportedOption 生成器不支持该类别下的选题（终态失败）
	ReasonUnsupportedOption = "GEN_UNSUPPORTED_OPTION"
)

// 用户模块
const (
	// ReasonUserUnauthenticated 请求缺少或携带了非法的用户标识
	ReasonUserUnauthenticated = "USER_UNAUTHENTICATED"
)

// 消息队列模块
const (
	// ReasonQueuePublishFailed 消息投递失败
	ReasonQueuePublishFailed = "QUEUE_PUBLISH_FAILED"
	// ReasonArtifactUnavailable 产物存储不可用，可重试
	ReasonArtifactUnavailable = "ARTIFACT_UNAVAILABLE"
)

// ErrInsufficientCredits 额度不足
func ErrInsufficientCredits(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(400, ReasonInsufficientCredits, sprintf(format, args...))
}

// ErrLedgerUnavailable 账本存储不可用
func ErrLedgerUnavailable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(503, ReasonLedgerUnavailable, sprintf(format, args...))
}

// ErrBadLedgerData 账本数据不变量被破坏
func ErrBadLedgerData(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(500, ReasonBadLedgerData, sprintf(format, args...))
}

// ErrCacheWriteFailed 缓存失效失败（账本变更已持久化）
func ErrCacheWriteFailed(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(500, ReasonCacheWriteFailed, sprintf(format, args...))
}

// ErrSpendLockFailed 获取扣减锁失败
func ErrSpendLockFailed(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(503, ReasonSpendLockFailed, sprintf(format, args...))
}

// ErrJobNotFound 任务不存在
func ErrJobNotFound(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(404, ReasonJobNotFound, sprintf(format, args...))
}

// ErrJobLocked 任务生成中禁止取消
func ErrJobLocked(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(423, ReasonJobLocked, sprintf(format, args...))
}

// ErrJobNotRetryable 任务状态不允许重试
func ErrJobNotRetryable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(409, ReasonJobNotRetryable, sprintf(format, args...))
}

// ErrJobStoreUnavailable 任务存储不可用
func ErrJobStoreUnavailable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(503, ReasonJobStoreUnavailable, sprintf(format, args...))
}

// ErrJobCorrupt 任务记录与产物不一致
func ErrJobCorrupt(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(500, ReasonJobCorrupt, sprintf(format, args...))
}

// ErrInvalidChoices 选题校验失败
func ErrInvalidChoices(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(400, ReasonInvalidChoices, sprintf(format, args...))
}

// ErrUnknownCategory 未知生成类别
func ErrUnknownCategory(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(400, ReasonUnknownCategory, sprintf(format, args...))
}

// ErrUnsupportedOption 生成器不支持该选题
func ErrUnsupportedOption(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(422, ReasonUnsupportedOption, sprintf(format, args...))
}

// ErrUserUnauthenticated 请求缺少合法的用户标识
func ErrUserUnauthenticated(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(401, ReasonUserUnauthenticated, sprintf(format, args...))
}

// ErrQueuePublishFailed 消息投递失败
func ErrQueuePublishFailed(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(503, ReasonQueuePublishFailed, sprintf(format, args...))
}

// ErrArtifactUnavailable 产物存储不可用
func ErrArtifactUnavailable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(503, ReasonArtifactUnavailable, sprintf(format, args...))
}

// IsInsufficientCredits 是否额度不足
func IsInsufficientCredits(err error) bool {
	return kerrors.Reason(err) == ReasonInsufficientCredits
}

// IsUnsupportedOption 是否生成器终态失败
func IsUnsupportedOption(err error) bool {
	return kerrors.Reason(err) == ReasonUnsupportedOption
}

// IsCacheWriteFailed 账本变更已落库但缓存失效失败。
// 调用方据此判断扣减是否已经生效
func IsCacheWriteFailed(err error) bool {
	return kerrors.Reason(err) == ReasonCacheWriteFailed
}

// IsJobNotFound 是否任务不存在
func IsJobNotFound(err error) bool {
	return kerrors.Reason(err) == ReasonJobNotFound
}

// retryableReasons 瞬时基础设施错误：worker 路径留在队列中等待重投
var retryableReasons = map[string]struct{}{
	ReasonLedgerUnavailable:   {},
	ReasonJobStoreUnavailable: {},
	ReasonCacheWriteFailed:    {},
	ReasonSpendLockFailed:     {},
	ReasonQueuePublishFailed:  {},
	ReasonArtifactUnavailable: {},
}

// IsRetryable 判断错误是否属于可重试的基础设施故障
func IsRetryable(err error) bool {
	_, ok := retryableReasons[kerrors.Reason(err)]
	return ok
}

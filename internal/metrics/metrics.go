package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GenerationMetrics 生成服务指标
type GenerationMetrics struct {
	// 额度相关指标
	BalanceQueryTotal *prometheus.CounterVec // 余额查询总数（按缓存命中情况）
	SpendTotal        *prometheus.CounterVec // 额度扣减总数（按结果）
	SpendAmount       prometheus.Counter     // 扣减额度总量
	SpendDuration     prometheus.Histogram   // 扣减耗时
	RefundTotal       *prometheus.CounterVec // 额度返还总数（按原因）
	GrantTotal        prometheus.Counter     // 额度发放总数

	// 任务提交相关指标
	SubmitTotal    *prometheus.CounterVec   // 任务提交总数（按类别、结果）
	SubmitDuration *prometheus.HistogramVec // 任务提交耗时

	// worker 处理相关指标
	ProcessTotal    *prometheus.CounterVec // 消息处理总数（按结果）
	ProcessDuration prometheus.Histogram   // 消息处理耗时
	ArtifactBytes   prometheus.Histogram   // 产物大小（压缩后）

	// 任务生命周期指标
	JobDeleteTotal *prometheus.CounterVec // 任务删除总数（按删除时状态）
	JobRetryTotal  *prometheus.CounterVec // 任务重试总数（按结果）

	// 过期清理指标
	PurgeExpiredTotal prometheus.Counter // 过期授予清理批次总数
	PurgedGrantsTotal prometheus.Counter // 被清理的过期授予行数

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewGenerationMetrics 创建生成服务指标
func NewGenerationMetrics() *GenerationMetrics {
	return &GenerationMetrics{
		// 额度指标
		BalanceQueryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_balance_query_total",
				Help: "Total number of balance queries",
			},
			[]string{"source"}, // source: cache/db/empty
		),
		SpendTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_spend_total",
				Help: "Total number of credit spend attempts",
			},
			[]string{"result"}, // result: success/rejected/failed
		),
		SpendAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rapidl_spend_amount_total",
				Help: "Total credits spent",
			},
		),
		SpendDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rapidl_spend_duration_seconds",
				Help:    "Duration of credit spend operations",
				Buckets: prometheus.DefBuckets,
			},
		),
		RefundTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_refund_total",
				Help: "Total number of credit refunds",
			},
			[]string{"reason"}, // reason: submit_failed/job_failed/job_cancelled/retry_failed
		),
		GrantTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rapidl_grant_total",
				Help: "Total number of credit grants",
			},
		),

		// 提交指标
		SubmitTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_submit_total",
				Help: "Total number of generation submissions",
			},
			[]string{"category", "result"}, // result: success/rejected/failed
		),
		SubmitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rapidl_submit_duration_seconds",
				Help:    "Duration of generation submissions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),

		// worker 指标
		ProcessTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_process_total",
				Help: "Total number of processed queue messages",
			},
			[]string{"result"}, // result: success/failed/retry/duplicate/cancelled/poison
		),
		ProcessDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rapidl_process_duration_seconds",
				Help:    "Duration of queue message processing",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ArtifactBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rapidl_artifact_bytes",
				Help:    "Size of uploaded artifacts after compression",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		// 生命周期指标
		JobDeleteTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_job_delete_total",
				Help: "Total number of job delete requests",
			},
			[]string{"status"}, // status: 删除请求到达时任务所处的状态
		),
		JobRetryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_job_retry_total",
				Help: "Total number of job retry requests",
			},
			[]string{"result"}, // result: success/rejected/failed
		),

		// 清理指标
		PurgeExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rapidl_purge_expired_total",
				Help: "Total number of expired grant purge runs",
			},
		),
		PurgedGrantsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rapidl_purged_grants_total",
				Help: "Total number of expired grant rows removed",
			},
		),

		// 分布式锁指标
		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapidl_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rapidl_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

// 全局指标实例
var defaultMetrics *GenerationMetrics

// InitMetrics 初始化全局指标
func InitMetrics() {
	defaultMetrics = NewGenerationMetrics()
}

// GetMetrics 获取全局指标实例
func GetMetrics() *GenerationMetrics {
	if defaultMetrics == nil {
		InitMetrics()
	}
	return defaultMetrics
}

package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/rabbitpom/rapidl-backend/internal/constants"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/generator"
	"github.com/rabbitpom/rapidl-backend/internal/metrics"
)

// Job 生成任务领域对象
type Job struct {
	ID          int64
	UserID      int64
	JobID       string
	Status      string
	CreatedAt   time.Time
	FinishedOn  *time.Time
	CreditsUsed int64
	Category    generator.Category
	Options     []generator.Option
	DisplayName string
}

// ClaimOutcome worker 认领任务的结果
type ClaimOutcome int

const (
	// ClaimAccepted 任务由 Waiting 置为 Working，应继续生成
	ClaimAccepted ClaimOutcome = iota
	// ClaimDuplicate 任务已经是 Working，另一个 worker 在处理，消息直接确认
	ClaimDuplicate
	// ClaimObsolete 任务已经是终态（Success/Failed），消息直接确认
	ClaimObsolete
	// ClaimCancelled 任务标记为 Deleting，应删除记录并返还额度
	ClaimCancelled
)

// RemoveOutcome 删除请求的处理结果
type RemoveOutcome int

const (
	// RemoveDone 记录已删除
	RemoveDone RemoveOutcome = iota
	// RemoveDeferred 任务还在队列中，已标记 Deleting 交由 worker 收尾
	RemoveDeferred
)

// JobMessage 投递到生成队列的消息体
type JobMessage struct {
	UserID    int64              `json:"user_id"`
	JobID     string             `json:"job_id"`
	Category  generator.Category `json:"gen_id"`
	Options   []generator.Option `json:"opts"`
	CreatedAt time.Time          `json:"created_at"`
}

// JobNotification 终态通知消息体
type JobNotification struct {
	UserID     int64     `json:"user_id"`
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	FinishedOn time.Time `json:"finished_on"`
}

// JobRepo 任务数据层接口（定义在 biz 层）
type JobRepo interface {
	// CreateJob 插入 Waiting 状态的任务记录
	CreateJob(ctx context.Context, job *Job) error
	// GetJob 按用户与任务号读取任务
	GetJob(ctx context.Context, userID int64, jobID string) (*Job, error)
	// GetJobs 批量读取任务状态
	GetJobs(ctx context.Context, userID int64, jobIDs []string) ([]*Job, error)
	// ListJobs 分页列出用户任务，按创建时间倒序
	ListJobs(ctx context.Context, userID int64, page, pageSize int) ([]*Job, int64, error)
	// UpdateDisplayName 重命名任务
	UpdateDisplayName(ctx context.Context, userID int64, jobID, displayName string) error
	// Claim worker 认领任务，串行化事务内行锁判定状态
	Claim(ctx context.Context, userID int64, jobID string) (ClaimOutcome, *Job, error)
	// Complete 把 Working 任务置为 Success 并记录完成时间
	Complete(ctx context.Context, userID int64, jobID string) error
	// Fail 把 Working 任务置为 Failed 并在同一事务内返还额度
	Fail(ctx context.Context, userID int64, jobID string, refundCredits int64, refundExpireAt time.Time) error
	// Cancel 删除 Deleting 状态的记录并在同一事务内返还额度
	Cancel(ctx context.Context, userID int64, jobID string, refundExpireAt time.Time) error
	// Remove 处理删除请求。Working 返回 JOB_LOCKED；Waiting 标记 Deleting；
	// 其余状态先执行 artifactDelete 再删除记录，artifactDelete 失败则回滚
	Remove(ctx context.Context, userID int64, jobID string, artifactDelete func(context.Context) error) (RemoveOutcome, string, error)
	// SetStatus 状态机受控流转，当前状态不等于 from 时返回 JOB_NOT_RETRYABLE
	SetStatus(ctx context.Context, userID int64, jobID, from, to string) error

	// SeedStatus 写入任务状态缓存
	SeedStatus(ctx context.Context, jobID, status string, ttl time.Duration) error
	// CachedStatus 读取任务状态缓存
	CachedStatus(ctx context.Context, jobID string) (string, bool, error)
	// DropStatus 删除任务状态缓存，幂等
	DropStatus(ctx context.Context, jobID string) error
}

// ArtifactStore 产物存储接口
type ArtifactStore interface {
	Put(ctx context.Context, jobID string, compressed []byte) error
	Get(ctx context.Context, jobID string) ([]byte, error)
	Delete(ctx context.Context, jobID string) error
}

// JobQueue 任务队列接口
type JobQueue interface {
	PublishJob(ctx context.Context, msg *JobMessage) error
	PublishNotify(ctx context.Context, msg *JobNotification) error
}

// SubmitResult 提交结果，余额快照用于响应头回写
type SubmitResult struct {
	JobID   string
	Balance *Balance
}

// JobContent 任务内容查询结果。只有 Success 状态才有产物
type JobContent struct {
	Status     string
	FinishedOn *time.Time
	// Artifact gzip 压缩的试卷字节，仅 Success 时非空
	Artifact []byte
}

// GenerationUseCase 生成任务业务逻辑
type GenerationUseCase struct {
	credits   *CreditUseCase
	jobs      JobRepo
	artifacts ArtifactStore
	queue     JobQueue
	config    *GenerateConfig
	log       *log.Helper
}

// NewGenerationUseCase 创建生成任务 UseCase
func NewGenerationUseCase(credits *CreditUseCase, jobs JobRepo, artifacts ArtifactStore, queue JobQueue, config *GenerateConfig, logger log.Logger) *GenerationUseCase {
	return &GenerationUseCase{
		credits:   credits,
		jobs:      jobs,
		artifacts: artifacts,
		queue:     queue,
		config:    config,
		log:       log.NewHelper(logger),
	}
}

// Submit 提交生成任务。扣减在前，之后每一步失败都把额度返还回去：
// 建表失败立即返还；缓存播种失败返还并放弃；投递失败返还并清掉缓存，
// 记录保留为 Waiting 以便排查。
func (uc *GenerationUseCase) Submit(ctx context.Context, userID int64, category generator.Category, options []generator.Option) (*SubmitResult, error) {
	start := time.Now()
	m := metrics.GetMetrics()

	if err := generator.ValidateChoices(category, options, uc.config.MaxChoices); err != nil {
		m.SubmitTotal.WithLabelValues(string(category), constants.ResultRejected).Inc()
		return nil, err
	}

	cost := int64(len(options))
	balance, err := uc.credits.Spend(ctx, userID, cost)
	if err != nil {
		result := constants.ResultFailed
		if appErrors.IsInsufficientCredits(err) {
			result = constants.ResultRejected
		}
		if appErrors.IsCacheWriteFailed(err) {
			// 扣减已落库，只是缓存失效失败。没有任务可以交付，把额度还回去
			uc.refund(ctx, userID, cost, "submit_failed")
		}
		m.SubmitTotal.WithLabelValues(string(category), result).Inc()
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		UserID:      userID,
		JobID:       uuid.New().String(),
		Status:      constants.JobStatusWaiting,
		CreatedAt:   now,
		CreditsUsed: cost,
		Category:    category,
		Options:     options,
		DisplayName: string(category),
	}

	if err := uc.jobs.CreateJob(ctx, job); err != nil {
		uc.refund(ctx, userID, cost, "submit_failed")
		m.SubmitTotal.WithLabelValues(string(category), constants.ResultFailed).Inc()
		return nil, err
	}

	if err := uc.jobs.SeedStatus(ctx, job.JobID, constants.JobStatusWorking, uc.config.StatusTTL(constants.JobStatusWorking)); err != nil {
		uc.refund(ctx, userID, cost, "submit_failed")
		m.SubmitTotal.WithLabelValues(string(category), constants.ResultFailed).Inc()
		return nil, err
	}

	msg := &JobMessage{
		UserID:    userID,
		JobID:     job.JobID,
		Category:  category,
		Options:   options,
		CreatedAt: now,
	}
	if err := uc.queue.PublishJob(ctx, msg); err != nil {
		uc.refund(ctx, userID, cost, "submit_failed")
		if dropErr := uc.jobs.DropStatus(ctx, job.JobID); dropErr != nil {
			uc.log.WithContext(ctx).Errorf("drop status cache for %s after publish failure: %v", job.JobID, dropErr)
		}
		m.SubmitTotal.WithLabelValues(string(category), constants.ResultFailed).Inc()
		return nil, err
	}

	m.SubmitTotal.WithLabelValues(string(category), constants.ResultSuccess).Inc()
	m.SubmitDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
	return &SubmitResult{JobID: job.JobID, Balance: balance}, nil
}

// GetContent 查询任务内容。缓存命中的非 Success 状态直接短路，
// 不访问数据库；Success 需要回表拿完成时间并下载产物。
func (uc *GenerationUseCase) GetContent(ctx context.Context, userID int64, jobID string) (*JobContent, error) {
	status, hit, err := uc.jobs.CachedStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if hit && status != constants.JobStatusSuccess {
		return &JobContent{Status: status}, nil
	}

	job, err := uc.jobs.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusSuccess {
		return &JobContent{Status: job.Status, FinishedOn: job.FinishedOn}, nil
	}
	if job.FinishedOn == nil {
		return nil, appErrors.ErrJobCorrupt("job %s is Success without a finish time", jobID)
	}

	artifact, err := uc.artifacts.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobContent{
		Status:     job.Status,
		FinishedOn: job.FinishedOn,
		Artifact:   artifact,
	}, nil
}

// GetBatchStatus 批量查询任务状态
func (uc *GenerationUseCase) GetBatchStatus(ctx context.Context, userID int64, jobIDs []string) ([]*Job, error) {
	if len(jobIDs) == 0 {
		return nil, appErrors.ErrInvalidChoices("at least one job id is required")
	}
	if len(jobIDs) > constants.MaxBatchStatusIDs {
		return nil, appErrors.ErrInvalidChoices("at most %d job ids per batch, got %d", constants.MaxBatchStatusIDs, len(jobIDs))
	}
	return uc.jobs.GetJobs(ctx, userID, jobIDs)
}

// List 分页列出任务
func (uc *GenerationUseCase) List(ctx context.Context, userID int64, page, pageSize int) ([]*Job, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.jobs.ListJobs(ctx, userID, page, pageSize)
}

// Rename 重命名任务
func (uc *GenerationUseCase) Rename(ctx context.Context, userID int64, jobID, displayName string) error {
	if displayName == "" {
		return appErrors.ErrInvalidChoices("display name must not be empty")
	}
	return uc.jobs.UpdateDisplayName(ctx, userID, jobID, displayName)
}

// Delete 删除任务。Working 拒绝；Waiting 标记 Deleting 由 worker 收尾；
// 终态删除产物与记录。最后尽力清掉状态缓存。
func (uc *GenerationUseCase) Delete(ctx context.Context, userID int64, jobID string) error {
	outcome, status, err := uc.jobs.Remove(ctx, userID, jobID, func(ctx context.Context) error {
		return uc.artifacts.Delete(ctx, jobID)
	})
	if err != nil {
		return err
	}
	metrics.GetMetrics().JobDeleteTotal.WithLabelValues(status).Inc()

	if outcome == RemoveDone {
		if dropErr := uc.jobs.DropStatus(ctx, jobID); dropErr != nil {
			uc.log.WithContext(ctx).Warnf("drop status cache for deleted job %s: %v", jobID, dropErr)
		}
	}
	return nil
}

// Retry 重试失败任务。重试是一次新的消费：先重新扣减原先的额度，
// 再把 Failed 翻回 Waiting 并重新投递。任何一步失败都把额度退回，
// 投递失败还要尽力把状态翻回 Failed。
func (uc *GenerationUseCase) Retry(ctx context.Context, userID int64, jobID string) (*SubmitResult, error) {
	m := metrics.GetMetrics()

	job, err := uc.jobs.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusFailed {
		m.JobRetryTotal.WithLabelValues(constants.ResultRejected).Inc()
		return nil, appErrors.ErrJobNotRetryable("job %s is %s, only Failed jobs can be retried", jobID, job.Status)
	}

	balance, err := uc.credits.Spend(ctx, userID, job.CreditsUsed)
	if err != nil {
		result := constants.ResultFailed
		if appErrors.IsInsufficientCredits(err) {
			result = constants.ResultRejected
		}
		if appErrors.IsCacheWriteFailed(err) {
			// 扣减已落库，任务还停在 Failed，补偿返还
			uc.refund(ctx, userID, job.CreditsUsed, "retry_failed")
		}
		m.JobRetryTotal.WithLabelValues(result).Inc()
		return nil, err
	}

	if err := uc.jobs.SetStatus(ctx, userID, jobID, constants.JobStatusFailed, constants.JobStatusWaiting); err != nil {
		uc.refund(ctx, userID, job.CreditsUsed, "retry_failed")
		m.JobRetryTotal.WithLabelValues(constants.ResultFailed).Inc()
		return nil, err
	}

	msg := &JobMessage{
		UserID:    userID,
		JobID:     jobID,
		Category:  job.Category,
		Options:   job.Options,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishJob(ctx, msg); err != nil {
		uc.refund(ctx, userID, job.CreditsUsed, "retry_failed")
		if revertErr := uc.jobs.SetStatus(ctx, userID, jobID, constants.JobStatusWaiting, constants.JobStatusFailed); revertErr != nil {
			uc.log.WithContext(ctx).Errorf("revert job %s to Failed after publish failure: %v", jobID, revertErr)
		}
		m.JobRetryTotal.WithLabelValues(constants.ResultFailed).Inc()
		return nil, err
	}

	if seedErr := uc.jobs.SeedStatus(ctx, jobID, constants.JobStatusWorking, uc.config.StatusTTL(constants.JobStatusWorking)); seedErr != nil {
		uc.log.WithContext(ctx).Warnf("seed status cache for retried job %s: %v", jobID, seedErr)
	}
	m.JobRetryTotal.WithLabelValues(constants.ResultSuccess).Inc()
	return &SubmitResult{JobID: jobID, Balance: balance}, nil
}

func (uc *GenerationUseCase) refund(ctx context.Context, userID, credits int64, reason string) {
	if err := uc.credits.Refund(ctx, userID, credits, reason); err != nil {
		uc.log.WithContext(ctx).Errorf("refund failed, user %d is out %d credits (%s): %v", userID, credits, reason, err)
	}
}

package biz

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/constants"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/generator"
	"github.com/rabbitpom/rapidl-backend/internal/metrics"
)

// ProcessResult 队列消息的处理结论
type ProcessResult int

const (
	// ProcessAck 消息处理完毕（成功、终态失败或毒消息），确认出队
	ProcessAck ProcessResult = iota
	// ProcessRetry 基础设施暂时不可用，消息留在队列稍后重投
	ProcessRetry
)

// WorkerUseCase 生成 worker 业务逻辑
type WorkerUseCase struct {
	credits   *CreditUseCase
	jobs      JobRepo
	artifacts ArtifactStore
	queue     JobQueue
	config    *GenerateConfig
	log       *log.Helper
}

// NewWorkerUseCase 创建 worker UseCase
func NewWorkerUseCase(credits *CreditUseCase, jobs JobRepo, artifacts ArtifactStore, queue JobQueue, config *GenerateConfig, logger log.Logger) *WorkerUseCase {
	return &WorkerUseCase{
		credits:   credits,
		jobs:      jobs,
		artifacts: artifacts,
		queue:     queue,
		config:    config,
		log:       log.NewHelper(logger),
	}
}

// Process 处理一条生成消息。只有瞬时基础设施错误返回 ProcessRetry，
// 其余情况一律确认出队，避免毒消息无限重投。
func (uc *WorkerUseCase) Process(ctx context.Context, body []byte) ProcessResult {
	start := time.Now()
	m := metrics.GetMetrics()
	defer func() {
		m.ProcessDuration.Observe(time.Since(start).Seconds())
	}()

	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		uc.log.WithContext(ctx).Errorf("poison message dropped: %v, body: %s", err, string(body))
		m.ProcessTotal.WithLabelValues("poison").Inc()
		return ProcessAck
	}
	if msg.JobID == "" || msg.UserID == 0 {
		uc.log.WithContext(ctx).Errorf("poison message dropped, missing identity: %s", string(body))
		m.ProcessTotal.WithLabelValues("poison").Inc()
		return ProcessAck
	}

	outcome, job, err := uc.jobs.Claim(ctx, msg.UserID, msg.JobID)
	if err != nil {
		if appErrors.IsJobNotFound(err) {
			// 记录已经没了，消息不再有意义
			m.ProcessTotal.WithLabelValues("cancelled").Inc()
			return ProcessAck
		}
		uc.log.WithContext(ctx).Errorf("claim job %s: %v", msg.JobID, err)
		m.ProcessTotal.WithLabelValues(constants.ResultRetry).Inc()
		return ProcessRetry
	}

	switch outcome {
	case ClaimDuplicate:
		m.ProcessTotal.WithLabelValues("duplicate").Inc()
		return ProcessAck
	case ClaimObsolete:
		m.ProcessTotal.WithLabelValues("duplicate").Inc()
		return ProcessAck
	case ClaimCancelled:
		return uc.cancel(ctx, &msg)
	}

	return uc.generate(ctx, &msg, job)
}

// cancel 用户在消息出队前请求了删除，删掉记录并返还额度
func (uc *WorkerUseCase) cancel(ctx context.Context, msg *JobMessage) ProcessResult {
	m := metrics.GetMetrics()
	refundExpiry := time.Now().UTC().Add(uc.config.CreditValidity)
	if err := uc.jobs.Cancel(ctx, msg.UserID, msg.JobID, refundExpiry); err != nil {
		uc.log.WithContext(ctx).Errorf("cancel job %s: %v", msg.JobID, err)
		m.ProcessTotal.WithLabelValues(constants.ResultRetry).Inc()
		return ProcessRetry
	}
	m.RefundTotal.WithLabelValues("job_cancelled").Inc()
	// 退款行随删除事务落库，余额缓存必须跟着失效。
	// 失效失败只能记日志：重投会命中 ClaimObsolete 直接确认，补救不到这里
	if err := uc.credits.InvalidateBalance(ctx, msg.UserID); err != nil {
		uc.log.WithContext(ctx).Errorf("invalidate balance cache for user %d: %v", msg.UserID, err)
	}
	if err := uc.jobs.DropStatus(ctx, msg.JobID); err != nil {
		uc.log.WithContext(ctx).Warnf("drop status cache for cancelled job %s: %v", msg.JobID, err)
	}
	m.ProcessTotal.WithLabelValues("cancelled").Inc()
	return ProcessAck
}

func (uc *WorkerUseCase) generate(ctx context.Context, msg *JobMessage, job *Job) ProcessResult {
	m := metrics.GetMetrics()

	paper := generator.NewPaper(msg.UserID, msg.Category, msg.Options)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := paper.Populate(r); err != nil {
		// 选题没有引擎属于终态失败，标记 Failed 并返还额度
		uc.log.WithContext(ctx).Errorf("generate job %s: %v", msg.JobID, err)
		return uc.fail(ctx, msg, job)
	}

	compressed, err := encodePaper(paper)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("encode job %s: %v", msg.JobID, err)
		return uc.fail(ctx, msg, job)
	}

	if err := uc.artifacts.Put(ctx, msg.JobID, compressed); err != nil {
		uc.log.WithContext(ctx).Errorf("upload artifact for job %s: %v", msg.JobID, err)
		m.ProcessTotal.WithLabelValues(constants.ResultRetry).Inc()
		return ProcessRetry
	}
	m.ArtifactBytes.Observe(float64(len(compressed)))

	if err := uc.jobs.Complete(ctx, msg.UserID, msg.JobID); err != nil {
		uc.log.WithContext(ctx).Errorf("complete job %s: %v", msg.JobID, err)
		m.ProcessTotal.WithLabelValues(constants.ResultRetry).Inc()
		return ProcessRetry
	}

	if err := uc.jobs.SeedStatus(ctx, msg.JobID, constants.JobStatusSuccess, uc.config.StatusTTL(constants.JobStatusSuccess)); err != nil {
		uc.log.WithContext(ctx).Warnf("seed status cache for job %s: %v", msg.JobID, err)
	}
	uc.notify(ctx, msg.UserID, msg.JobID, constants.JobStatusSuccess)

	m.ProcessTotal.WithLabelValues(constants.ResultSuccess).Inc()
	return ProcessAck
}

// fail 终态失败：Failed 落库并返还额度，失败状态短期缓存
func (uc *WorkerUseCase) fail(ctx context.Context, msg *JobMessage, job *Job) ProcessResult {
	m := metrics.GetMetrics()
	refundExpiry := time.Now().UTC().Add(uc.config.CreditValidity)
	if err := uc.jobs.Fail(ctx, msg.UserID, msg.JobID, job.CreditsUsed, refundExpiry); err != nil {
		uc.log.WithContext(ctx).Errorf("mark job %s failed: %v", msg.JobID, err)
		m.ProcessTotal.WithLabelValues(constants.ResultRetry).Inc()
		return ProcessRetry
	}
	m.RefundTotal.WithLabelValues("job_failed").Inc()
	// 退款行随失败事务落库，余额缓存必须跟着失效
	if err := uc.credits.InvalidateBalance(ctx, msg.UserID); err != nil {
		uc.log.WithContext(ctx).Errorf("invalidate balance cache for user %d: %v", msg.UserID, err)
	}

	if err := uc.jobs.SeedStatus(ctx, msg.JobID, constants.JobStatusFailed, uc.config.StatusTTL(constants.JobStatusFailed)); err != nil {
		uc.log.WithContext(ctx).Warnf("seed status cache for failed job %s: %v", msg.JobID, err)
	}
	uc.notify(ctx, msg.UserID, msg.JobID, constants.JobStatusFailed)

	m.ProcessTotal.WithLabelValues(constants.ResultFailed).Inc()
	return ProcessAck
}

// notify 终态通知，尽力而为
func (uc *WorkerUseCase) notify(ctx context.Context, userID int64, jobID, status string) {
	n := &JobNotification{
		UserID:     userID,
		JobID:      jobID,
		Status:     status,
		FinishedOn: time.Now().UTC(),
	}
	if err := uc.queue.PublishNotify(ctx, n); err != nil {
		uc.log.WithContext(ctx).Warnf("notify for job %s: %v", jobID, err)
	}
}

// encodePaper 序列化并压缩试卷
func encodePaper(paper *generator.Paper) ([]byte, error) {
	raw, err := json.Marshal(paper)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	"github.com/rabbitpom/rapidl-backend/internal/constants"
	"github.com/rabbitpom/rapidl-backend/internal/data/model"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/generator"
)

// jobRepo 任务数据访问
type jobRepo struct {
	data *Data
	log  *log.Helper
}

// NewJobRepo 创建任务 repo（返回 biz.JobRepo 接口）
func NewJobRepo(data *Data, logger log.Logger) biz.JobRepo {
	return &jobRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toJobModel(job *biz.Job) *model.GenerationJob {
	return &model.GenerationJob{
		ID:          job.ID,
		UserID:      job.UserID,
		JobID:       job.JobID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		FinishedOn:  job.FinishedOn,
		CreditsUsed: job.CreditsUsed,
		Category:    string(job.Category),
		Options:     generator.JoinOptions(job.Options),
		DisplayName: job.DisplayName,
	}
}

func toBizJob(m *model.GenerationJob) (*biz.Job, error) {
	options, err := generator.ParseOptions(m.Options)
	if err != nil {
		return nil, appErrors.ErrJobCorrupt("job %s has unparsable options '%s'", m.JobID, m.Options)
	}
	return &biz.Job{
		ID:          m.ID,
		UserID:      m.UserID,
		JobID:       m.JobID,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		FinishedOn:  m.FinishedOn,
		CreditsUsed: m.CreditsUsed,
		Category:    generator.Category(m.Category),
		Options:     options,
		DisplayName: m.DisplayName,
	}, nil
}

// CreateJob 插入任务记录
func (r *jobRepo) CreateJob(ctx context.Context, job *biz.Job) error {
	m := toJobModel(job)
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		r.log.Errorf("CreateJob failed: jobID=%s, error=%v", job.JobID, err)
		return appErrors.ErrJobStoreUnavailable("insert job: %v", err)
	}
	job.ID = m.ID
	return nil
}

// GetJob 按用户与任务号读取任务
func (r *jobRepo) GetJob(ctx context.Context, userID int64, jobID string) (*biz.Job, error) {
	var m model.GenerationJob
	err := r.data.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrJobNotFound("job %s not found", jobID)
		}
		r.log.Errorf("GetJob failed: jobID=%s, error=%v", jobID, err)
		return nil, appErrors.ErrJobStoreUnavailable("query job: %v", err)
	}
	return toBizJob(&m)
}

// GetJobs 批量读取任务
func (r *jobRepo) GetJobs(ctx context.Context, userID int64, jobIDs []string) ([]*biz.Job, error) {
	var ms []model.GenerationJob
	err := r.data.db.WithContext(ctx).
		Where("user_id = ? AND job_id IN ?", userID, jobIDs).
		Find(&ms).Error
	if err != nil {
		r.log.Errorf("GetJobs failed: userID=%d, error=%v", userID, err)
		return nil, appErrors.ErrJobStoreUnavailable("query jobs: %v", err)
	}
	jobs := make([]*biz.Job, 0, len(ms))
	for i := range ms {
		job, err := toBizJob(&ms[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListJobs 分页列出任务，创建时间倒序
func (r *jobRepo) ListJobs(ctx context.Context, userID int64, page, pageSize int) ([]*biz.Job, int64, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, appErrors.ErrJobStoreUnavailable("count jobs: %v", err)
	}

	var ms []model.GenerationJob
	err := r.data.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&ms).Error
	if err != nil {
		return nil, 0, appErrors.ErrJobStoreUnavailable("list jobs: %v", err)
	}

	jobs := make([]*biz.Job, 0, len(ms))
	for i := range ms {
		job, err := toBizJob(&ms[i])
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, nil
}

// UpdateDisplayName 重命名任务
func (r *jobRepo) UpdateDisplayName(ctx context.Context, userID int64, jobID, displayName string) error {
	result := r.data.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Update("display_name", displayName)
	if result.Error != nil {
		return appErrors.ErrJobStoreUnavailable("rename job: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrJobNotFound("job %s not found", jobID)
	}
	return nil
}

// Claim worker 认领任务。串行化事务加行锁后按当前状态裁决，
// 只有 Waiting 会被翻成 Working。
func (r *jobRepo) Claim(ctx context.Context, userID int64, jobID string) (biz.ClaimOutcome, *biz.Job, error) {
	var outcome biz.ClaimOutcome
	var claimed *biz.Job

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.GenerationJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND job_id = ?", userID, jobID).
			First(&m).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErrors.ErrJobNotFound("job %s not found", jobID)
			}
			return appErrors.ErrJobStoreUnavailable("lock job: %v", err)
		}

		job, err := toBizJob(&m)
		if err != nil {
			return err
		}
		claimed = job

		switch m.Status {
		case constants.JobStatusWorking:
			outcome = biz.ClaimDuplicate
			return nil
		case constants.JobStatusSuccess, constants.JobStatusFailed:
			outcome = biz.ClaimObsolete
			return nil
		case constants.JobStatusDeleting:
			outcome = biz.ClaimCancelled
			return nil
		case constants.JobStatusWaiting:
			if err := tx.Model(&model.GenerationJob{}).
				Where("id = ?", m.ID).
				Update("status", constants.JobStatusWorking).Error; err != nil {
				return appErrors.ErrJobStoreUnavailable("claim job: %v", err)
			}
			outcome = biz.ClaimAccepted
			return nil
		default:
			return appErrors.ErrJobCorrupt("job %s has unknown status '%s'", jobID, m.Status)
		}
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, nil, err
	}
	return outcome, claimed, nil
}

// successColumns Success 落库的列集合，finished_on 只随 Success 写入
func successColumns(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":      constants.JobStatusSuccess,
		"finished_on": now,
	}
}

// failedColumns Failed 落库的列集合，不碰 finished_on
func failedColumns() map[string]interface{} {
	return map[string]interface{}{
		"status": constants.JobStatusFailed,
	}
}

// Complete 把 Working 任务置为 Success
func (r *jobRepo) Complete(ctx context.Context, userID int64, jobID string) error {
	now := time.Now().UTC()
	result := r.data.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("user_id = ? AND job_id = ? AND status = ?", userID, jobID, constants.JobStatusWorking).
		Updates(successColumns(now))
	if result.Error != nil {
		return appErrors.ErrJobStoreUnavailable("complete job: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrJobNotFound("job %s is not Working", jobID)
	}
	return nil
}

// Fail 把 Working 任务置为 Failed，同一事务内返还额度，
// 保证失败与退款恰好一次配对
func (r *jobRepo) Fail(ctx context.Context, userID int64, jobID string, refundCredits int64, refundExpireAt time.Time) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.GenerationJob{}).
			Where("user_id = ? AND job_id = ? AND status = ?", userID, jobID, constants.JobStatusWorking).
			Updates(failedColumns())
		if result.Error != nil {
			return appErrors.ErrJobStoreUnavailable("fail job: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return appErrors.ErrJobNotFound("job %s is not Working", jobID)
		}
		if refundCredits > 0 {
			refund := &model.CreditGrant{
				UserID:   userID,
				Credits:  refundCredits,
				ExpireAt: refundExpireAt.UTC(),
			}
			if err := tx.Create(refund).Error; err != nil {
				return appErrors.ErrJobStoreUnavailable("insert refund grant: %v", err)
			}
		}
		return nil
	})
}

// Cancel 删除 Deleting 状态的记录并返还额度，同一事务保证恰好一次
func (r *jobRepo) Cancel(ctx context.Context, userID int64, jobID string, refundExpireAt time.Time) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.GenerationJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND job_id = ? AND status = ?", userID, jobID, constants.JobStatusDeleting).
			First(&m).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 已经被别的路径收尾，幂等返回
				return nil
			}
			return appErrors.ErrJobStoreUnavailable("lock cancelled job: %v", err)
		}

		if err := tx.Delete(&model.GenerationJob{}, "id = ?", m.ID).Error; err != nil {
			return appErrors.ErrJobStoreUnavailable("delete cancelled job: %v", err)
		}
		if m.CreditsUsed > 0 {
			refund := &model.CreditGrant{
				UserID:   userID,
				Credits:  m.CreditsUsed,
				ExpireAt: refundExpireAt.UTC(),
			}
			if err := tx.Create(refund).Error; err != nil {
				return appErrors.ErrJobStoreUnavailable("insert refund grant: %v", err)
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// Remove 处理用户删除请求，按锁内状态分流
func (r *jobRepo) Remove(ctx context.Context, userID int64, jobID string, artifactDelete func(context.Context) error) (biz.RemoveOutcome, string, error) {
	var outcome biz.RemoveOutcome
	var status string

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.GenerationJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND job_id = ?", userID, jobID).
			First(&m).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErrors.ErrJobNotFound("job %s not found", jobID)
			}
			return appErrors.ErrJobStoreUnavailable("lock job: %v", err)
		}
		status = m.Status

		switch m.Status {
		case constants.JobStatusWorking:
			return appErrors.ErrJobLocked("job %s is being generated", jobID)
		case constants.JobStatusWaiting:
			if err := tx.Model(&model.GenerationJob{}).
				Where("id = ?", m.ID).
				Update("status", constants.JobStatusDeleting).Error; err != nil {
				return appErrors.ErrJobStoreUnavailable("mark job deleting: %v", err)
			}
			outcome = biz.RemoveDeferred
			return nil
		case constants.JobStatusSuccess:
			// 先删产物，失败则整个事务回滚，记录保留
			if err := artifactDelete(ctx); err != nil {
				return err
			}
			fallthrough
		case constants.JobStatusFailed, constants.JobStatusDeleting:
			if err := tx.Delete(&model.GenerationJob{}, "id = ?", m.ID).Error; err != nil {
				return appErrors.ErrJobStoreUnavailable("delete job: %v", err)
			}
			outcome = biz.RemoveDone
			return nil
		default:
			return appErrors.ErrJobCorrupt("job %s has unknown status '%s'", jobID, m.Status)
		}
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, status, err
	}
	return outcome, status, nil
}

// SetStatus 受控状态流转，当前状态必须等于 from
func (r *jobRepo) SetStatus(ctx context.Context, userID int64, jobID, from, to string) error {
	result := r.data.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("user_id = ? AND job_id = ? AND status = ?", userID, jobID, from).
		Update("status", to)
	if result.Error != nil {
		return appErrors.ErrJobStoreUnavailable("set job status: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrJobNotRetryable("job %s is not %s", jobID, from)
	}
	return nil
}

// SeedStatus 写入任务状态缓存
func (r *jobRepo) SeedStatus(ctx context.Context, jobID, status string, ttl time.Duration) error {
	key := fmt.Sprintf(constants.RedisKeyJobStatusFmt, jobID)
	if err := r.data.rdb.Set(ctx, key, status, ttl).Err(); err != nil {
		r.log.Errorf("seed status cache failed: jobID=%s, error=%v", jobID, err)
		return appErrors.ErrCacheWriteFailed("seed status cache: %v", err)
	}
	return nil
}

// CachedStatus 读取任务状态缓存
func (r *jobRepo) CachedStatus(ctx context.Context, jobID string) (string, bool, error) {
	key := fmt.Sprintf(constants.RedisKeyJobStatusFmt, jobID)
	status, err := r.data.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, appErrors.ErrCacheWriteFailed("read status cache: %v", err)
	}
	return status, true, nil
}

// DropStatus 删除任务状态缓存
func (r *jobRepo) DropStatus(ctx context.Context, jobID string) error {
	key := fmt.Sprintf(constants.RedisKeyJobStatusFmt, jobID)
	if err := r.data.rdb.Del(ctx, key).Err(); err != nil {
		return appErrors.ErrCacheWriteFailed("drop status cache: %v", err)
	}
	return nil
}

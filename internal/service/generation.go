package service

import (
	"context"
	"encoding/base64"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/generator"
)

// SubmitRequest 提交生成请求
type SubmitRequest struct {
	Category string   `json:"category"`
	Options  []string `json:"options"`
}

// SubmitReply 提交生成响应，余额快照由 HTTP 层写进响应头
type SubmitReply struct {
	JobID   string       `json:"job_id"`
	Balance *biz.Balance `json:"-"`
}

// JobStatusReply 单个任务状态
type JobStatusReply struct {
	JobID       string   `json:"job_id"`
	Status      string   `json:"status"`
	CreatedAt   int64    `json:"created_at"`
	FinishedOn  int64    `json:"finished_on,omitempty"`
	CreditsUsed int64    `json:"credits_used"`
	Category    string   `json:"category"`
	Options     []string `json:"options"`
	DisplayName string   `json:"display_name"`
}

// ContentReply 任务内容响应。Content 为 base64 编码的 gzip 试卷，
// 仅 Success 时非空
type ContentReply struct {
	Status     string `json:"status"`
	FinishedOn int64  `json:"finished_on,omitempty"`
	Content    string `json:"content,omitempty"`
}

// ListReply 任务列表响应
type ListReply struct {
	Jobs  []*JobStatusReply `json:"jobs"`
	Total int64             `json:"total"`
}

// RenameRequest 重命名请求
type RenameRequest struct {
	JobID       string `json:"job_id"`
	DisplayName string `json:"display_name"`
}

// GenerationService 生成任务服务
type GenerationService struct {
	uc  *biz.GenerationUseCase
	log *log.Helper
}

// NewGenerationService 创建 GenerationService
func NewGenerationService(uc *biz.GenerationUseCase, logger log.Logger) *GenerationService {
	return &GenerationService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

func toJobStatusReply(job *biz.Job) *JobStatusReply {
	reply := &JobStatusReply{
		JobID:       job.JobID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt.Unix(),
		CreditsUsed: job.CreditsUsed,
		Category:    string(job.Category),
		DisplayName: job.DisplayName,
	}
	for _, o := range job.Options {
		reply.Options = append(reply.Options, string(o))
	}
	if job.FinishedOn != nil {
		reply.FinishedOn = job.FinishedOn.Unix()
	}
	return reply
}

// Submit 提交生成任务
func (s *GenerationService) Submit(ctx context.Context, userID int64, req *SubmitRequest) (*SubmitReply, error) {
	category, err := generator.ParseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	options := make([]generator.Option, 0, len(req.Options))
	for _, raw := range req.Options {
		o, err := generator.ParseOption(raw)
		if err != nil {
			return nil, err
		}
		options = append(options, o)
	}

	result, err := s.uc.Submit(ctx, userID, category, options)
	if err != nil {
		s.log.Errorf("Submit failed: %v", err)
		return nil, err
	}
	return &SubmitReply{JobID: result.JobID, Balance: result.Balance}, nil
}

// GetContent 读取任务内容
func (s *GenerationService) GetContent(ctx context.Context, userID int64, jobID string) (*ContentReply, error) {
	if jobID == "" {
		return nil, appErrors.ErrJobNotFound("job id is required")
	}
	content, err := s.uc.GetContent(ctx, userID, jobID)
	if err != nil {
		s.log.Errorf("GetContent failed: %v", err)
		return nil, err
	}
	reply := &ContentReply{Status: content.Status}
	if content.FinishedOn != nil {
		reply.FinishedOn = content.FinishedOn.Unix()
	}
	if len(content.Artifact) > 0 {
		reply.Content = base64.StdEncoding.EncodeToString(content.Artifact)
	}
	return reply, nil
}

// GetBatchStatus 批量查询任务状态
func (s *GenerationService) GetBatchStatus(ctx context.Context, userID int64, jobIDs []string) ([]*JobStatusReply, error) {
	jobs, err := s.uc.GetBatchStatus(ctx, userID, jobIDs)
	if err != nil {
		return nil, err
	}
	replies := make([]*JobStatusReply, 0, len(jobs))
	for _, job := range jobs {
		replies = append(replies, toJobStatusReply(job))
	}
	return replies, nil
}

// List 分页列出任务
func (s *GenerationService) List(ctx context.Context, userID int64, page, pageSize int) (*ListReply, error) {
	jobs, total, err := s.uc.List(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	reply := &ListReply{Total: total, Jobs: make([]*JobStatusReply, 0, len(jobs))}
	for _, job := range jobs {
		reply.Jobs = append(reply.Jobs, toJobStatusReply(job))
	}
	return reply, nil
}

// Rename 重命名任务
func (s *GenerationService) Rename(ctx context.Context, userID int64, req *RenameRequest) error {
	return s.uc.Rename(ctx, userID, req.JobID, req.DisplayName)
}

// Delete 删除任务
func (s *GenerationService) Delete(ctx context.Context, userID int64, jobID string) error {
	if jobID == "" {
		return appErrors.ErrJobNotFound("job id is required")
	}
	return s.uc.Delete(ctx, userID, jobID)
}

// Retry 重试失败任务
func (s *GenerationService) Retry(ctx context.Context, userID int64, jobID string) (*SubmitReply, error) {
	if jobID == "" {
		return nil, appErrors.ErrJobNotFound("job id is required")
	}
	result, err := s.uc.Retry(ctx, userID, jobID)
	if err != nil {
		s.log.Errorf("Retry failed: %v", err)
		return nil, err
	}
	return &SubmitReply{JobID: result.JobID, Balance: result.Balance}, nil
}

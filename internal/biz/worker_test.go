package biz

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rabbitpom/rapidl-backend/internal/constants"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/generator"
)

func newWorkerFixture() (*WorkerUseCase, *MockCreditRepo, *MockJobRepo, *MockArtifactStore, *MockJobQueue) {
	creditRepo := &MockCreditRepo{}
	jobRepo := &MockJobRepo{}
	artifacts := &MockArtifactStore{}
	queue := &MockJobQueue{}
	config := testConfig()
	logger := log.NewStdLogger(testWriter{})
	credits := NewCreditUseCase(creditRepo, config, logger)
	uc := NewWorkerUseCase(credits, jobRepo, artifacts, queue, config, logger)
	return uc, creditRepo, jobRepo, artifacts, queue
}

func messageBody(t *testing.T, msg *JobMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestProcessPoisonMessageIsAcked(t *testing.T) {
	uc, _, jobRepo, _, _ := newWorkerFixture()

	assert.Equal(t, ProcessAck, uc.Process(context.Background(), []byte("not json")))
	assert.Equal(t, ProcessAck, uc.Process(context.Background(), []byte(`{"user_id":0}`)))
	jobRepo.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessHappyPath(t *testing.T) {
	uc, _, jobRepo, artifacts, queue := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:    101,
		JobID:     "job-1",
		Category:  generator.MathsMechanics,
		Options:   []generator.Option{generator.SUVAT},
		CreatedAt: time.Now().UTC(),
	}
	job := &Job{UserID: 101, JobID: "job-1", Status: constants.JobStatusWaiting, CreditsUsed: 1}

	jobRepo.On("Claim", ctx, int64(101), "job-1").Return(ClaimAccepted, job, nil)
	artifacts.On("Put", ctx, "job-1", mock.AnythingOfType("[]uint8")).Return(nil)
	jobRepo.On("Complete", ctx, int64(101), "job-1").Return(nil)
	jobRepo.On("SeedStatus", ctx, "job-1", constants.JobStatusSuccess, 240*time.Second).Return(nil)
	queue.On("PublishNotify", ctx, mock.Anything).Return(nil)

	assert.Equal(t, ProcessAck, uc.Process(ctx, messageBody(t, msg)))

	// 上传的产物必须是合法的 gzip JSON 试卷
	uploaded := artifacts.Calls[0].Arguments.Get(2).([]byte)
	zr, err := gzip.NewReader(bytes.NewReader(uploaded))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	var paper generator.Paper
	require.NoError(t, json.Unmarshal(raw, &paper))
	assert.Equal(t, generator.MathsMechanics, paper.Category)
	assert.NotEmpty(t, paper.Questions)
}

func TestProcessUnsupportedOptionFailsTerminally(t *testing.T) {
	uc, creditRepo, jobRepo, artifacts, queue := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsMechanics,
		Options:  []generator.Option{generator.Pullies},
	}
	job := &Job{UserID: 101, JobID: "job-1", CreditsUsed: 1}

	jobRepo.On("Claim", ctx, int64(101), "job-1").Return(ClaimAccepted, job, nil)
	jobRepo.On("Fail", ctx, int64(101), "job-1", int64(1), mock.AnythingOfType("time.Time")).Return(nil)
	creditRepo.On("InvalidateBalance", ctx, int64(101)).Return(nil)
	jobRepo.On("SeedStatus", ctx, "job-1", constants.JobStatusFailed, 120*time.Second).Return(nil)
	queue.On("PublishNotify", ctx, mock.Anything).Return(nil)

	assert.Equal(t, ProcessAck, uc.Process(ctx, messageBody(t, msg)))
	jobRepo.AssertCalled(t, "Fail", ctx, int64(101), "job-1", int64(1), mock.AnythingOfType("time.Time"))
	// 退款行在失败事务里落库，余额缓存必须跟着失效
	creditRepo.AssertCalled(t, "InvalidateBalance", ctx, int64(101))
	artifacts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessFailedJobKeepsAckOnCacheInvalidationFailure(t *testing.T) {
	uc, creditRepo, jobRepo, _, queue := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsMechanics,
		Options:  []generator.Option{generator.Pullies},
	}
	job := &Job{UserID: 101, JobID: "job-1", CreditsUsed: 1}

	jobRepo.On("Claim", ctx, int64(101), "job-1").Return(ClaimAccepted, job, nil)
	jobRepo.On("Fail", ctx, int64(101), "job-1", int64(1), mock.AnythingOfType("time.Time")).Return(nil)
	creditRepo.On("InvalidateBalance", ctx, int64(101)).
		Return(appErrors.ErrCacheWriteFailed("drop balance cache: redis down"))
	jobRepo.On("SeedStatus", ctx, "job-1", constants.JobStatusFailed, 120*time.Second).Return(nil)
	queue.On("PublishNotify", ctx, mock.Anything).Return(nil)

	// 退款已落库，缓存过期兜底，重投只会命中 ClaimObsolete，所以仍然确认
	assert.Equal(t, ProcessAck, uc.Process(ctx, messageBody(t, msg)))
}

func TestProcessNoCacheInvalidationWhenFailErrors(t *testing.T) {
	uc, creditRepo, jobRepo, _, _ := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsMechanics,
		Options:  []generator.Option{generator.Pullies},
	}
	job := &Job{UserID: 101, JobID: "job-1", CreditsUsed: 1}

	jobRepo.On("Claim", ctx, int64(101), "job-1").Return(ClaimAccepted, job, nil)
	jobRepo.On("Fail", ctx, int64(101), "job-1", int64(1), mock.AnythingOfType("time.Time")).
		Return(appErrors.ErrJobStoreUnavailable("fail job: down"))

	// 失败事务没提交就没有退款行，缓存不能失效
	assert.Equal(t, ProcessRetry, uc.Process(ctx, messageBody(t, msg)))
	creditRepo.AssertNotCalled(t, "InvalidateBalance", mock.Anything, mock.Anything)
}

func TestProcessRetriesOnArtifactFailure(t *testing.T) {
	uc, _, jobRepo, artifacts, _ := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsCore,
		Options:  []generator.Option{generator.Algebra},
	}
	job := &Job{UserID: 101, JobID: "job-1", CreditsUsed: 1}

	jobRepo.On("Claim", ctx, int64(101), "job-1").Return(ClaimAccepted, job, nil)
	artifacts.On("Put", ctx, "job-1", mock.Anything).
		Return(appErrors.ErrArtifactUnavailable("upload artifact: bucket down"))

	assert.Equal(t, ProcessRetry, uc.Process(ctx, messageBody(t, msg)))
	jobRepo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	jobRepo.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDuplicateAndObsoleteAreAcked(t *testing.T) {
	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsCore,
		Options:  []generator.Option{generator.Algebra},
	}

	for _, outcome := range []ClaimOutcome{ClaimDuplicate, ClaimObsolete} {
		uc, _, jobRepo, artifacts, _ := newWorkerFixture()
		ctx := context.Background()
		jobRepo.On("Claim", ctx, int64(101), "job-1").Return(outcome, &Job{}, nil)

		assert.Equal(t, ProcessAck, uc.Process(ctx, messageBody(t, msg)))
		artifacts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestProcessCancelledRefundsAndAcks(t *testing.T) {
	uc, creditRepo, jobRepo, _, _ := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsCore,
		Options:  []generator.Option{generator.Algebra},
	}

	jobRepo.On("Claim", ctx, int64(101), "job-1").Return(ClaimCancelled, &Job{CreditsUsed: 1}, nil)
	jobRepo.On("Cancel", ctx, int64(101), "job-1", mock.AnythingOfType("time.Time")).Return(nil)
	creditRepo.On("InvalidateBalance", ctx, int64(101)).Return(nil)
	jobRepo.On("DropStatus", ctx, "job-1").Return(nil)

	assert.Equal(t, ProcessAck, uc.Process(ctx, messageBody(t, msg)))
	jobRepo.AssertCalled(t, "Cancel", ctx, int64(101), "job-1", mock.AnythingOfType("time.Time"))
	// 删除事务带着退款行提交，旧的缓存余额必须清掉
	creditRepo.AssertCalled(t, "InvalidateBalance", ctx, int64(101))
}

func TestProcessMissingJobIsAcked(t *testing.T) {
	uc, _, jobRepo, _, _ := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsCore,
		Options:  []generator.Option{generator.Algebra},
	}

	jobRepo.On("Claim", ctx, int64(101), "job-1").
		Return(ClaimOutcome(0), nil, appErrors.ErrJobNotFound("job job-1 not found"))

	assert.Equal(t, ProcessAck, uc.Process(ctx, messageBody(t, msg)))
}

func TestProcessRetriesOnClaimInfraFailure(t *testing.T) {
	uc, _, jobRepo, _, _ := newWorkerFixture()
	ctx := context.Background()

	msg := &JobMessage{
		UserID:   101,
		JobID:    "job-1",
		Category: generator.MathsCore,
		Options:  []generator.Option{generator.Algebra},
	}

	jobRepo.On("Claim", ctx, int64(101), "job-1").
		Return(ClaimOutcome(0), nil, appErrors.ErrJobStoreUnavailable("lock job: down"))

	assert.Equal(t, ProcessRetry, uc.Process(ctx, messageBody(t, msg)))
}

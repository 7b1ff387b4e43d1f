package biz

import (
	"context"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rabbitpom/rapidl-backend/internal/constants"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/generator"
)

func testConfig() *GenerateConfig {
	return &GenerateConfig{
		MaxChoices:     4,
		CreditValidity: 30 * 24 * time.Hour,
		WorkingTTL:     1800 * time.Second,
		SuccessTTL:     240 * time.Second,
		FailedTTL:      120 * time.Second,
	}
}

func newGenerationFixture() (*GenerationUseCase, *MockCreditRepo, *MockJobRepo, *MockArtifactStore, *MockJobQueue) {
	creditRepo := &MockCreditRepo{}
	jobRepo := &MockJobRepo{}
	artifacts := &MockArtifactStore{}
	queue := &MockJobQueue{}
	config := testConfig()
	logger := log.NewStdLogger(testWriter{})
	credits := NewCreditUseCase(creditRepo, config, logger)
	uc := NewGenerationUseCase(credits, jobRepo, artifacts, queue, config, logger)
	return uc, creditRepo, jobRepo, artifacts, queue
}

// testWriter 丢弃测试日志
type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSubmitHappyPath(t *testing.T) {
	uc, creditRepo, jobRepo, _, queue := newGenerationFixture()
	ctx := context.Background()

	balance := &Balance{Total: 8, NextExpiry: time.Now().Add(time.Hour)}
	creditRepo.On("Spend", ctx, int64(101), int64(2)).Return(balance, nil)
	jobRepo.On("CreateJob", ctx, mock.AnythingOfType("*biz.Job")).Return(nil)
	jobRepo.On("SeedStatus", ctx, mock.AnythingOfType("string"), constants.JobStatusWorking, 1800*time.Second).Return(nil)
	queue.On("PublishJob", ctx, mock.AnythingOfType("*biz.JobMessage")).Return(nil)

	result, err := uc.Submit(ctx, 101, generator.MathsMechanics, []generator.Option{generator.SUVAT, generator.Vectors})
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, int64(8), result.Balance.Total)

	created := jobRepo.Calls[0].Arguments.Get(1).(*Job)
	assert.Equal(t, constants.JobStatusWaiting, created.Status)
	assert.Equal(t, int64(2), created.CreditsUsed)
	assert.Equal(t, result.JobID, created.JobID)

	published := queue.Calls[0].Arguments.Get(1).(*JobMessage)
	assert.Equal(t, result.JobID, published.JobID)
	assert.Equal(t, generator.MathsMechanics, published.Category)
}

func TestSubmitRejectsInvalidChoicesBeforeSpending(t *testing.T) {
	uc, creditRepo, _, _, _ := newGenerationFixture()

	_, err := uc.Submit(context.Background(), 101, generator.MathsCore, []generator.Option{generator.SUVAT})
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonInvalidChoices, kerrors.Reason(err))
	creditRepo.AssertNotCalled(t, "Spend", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitInsufficientCredits(t *testing.T) {
	uc, creditRepo, jobRepo, _, _ := newGenerationFixture()
	ctx := context.Background()

	creditRepo.On("Spend", ctx, int64(101), int64(1)).
		Return(nil, appErrors.ErrInsufficientCredits("need 1 credits, have 0"))

	_, err := uc.Submit(ctx, 101, generator.MathsCore, []generator.Option{generator.Algebra})
	require.Error(t, err)
	assert.True(t, appErrors.IsInsufficientCredits(err))
	jobRepo.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
}

func TestSubmitCompensatesWhenSpendCommitsButCacheFails(t *testing.T) {
	uc, creditRepo, jobRepo, _, _ := newGenerationFixture()
	ctx := context.Background()

	// 扣减已落库，Spend 只是缓存失效失败：没有任务可交付，额度必须补偿回去
	creditRepo.On("Spend", ctx, int64(101), int64(1)).
		Return(nil, appErrors.ErrCacheWriteFailed("drop balance cache: redis down"))
	creditRepo.On("Grant", ctx, int64(101), int64(1), mock.AnythingOfType("time.Time")).Return(nil)

	_, err := uc.Submit(ctx, 101, generator.MathsCore, []generator.Option{generator.Algebra})
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonCacheWriteFailed, kerrors.Reason(err))
	creditRepo.AssertCalled(t, "Grant", ctx, int64(101), int64(1), mock.AnythingOfType("time.Time"))
	jobRepo.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
}

func TestSubmitRefundsWhenInsertFails(t *testing.T) {
	uc, creditRepo, jobRepo, _, queue := newGenerationFixture()
	ctx := context.Background()

	creditRepo.On("Spend", ctx, int64(101), int64(1)).
		Return(&Balance{Total: 4, NextExpiry: time.Now().Add(time.Hour)}, nil)
	jobRepo.On("CreateJob", ctx, mock.Anything).
		Return(appErrors.ErrJobStoreUnavailable("insert job: down"))
	creditRepo.On("Grant", ctx, int64(101), int64(1), mock.AnythingOfType("time.Time")).Return(nil)

	_, err := uc.Submit(ctx, 101, generator.MathsCore, []generator.Option{generator.Algebra})
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonJobStoreUnavailable, kerrors.Reason(err))
	creditRepo.AssertCalled(t, "Grant", ctx, int64(101), int64(1), mock.AnythingOfType("time.Time"))
	queue.AssertNotCalled(t, "PublishJob", mock.Anything, mock.Anything)
}

func TestSubmitRefundsAndDropsCacheWhenPublishFails(t *testing.T) {
	uc, creditRepo, jobRepo, _, queue := newGenerationFixture()
	ctx := context.Background()

	creditRepo.On("Spend", ctx, int64(101), int64(1)).
		Return(&Balance{Total: 4, NextExpiry: time.Now().Add(time.Hour)}, nil)
	jobRepo.On("CreateJob", ctx, mock.Anything).Return(nil)
	jobRepo.On("SeedStatus", ctx, mock.Anything, constants.JobStatusWorking, mock.Anything).Return(nil)
	queue.On("PublishJob", ctx, mock.Anything).
		Return(appErrors.ErrQueuePublishFailed("publish job message: broker down"))
	creditRepo.On("Grant", ctx, int64(101), int64(1), mock.AnythingOfType("time.Time")).Return(nil)
	jobRepo.On("DropStatus", ctx, mock.Anything).Return(nil)

	_, err := uc.Submit(ctx, 101, generator.MathsCore, []generator.Option{generator.Algebra})
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonQueuePublishFailed, kerrors.Reason(err))
	creditRepo.AssertCalled(t, "Grant", ctx, int64(101), int64(1), mock.AnythingOfType("time.Time"))
	jobRepo.AssertCalled(t, "DropStatus", ctx, mock.Anything)
}

func TestGetContentShortCircuitsOnCachedNonSuccess(t *testing.T) {
	uc, _, jobRepo, artifacts, _ := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("CachedStatus", ctx, "job-1").Return(constants.JobStatusWorking, true, nil)

	content, err := uc.GetContent(ctx, 101, "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusWorking, content.Status)
	assert.Empty(t, content.Artifact)
	jobRepo.AssertNotCalled(t, "GetJob", mock.Anything, mock.Anything, mock.Anything)
	artifacts.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetContentDownloadsArtifactOnSuccess(t *testing.T) {
	uc, _, jobRepo, artifacts, _ := newGenerationFixture()
	ctx := context.Background()
	finished := time.Now().UTC()

	jobRepo.On("CachedStatus", ctx, "job-1").Return("", false, nil)
	jobRepo.On("GetJob", ctx, int64(101), "job-1").Return(&Job{
		UserID:     101,
		JobID:      "job-1",
		Status:     constants.JobStatusSuccess,
		FinishedOn: &finished,
	}, nil)
	artifacts.On("Get", ctx, "job-1").Return([]byte("gzip-bytes"), nil)

	content, err := uc.GetContent(ctx, 101, "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusSuccess, content.Status)
	assert.Equal(t, []byte("gzip-bytes"), content.Artifact)
}

func TestRetryOnlyFailedJobs(t *testing.T) {
	uc, creditRepo, jobRepo, _, _ := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("GetJob", ctx, int64(101), "job-1").Return(&Job{
		UserID: 101,
		JobID:  "job-1",
		Status: constants.JobStatusSuccess,
	}, nil)

	_, err := uc.Retry(ctx, 101, "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonJobNotRetryable, kerrors.Reason(err))
	creditRepo.AssertNotCalled(t, "Spend", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryChargesAgainAndRepublishes(t *testing.T) {
	uc, creditRepo, jobRepo, _, queue := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("GetJob", ctx, int64(101), "job-1").Return(&Job{
		UserID:      101,
		JobID:       "job-1",
		Status:      constants.JobStatusFailed,
		CreditsUsed: 3,
		Category:    generator.MathsMechanics,
		Options:     []generator.Option{generator.SUVAT},
	}, nil)
	creditRepo.On("Spend", ctx, int64(101), int64(3)).
		Return(&Balance{Total: 2, NextExpiry: time.Now().Add(time.Hour)}, nil)
	jobRepo.On("SetStatus", ctx, int64(101), "job-1", constants.JobStatusFailed, constants.JobStatusWaiting).Return(nil)
	queue.On("PublishJob", ctx, mock.Anything).Return(nil)
	jobRepo.On("SeedStatus", ctx, "job-1", constants.JobStatusWorking, mock.Anything).Return(nil)

	result, err := uc.Retry(ctx, 101, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, int64(2), result.Balance.Total)
}

func TestRetryCompensatesWhenSpendCommitsButCacheFails(t *testing.T) {
	uc, creditRepo, jobRepo, _, _ := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("GetJob", ctx, int64(101), "job-1").Return(&Job{
		UserID:      101,
		JobID:       "job-1",
		Status:      constants.JobStatusFailed,
		CreditsUsed: 3,
	}, nil)
	// 扣减已落库但缓存失效失败，任务还停在 Failed，必须把额度补偿回去
	creditRepo.On("Spend", ctx, int64(101), int64(3)).
		Return(nil, appErrors.ErrCacheWriteFailed("drop balance cache: redis down"))
	creditRepo.On("Grant", ctx, int64(101), int64(3), mock.AnythingOfType("time.Time")).Return(nil)

	_, err := uc.Retry(ctx, 101, "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonCacheWriteFailed, kerrors.Reason(err))
	creditRepo.AssertCalled(t, "Grant", ctx, int64(101), int64(3), mock.AnythingOfType("time.Time"))
	jobRepo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryRevertsStatusWhenPublishFails(t *testing.T) {
	uc, creditRepo, jobRepo, _, queue := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("GetJob", ctx, int64(101), "job-1").Return(&Job{
		UserID:      101,
		JobID:       "job-1",
		Status:      constants.JobStatusFailed,
		CreditsUsed: 3,
	}, nil)
	creditRepo.On("Spend", ctx, int64(101), int64(3)).
		Return(&Balance{Total: 2, NextExpiry: time.Now().Add(time.Hour)}, nil)
	jobRepo.On("SetStatus", ctx, int64(101), "job-1", constants.JobStatusFailed, constants.JobStatusWaiting).Return(nil)
	queue.On("PublishJob", ctx, mock.Anything).
		Return(appErrors.ErrQueuePublishFailed("broker down"))
	creditRepo.On("Grant", ctx, int64(101), int64(3), mock.AnythingOfType("time.Time")).Return(nil)
	jobRepo.On("SetStatus", ctx, int64(101), "job-1", constants.JobStatusWaiting, constants.JobStatusFailed).Return(nil)

	_, err := uc.Retry(ctx, 101, "job-1")
	require.Error(t, err)
	creditRepo.AssertCalled(t, "Grant", ctx, int64(101), int64(3), mock.AnythingOfType("time.Time"))
	jobRepo.AssertCalled(t, "SetStatus", ctx, int64(101), "job-1", constants.JobStatusWaiting, constants.JobStatusFailed)
}

func TestDeleteDropsCacheAfterRemoval(t *testing.T) {
	uc, _, jobRepo, _, _ := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("Remove", ctx, int64(101), "job-1", mock.Anything).
		Return(RemoveDone, constants.JobStatusFailed, nil)
	jobRepo.On("DropStatus", ctx, "job-1").Return(nil)

	require.NoError(t, uc.Delete(ctx, 101, "job-1"))
	jobRepo.AssertCalled(t, "DropStatus", ctx, "job-1")
}

func TestDeleteDeferredKeepsCache(t *testing.T) {
	uc, _, jobRepo, _, _ := newGenerationFixture()
	ctx := context.Background()

	jobRepo.On("Remove", ctx, int64(101), "job-1", mock.Anything).
		Return(RemoveDeferred, constants.JobStatusWaiting, nil)

	require.NoError(t, uc.Delete(ctx, 101, "job-1"))
	jobRepo.AssertNotCalled(t, "DropStatus", mock.Anything, mock.Anything)
}

func TestGetBatchStatusLimits(t *testing.T) {
	uc, _, _, _, _ := newGenerationFixture()
	ctx := context.Background()

	_, err := uc.GetBatchStatus(ctx, 101, nil)
	require.Error(t, err)

	many := make([]string, constants.MaxBatchStatusIDs+1)
	for i := range many {
		many[i] = "job"
	}
	_, err = uc.GetBatchStatus(ctx, 101, many)
	require.Error(t, err)
}

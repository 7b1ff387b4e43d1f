package biz

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockCreditRepo struct {
	mock.Mock
}

func (m *MockCreditRepo) GetBalance(ctx context.Context, userID int64) (*Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Balance), args.Error(1)
}

func (m *MockCreditRepo) Grant(ctx context.Context, userID, credits int64, expireAt time.Time) error {
	args := m.Called(ctx, userID, credits, expireAt)
	return args.Error(0)
}

func (m *MockCreditRepo) Spend(ctx context.Context, userID, amount int64) (*Balance, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Balance), args.Error(1)
}

func (m *MockCreditRepo) InvalidateBalance(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCreditRepo) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) CreateJob(ctx context.Context, job *Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepo) GetJob(ctx context.Context, userID int64, jobID string) (*Job, error) {
	args := m.Called(ctx, userID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *MockJobRepo) GetJobs(ctx context.Context, userID int64, jobIDs []string) ([]*Job, error) {
	args := m.Called(ctx, userID, jobIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Job), args.Error(1)
}

func (m *MockJobRepo) ListJobs(ctx context.Context, userID int64, page, pageSize int) ([]*Job, int64, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*Job), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobRepo) UpdateDisplayName(ctx context.Context, userID int64, jobID, displayName string) error {
	args := m.Called(ctx, userID, jobID, displayName)
	return args.Error(0)
}

func (m *MockJobRepo) Claim(ctx context.Context, userID int64, jobID string) (ClaimOutcome, *Job, error) {
	args := m.Called(ctx, userID, jobID)
	if args.Get(1) == nil {
		return args.Get(0).(ClaimOutcome), nil, args.Error(2)
	}
	return args.Get(0).(ClaimOutcome), args.Get(1).(*Job), args.Error(2)
}

func (m *MockJobRepo) Complete(ctx context.Context, userID int64, jobID string) error {
	args := m.Called(ctx, userID, jobID)
	return args.Error(0)
}

func (m *MockJobRepo) Fail(ctx context.Context, userID int64, jobID string, refundCredits int64, refundExpireAt time.Time) error {
	args := m.Called(ctx, userID, jobID, refundCredits, refundExpireAt)
	return args.Error(0)
}

func (m *MockJobRepo) Cancel(ctx context.Context, userID int64, jobID string, refundExpireAt time.Time) error {
	args := m.Called(ctx, userID, jobID, refundExpireAt)
	return args.Error(0)
}

func (m *MockJobRepo) Remove(ctx context.Context, userID int64, jobID string, artifactDelete func(context.Context) error) (RemoveOutcome, string, error) {
	args := m.Called(ctx, userID, jobID, artifactDelete)
	return args.Get(0).(RemoveOutcome), args.String(1), args.Error(2)
}

func (m *MockJobRepo) SetStatus(ctx context.Context, userID int64, jobID, from, to string) error {
	args := m.Called(ctx, userID, jobID, from, to)
	return args.Error(0)
}

func (m *MockJobRepo) SeedStatus(ctx context.Context, jobID, status string, ttl time.Duration) error {
	args := m.Called(ctx, jobID, status, ttl)
	return args.Error(0)
}

func (m *MockJobRepo) CachedStatus(ctx context.Context, jobID string) (string, bool, error) {
	args := m.Called(ctx, jobID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockJobRepo) DropStatus(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Put(ctx context.Context, jobID string, compressed []byte) error {
	args := m.Called(ctx, jobID, compressed)
	return args.Error(0)
}

func (m *MockArtifactStore) Get(ctx context.Context, jobID string) ([]byte, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArtifactStore) Delete(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) PublishJob(ctx context.Context, msg *JobMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockJobQueue) PublishNotify(ctx context.Context, msg *JobNotification) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

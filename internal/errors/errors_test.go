package errors

import (
	"fmt"
	"testing"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
)

func TestReasonMapping(t *testing.T) {
	tests := []struct {
		err    *kerrors.Error
		reason string
		code   int32
	}{
		{ErrInsufficientCredits("need 3"), ReasonInsufficientCredits, 400},
		{ErrLedgerUnavailable("db down"), ReasonLedgerUnavailable, 503},
		{ErrBadLedgerData("residual need"), ReasonBadLedgerData, 500},
		{ErrCacheWriteFailed("del failed"), ReasonCacheWriteFailed, 500},
		{ErrJobNotFound("job x"), ReasonJobNotFound, 404},
		{ErrJobLocked("working"), ReasonJobLocked, 423},
		{ErrJobNotRetryable("status Waiting"), ReasonJobNotRetryable, 409},
		{ErrInvalidChoices("too many"), ReasonInvalidChoices, 400},
		{ErrUnknownCategory("Physics"), ReasonUnknownCategory, 400},
		{ErrUnsupportedOption("Pullies"), ReasonUnsupportedOption, 422},
		{ErrUserUnauthenticated("missing header"), ReasonUserUnauthenticated, 401},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.reason, kerrors.Reason(tt.err))
		assert.Equal(t, tt.code, tt.err.Code)
	}
}

func TestFormatArgs(t *testing.T) {
	err := ErrInsufficientCredits("need %d, have %d", 3, 1)
	assert.Contains(t, err.Message, "need 3, have 1")

	// 无参数时原样保留，避免把字面 % 当格式动词
	raw := ErrJobNotFound("100% missing")
	assert.Equal(t, "100% missing", raw.Message)
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		ErrLedgerUnavailable("x"),
		ErrJobStoreUnavailable("x"),
		ErrCacheWriteFailed("x"),
		ErrSpendLockFailed("x"),
		ErrQueuePublishFailed("x"),
		ErrArtifactUnavailable("x"),
	}
	for _, err := range retryable {
		assert.True(t, IsRetryable(err), kerrors.Reason(err))
	}

	terminal := []error{
		ErrInsufficientCredits("x"),
		ErrBadLedgerData("x"),
		ErrJobNotFound("x"),
		ErrJobLocked("x"),
		ErrJobNotRetryable("x"),
		ErrJobCorrupt("x"),
		ErrInvalidChoices("x"),
		ErrUnsupportedOption("x"),
		fmt.Errorf("plain error"),
		nil,
	}
	for _, err := range terminal {
		assert.False(t, IsRetryable(err))
	}
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsInsufficientCredits(ErrInsufficientCredits("x")))
	assert.False(t, IsInsufficientCredits(ErrBadLedgerData("x")))
	assert.True(t, IsUnsupportedOption(ErrUnsupportedOption("x")))
	assert.True(t, IsJobNotFound(ErrJobNotFound("x")))
	assert.False(t, IsJobNotFound(nil))
}

package data

import (
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitpom/rapidl-backend/internal/data/model"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

func grantsAt(base time.Time, credits ...int64) []model.CreditGrant {
	grants := make([]model.CreditGrant, len(credits))
	for i, c := range credits {
		grants[i] = model.CreditGrant{
			GrantID:  int64(i + 1),
			UserID:   7,
			Credits:  c,
			ExpireAt: base.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return grants
}

func TestPlanSpendPartialGrant(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	grants := grantsAt(base, 10, 5)

	plan, err := planSpend(grants, 12)
	require.NoError(t, err)

	// 第一笔吃光，第二笔从 5 改成 3
	require.Len(t, plan.ops, 2)
	assert.True(t, plan.ops[0].remove)
	assert.Equal(t, int64(1), plan.ops[0].grantID)
	assert.False(t, plan.ops[1].remove)
	assert.Equal(t, int64(2), plan.ops[1].grantID)
	assert.Equal(t, int64(3), plan.ops[1].newCredits)

	assert.Equal(t, int64(3), plan.remaining)
	assert.Equal(t, base.Add(2*time.Hour), plan.nextExpiry)
}

func TestPlanSpendExactDrain(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	grants := grantsAt(base, 10, 5)

	plan, err := planSpend(grants, 15)
	require.NoError(t, err)

	require.Len(t, plan.ops, 2)
	assert.True(t, plan.ops[0].remove)
	assert.True(t, plan.ops[1].remove)
	assert.Equal(t, int64(0), plan.remaining)
	assert.True(t, plan.nextExpiry.IsZero())
}

func TestPlanSpendExactGrantBoundary(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	grants := grantsAt(base, 10, 5)

	// 正好吃光第一笔，第二笔原样保留并成为下一个到期点
	plan, err := planSpend(grants, 10)
	require.NoError(t, err)

	require.Len(t, plan.ops, 1)
	assert.True(t, plan.ops[0].remove)
	assert.Equal(t, int64(5), plan.remaining)
	assert.Equal(t, base.Add(2*time.Hour), plan.nextExpiry)
}

func TestPlanSpendInsufficient(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	grants := grantsAt(base, 10, 5)

	_, err := planSpend(grants, 16)
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonBadLedgerData, kerrors.Reason(err))
}

func TestPlanSpendEmptyLedger(t *testing.T) {
	_, err := planSpend(nil, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ReasonBadLedgerData, kerrors.Reason(err))
}

func TestPlanSpendConsumesOldestFirst(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	grants := grantsAt(base, 2, 3, 4)

	plan, err := planSpend(grants, 4)
	require.NoError(t, err)

	// 前两笔被动到，第三笔不碰
	require.Len(t, plan.ops, 2)
	assert.Equal(t, int64(1), plan.ops[0].grantID)
	assert.True(t, plan.ops[0].remove)
	assert.Equal(t, int64(2), plan.ops[1].grantID)
	assert.Equal(t, int64(1), plan.ops[1].newCredits)
	assert.Equal(t, int64(5), plan.remaining)
	assert.Equal(t, base.Add(2*time.Hour), plan.nextExpiry)
}

package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	"github.com/rabbitpom/rapidl-backend/internal/constants"
	"github.com/rabbitpom/rapidl-backend/internal/data/model"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/metrics"
)

// creditRepo 额度账本数据访问
type creditRepo struct {
	data    *Data
	log     *log.Helper
	metrics *metrics.GenerationMetrics
}

// NewCreditRepo 创建额度 repo（返回 biz.CreditRepo 接口）
func NewCreditRepo(data *Data, logger log.Logger) biz.CreditRepo {
	return &creditRepo{
		data:    data,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// GetBalance 获取用户余额，缓存优先。
// 余额为零时返回零值快照且不写缓存，避免缓存一个没有到期时间的空余额。
func (r *creditRepo) GetBalance(ctx context.Context, userID int64) (*biz.Balance, error) {
	totalKey := fmt.Sprintf(constants.RedisKeyCreditTotalFmt, userID)
	expireKey := fmt.Sprintf(constants.RedisKeyCreditExpireFmt, userID)

	// 先尝试从 Redis 获取，两个键都命中才算命中
	vals, err := r.data.rdb.MGet(ctx, totalKey, expireKey).Result()
	if err != nil && err != redis.Nil {
		return nil, appErrors.ErrLedgerUnavailable("read balance cache: %v", err)
	}
	if err == nil && len(vals) == 2 && vals[0] != nil && vals[1] != nil {
		var total, expireUnix int64
		totalStr, okT := vals[0].(string)
		expireStr, okE := vals[1].(string)
		if okT && okE {
			_, errT := fmt.Sscanf(totalStr, "%d", &total)
			_, errE := fmt.Sscanf(expireStr, "%d", &expireUnix)
			if errT == nil && errE == nil {
				r.metrics.BalanceQueryTotal.WithLabelValues("cache").Inc()
				return &biz.Balance{Total: total, NextExpiry: time.Unix(expireUnix, 0).UTC()}, nil
			}
		}
	}

	// 缓存未命中，从数据库汇总未到期的授予
	now := time.Now().UTC()
	var row struct {
		Total      int64
		NextExpiry sql.NullTime
	}
	err = r.data.db.WithContext(ctx).
		Model(&model.CreditGrant{}).
		Select("COALESCE(SUM(credits), 0) AS total, MIN(expire_at) AS next_expiry").
		Where("user_id = ? AND expire_at > ?", userID, now).
		Scan(&row).Error
	if err != nil {
		r.log.Errorf("GetBalance failed: userID=%d, error=%v", userID, err)
		return nil, appErrors.ErrLedgerUnavailable("query credit grants: %v", err)
	}

	if row.Total <= 0 || !row.NextExpiry.Valid {
		r.metrics.BalanceQueryTotal.WithLabelValues("empty").Inc()
		return &biz.Balance{}, nil
	}

	balance := &biz.Balance{Total: row.Total, NextExpiry: row.NextExpiry.Time.UTC()}
	if err := r.seedBalanceCache(ctx, totalKey, expireKey, balance, now); err != nil {
		// 回写失败要暴露出去，调用方可能基于陈旧缓存做预检
		return nil, err
	}
	r.metrics.BalanceQueryTotal.WithLabelValues("db").Inc()
	return balance, nil
}

// seedBalanceCache 回写余额缓存，TTL 对齐最早一笔到期时间
func (r *creditRepo) seedBalanceCache(ctx context.Context, totalKey, expireKey string, balance *biz.Balance, now time.Time) error {
	ttl := balance.NextExpiry.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	pipe := r.data.rdb.Pipeline()
	pipe.Set(ctx, totalKey, fmt.Sprintf("%d", balance.Total), ttl)
	pipe.Set(ctx, expireKey, fmt.Sprintf("%d", balance.NextExpiry.Unix()), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Errorf("seed balance cache failed: %v", err)
		return appErrors.ErrCacheWriteFailed("seed balance cache: %v", err)
	}
	return nil
}

// Grant 追加额度授予并使缓存失效
func (r *creditRepo) Grant(ctx context.Context, userID, credits int64, expireAt time.Time) error {
	if credits <= 0 {
		return appErrors.ErrBadLedgerData("grant of %d credits is not positive", credits)
	}
	grant := &model.CreditGrant{
		UserID:   userID,
		Credits:  credits,
		ExpireAt: expireAt.UTC(),
	}
	if err := r.data.db.WithContext(ctx).Create(grant).Error; err != nil {
		r.log.Errorf("Grant failed: userID=%d, error=%v", userID, err)
		return appErrors.ErrLedgerUnavailable("insert credit grant: %v", err)
	}
	return r.dropBalanceCache(ctx, userID)
}

// Spend 消费额度。预检基于缓存读，真正的判定在串行化事务加行锁完成，
// 授予按到期时间从早到晚消耗。
func (r *creditRepo) Spend(ctx context.Context, userID, amount int64) (*biz.Balance, error) {
	if amount <= 0 {
		return nil, appErrors.ErrBadLedgerData("spend of %d credits is not positive", amount)
	}

	// 预检，便宜地挡掉明显不足的请求
	current, err := r.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Total < amount {
		return nil, appErrors.ErrInsufficientCredits("need %d credits, have %d", amount, current.Total)
	}

	// 获取分布式锁（按用户）
	lockKey := fmt.Sprintf(constants.RedisKeySpendLockFmt, userID)
	lockStartTime := time.Now()
	mutex := r.data.rs.NewMutex(lockKey, redsync.WithExpiry(5*time.Second))
	if err := mutex.LockContext(ctx); err != nil {
		r.log.Errorf("Failed to acquire lock for spend: user_id=%d, error=%v", userID, err)
		r.metrics.LockAcquireTotal.WithLabelValues(constants.ResultFailed).Inc()
		r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
		return nil, appErrors.ErrSpendLockFailed("acquire spend lock: %v", err)
	}
	r.metrics.LockAcquireTotal.WithLabelValues(constants.ResultSuccess).Inc()
	r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
	defer func() {
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			r.log.Warnf("Failed to unlock spend lock: user_id=%d, error=%v", userID, err)
		}
	}()

	var remaining int64
	var nextExpiry time.Time
	now := time.Now().UTC()

	err = r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grants []model.CreditGrant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND expire_at > ?", userID, now).
			Order("expire_at ASC").
			Find(&grants).Error; err != nil {
			return appErrors.ErrLedgerUnavailable("lock credit grants: %v", err)
		}

		plan, err := planSpend(grants, amount)
		if err != nil {
			return err
		}

		for _, op := range plan.ops {
			if op.remove {
				if err := tx.Delete(&model.CreditGrant{}, "grant_id = ?", op.grantID).Error; err != nil {
					return appErrors.ErrLedgerUnavailable("delete drained grant: %v", err)
				}
				continue
			}
			if err := tx.Model(&model.CreditGrant{}).
				Where("grant_id = ?", op.grantID).
				Update("credits", op.newCredits).Error; err != nil {
				return appErrors.ErrLedgerUnavailable("update partial grant: %v", err)
			}
		}

		remaining = plan.remaining
		nextExpiry = plan.nextExpiry
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	// 扣减已持久化，缓存必须失效
	if err := r.dropBalanceCache(ctx, userID); err != nil {
		return nil, err
	}
	return &biz.Balance{Total: remaining, NextExpiry: nextExpiry}, nil
}

// InvalidateBalance 删除余额缓存。退款行在任务事务内插入，
// 没有走 Grant，提交后由这里补齐缓存失效。
func (r *creditRepo) InvalidateBalance(ctx context.Context, userID int64) error {
	return r.dropBalanceCache(ctx, userID)
}

// PurgeExpired 删除所有已到期的授予行
func (r *creditRepo) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.data.db.WithContext(ctx).
		Where("expire_at <= ?", time.Now().UTC()).
		Delete(&model.CreditGrant{})
	if result.Error != nil {
		return 0, appErrors.ErrLedgerUnavailable("purge expired grants: %v", result.Error)
	}
	return result.RowsAffected, nil
}

// dropBalanceCache 删除余额缓存两个键。账本已经变更，删除失败
// 意味着缓存可能与账本不一致，必须作为错误上抛。
func (r *creditRepo) dropBalanceCache(ctx context.Context, userID int64) error {
	totalKey := fmt.Sprintf(constants.RedisKeyCreditTotalFmt, userID)
	expireKey := fmt.Sprintf(constants.RedisKeyCreditExpireFmt, userID)
	if err := r.data.rdb.Del(ctx, totalKey, expireKey).Err(); err != nil {
		r.log.Errorf("drop balance cache failed: userID=%d, error=%v", userID, err)
		return appErrors.ErrCacheWriteFailed("drop balance cache: %v", err)
	}
	return nil
}

// grantOp 消费计划中对单笔授予的改动
type grantOp struct {
	grantID    int64
	remove     bool
	newCredits int64
}

// spendPlan 一次消费的完整计划与扣减后的余额快照
type spendPlan struct {
	ops        []grantOp
	remaining  int64
	nextExpiry time.Time
}

// planSpend 对按到期时间升序排好的授予列表做消费规划。
// 整笔吃掉的授予删除，部分消耗的就地改小。锁内仍然不够属于
// 预检与真实账本的矛盾，返回 BAD_LEDGER_DATA 让事务回滚。
func planSpend(grants []model.CreditGrant, amount int64) (*spendPlan, error) {
	need := amount
	plan := &spendPlan{}
	var total int64

	for _, g := range grants {
		total += g.Credits
		if need == 0 {
			if plan.nextExpiry.IsZero() {
				plan.nextExpiry = g.ExpireAt
			}
			continue
		}
		if g.Credits <= need {
			need -= g.Credits
			plan.ops = append(plan.ops, grantOp{grantID: g.GrantID, remove: true})
			continue
		}
		plan.ops = append(plan.ops, grantOp{grantID: g.GrantID, newCredits: g.Credits - need})
		need = 0
		plan.nextExpiry = g.ExpireAt
	}

	if need > 0 {
		return nil, appErrors.ErrBadLedgerData("ledger holds %d credits but %d were requested", total, amount)
	}
	plan.remaining = total - amount
	return plan, nil
}

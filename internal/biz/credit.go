package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/constants"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/metrics"
)

// Balance 用户可用额度快照。Total 为零时 NextExpiry 无意义（零值）。
type Balance struct {
	Total      int64
	NextExpiry time.Time
}

// CreditRepo 额度账本数据层接口（定义在 biz 层）
type CreditRepo interface {
	// GetBalance 读取余额，缓存优先
	GetBalance(ctx context.Context, userID int64) (*Balance, error)
	// Grant 追加一笔额度授予并使余额缓存失效
	Grant(ctx context.Context, userID, credits int64, expireAt time.Time) error
	// Spend 按到期时间从早到晚消费额度，返回扣减后的余额
	Spend(ctx context.Context, userID, amount int64) (*Balance, error)
	// InvalidateBalance 删除余额缓存。账本在别处（如任务事务内的退款行）
	// 已经变更时由调用方触发
	InvalidateBalance(ctx context.Context, userID int64) error
	// PurgeExpired 删除所有已到期的授予行，返回删除行数
	PurgeExpired(ctx context.Context) (int64, error)
}

// CreditUseCase 额度业务逻辑
type CreditUseCase struct {
	repo   CreditRepo
	config *GenerateConfig
	log    *log.Helper
}

// NewCreditUseCase 创建额度 UseCase
func NewCreditUseCase(repo CreditRepo, config *GenerateConfig, logger log.Logger) *CreditUseCase {
	return &CreditUseCase{
		repo:   repo,
		config: config,
		log:    log.NewHelper(logger),
	}
}

// GetBalance 获取余额
func (uc *CreditUseCase) GetBalance(ctx context.Context, userID int64) (*Balance, error) {
	return uc.repo.GetBalance(ctx, userID)
}

// Grant 发放额度，有效期取自配置
func (uc *CreditUseCase) Grant(ctx context.Context, userID, credits int64) (*Balance, error) {
	expireAt := time.Now().UTC().Add(uc.config.CreditValidity)
	if err := uc.repo.Grant(ctx, userID, credits, expireAt); err != nil {
		return nil, err
	}
	metrics.GetMetrics().GrantTotal.Inc()
	return uc.repo.GetBalance(ctx, userID)
}

// Spend 消费额度
func (uc *CreditUseCase) Spend(ctx context.Context, userID, amount int64) (*Balance, error) {
	start := time.Now()
	balance, err := uc.repo.Spend(ctx, userID, amount)
	m := metrics.GetMetrics()
	m.SpendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		result := constants.ResultFailed
		if appErrors.IsInsufficientCredits(err) {
			result = constants.ResultRejected
		}
		m.SpendTotal.WithLabelValues(result).Inc()
		return nil, err
	}
	m.SpendTotal.WithLabelValues(constants.ResultSuccess).Inc()
	m.SpendAmount.Add(float64(amount))
	return balance, nil
}

// InvalidateBalance 使余额缓存失效。任务事务内落账的退款行绕过了
// Grant 的缓存失效，提交后必须由调用方补上这一步。
func (uc *CreditUseCase) InvalidateBalance(ctx context.Context, userID int64) error {
	return uc.repo.InvalidateBalance(ctx, userID)
}

// Refund 补偿返还。提交或生成失败后把扣掉的额度发放回去，
// 返还的额度带全新的有效期。
func (uc *CreditUseCase) Refund(ctx context.Context, userID, credits int64, reason string) error {
	expireAt := time.Now().UTC().Add(uc.config.CreditValidity)
	if err := uc.repo.Grant(ctx, userID, credits, expireAt); err != nil {
		uc.log.WithContext(ctx).Errorf("refund of %d credits for user %d failed (%s): %v", credits, userID, reason, err)
		return err
	}
	metrics.GetMetrics().RefundTotal.WithLabelValues(reason).Inc()
	return nil
}

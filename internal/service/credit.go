package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

// BalanceReply 余额查询响应
type BalanceReply struct {
	Credits int64 `json:"credits"`
	// NextFetch 最近一笔额度的到期时间（unix 秒），余额为零时为 0
	NextFetch int64 `json:"next_fetch"`
}

// GrantRequest 发放额度请求
type GrantRequest struct {
	Credits int64 `json:"credits"`
}

// CreditService 额度服务
type CreditService struct {
	uc  *biz.CreditUseCase
	log *log.Helper
}

// NewCreditService 创建 CreditService
func NewCreditService(uc *biz.CreditUseCase, logger log.Logger) *CreditService {
	return &CreditService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

func toBalanceReply(balance *biz.Balance) *BalanceReply {
	reply := &BalanceReply{Credits: balance.Total}
	if !balance.NextExpiry.IsZero() {
		reply.NextFetch = balance.NextExpiry.Unix()
	}
	return reply
}

// GetBalance 查询余额
func (s *CreditService) GetBalance(ctx context.Context, userID int64) (*BalanceReply, error) {
	balance, err := s.uc.GetBalance(ctx, userID)
	if err != nil {
		s.log.Errorf("GetBalance failed: %v", err)
		return nil, err
	}
	return toBalanceReply(balance), nil
}

// Grant 发放额度
func (s *CreditService) Grant(ctx context.Context, userID int64, req *GrantRequest) (*BalanceReply, error) {
	if req.Credits <= 0 {
		return nil, appErrors.ErrInvalidChoices("credits must be positive")
	}
	balance, err := s.uc.Grant(ctx, userID, req.Credits)
	if err != nil {
		s.log.Errorf("Grant failed: %v", err)
		return nil, err
	}
	return toBalanceReply(balance), nil
}

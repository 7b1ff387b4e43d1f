package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/metrics"
)

// MaintenanceUseCase 周期性清理任务
type MaintenanceUseCase struct {
	credits CreditRepo
	log     *log.Helper
}

// NewMaintenanceUseCase 创建清理 UseCase
func NewMaintenanceUseCase(credits CreditRepo, logger log.Logger) *MaintenanceUseCase {
	return &MaintenanceUseCase{
		credits: credits,
		log:     log.NewHelper(logger),
	}
}

// PurgeExpiredGrants 删除所有已到期的额度授予行。余额读取路径本身
// 过滤到期行，这里只是回收存储，不影响正确性。
func (uc *MaintenanceUseCase) PurgeExpiredGrants(ctx context.Context) error {
	purged, err := uc.credits.PurgeExpired(ctx)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("purge expired grants: %v", err)
		return err
	}
	m := metrics.GetMetrics()
	m.PurgeExpiredTotal.Inc()
	m.PurgedGrantsTotal.Add(float64(purged))
	if purged > 0 {
		uc.log.WithContext(ctx).Infof("purged %d expired credit grants", purged)
	}
	return nil
}

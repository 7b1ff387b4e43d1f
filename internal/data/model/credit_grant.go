package model

import (
	"time"
)

// CreditGrant 额度授予记录，一行代表一次发放的剩余可用额度
type CreditGrant struct {
	GrantID  int64     `gorm:"column:grant_id;primaryKey;autoIncrement" json:"grant_id"`
	UserID   int64     `gorm:"column:user_id;not null;index:idx_user_expire,priority:1" json:"user_id"`
	Credits  int64     `gorm:"column:credits;not null" json:"credits"`
	ExpireAt time.Time `gorm:"column:expire_at;not null;index:idx_user_expire,priority:2" json:"expire_at"`
}

// TableName 表名
func (CreditGrant) TableName() string {
	return "allocated_credits"
}
